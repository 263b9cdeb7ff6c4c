package service

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := newKeyedMutex()

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("order_g1")
			defer release()
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 critical sections, got %d", counter)
	}
}

func TestKeyedMutexReleasesEntry(t *testing.T) {
	locks := newKeyedMutex()

	release := locks.Lock("order_g1")
	release()

	locks.mu.Lock()
	remaining := len(locks.entries)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected entry map to be empty, got %d", remaining)
	}
}

func TestKeyedMutexIndependentKeysDoNotBlock(t *testing.T) {
	locks := newKeyedMutex()

	releaseA := locks.Lock("order_a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := locks.Lock("order_b")
		releaseB()
		close(done)
	}()

	<-done
}
