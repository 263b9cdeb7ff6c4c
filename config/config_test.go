package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/checkout?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "checkout-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "RAZORPAY_KEY_ID", "rzp_test_key")
	setEnv(t, "RAZORPAY_HTTP_TIMEOUT_SECONDS", "15")
	setEnv(t, "PAYMENTS_GATEWAY_TIMEOUT_SECONDS", "7")
	setEnv(t, "PAYMENTS_PENDING_ORDER_TIMEOUT_MINUTES", "45")
	setEnv(t, "PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", "13")
	setEnv(t, "PAYMENTS_JOB_BATCH_SIZE", "99")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "checkout-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" {
		t.Fatalf("unexpected http port: %s", cfg.HTTP.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Razorpay.KeyID != "rzp_test_key" {
		t.Fatalf("unexpected razorpay key id: %s", cfg.Razorpay.KeyID)
	}
	if cfg.Razorpay.HTTPTimeout != 15*time.Second {
		t.Fatalf("unexpected razorpay http timeout: %v", cfg.Razorpay.HTTPTimeout)
	}
	if cfg.Payments.Currency != "INR" {
		t.Fatalf("unexpected default currency: %s", cfg.Payments.Currency)
	}
	if cfg.Payments.GatewayTimeout != 7*time.Second {
		t.Fatalf("unexpected gateway timeout: %v", cfg.Payments.GatewayTimeout)
	}
	if cfg.Payments.PendingOrderTimeout != 45*time.Minute {
		t.Fatalf("unexpected pending order timeout: %v", cfg.Payments.PendingOrderTimeout)
	}
	if cfg.Payments.ReconcileStaleAfter != 13*time.Minute {
		t.Fatalf("unexpected reconcile cutoff: %v", cfg.Payments.ReconcileStaleAfter)
	}
	if cfg.Payments.JobBatchSize != 99 {
		t.Fatalf("unexpected job batch size: %d", cfg.Payments.JobBatchSize)
	}
	if cfg.Jobs.ReconcileInterval != 2*time.Minute {
		t.Fatalf("unexpected default reconcile interval: %v", cfg.Jobs.ReconcileInterval)
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/checkout")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "not-a-number")
	setEnv(t, "PAYMENTS_JOB_BATCH_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.MySQL.MaxOpenConns != 10 {
		t.Fatalf("expected default max open conns, got %d", cfg.MySQL.MaxOpenConns)
	}
	if cfg.Payments.JobBatchSize != 100 {
		t.Fatalf("expected default job batch size, got %d", cfg.Payments.JobBatchSize)
	}
}
