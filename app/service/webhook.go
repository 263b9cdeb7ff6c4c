package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

// HandleWebhook processes an asynchronous gateway notification. The order of
// checks matters: signature first, and nothing about local state leaks before
// it passes. After a valid signature every outcome except an internal fault
// acknowledges the delivery, because the gateway retries on anything else and
// a conflicting or malformed event stays conflicting however many times it is
// redelivered.
func (s *CheckoutService) HandleWebhook(ctx context.Context, request *types.WebhookRequest) error {
	event, err := s.gateway.VerifyAndParseWebhook(request.Body, request.Signature)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) || errors.Is(err, gateway.ErrMissingSignature) || errors.Is(err, gateway.ErrMissingSecret) {
			s.logger.WithField("gateway_event_id", request.EventID).Warn("webhook signature rejected")
			return ErrSignatureInvalid
		}
		// Signature valid but body undecodable: record and acknowledge,
		// redelivery of the same bytes cannot do better.
		s.recordWebhook(ctx, request, "", nil, entity.WebhookDispositionRejected, err)
		return nil
	}

	record, err := s.insertWebhookRecord(ctx, request, event.Event)
	if err != nil {
		if errors.Is(err, repository.ErrWebhookEventExists) {
			s.logger.WithField("gateway_event_id", record.GatewayEventID).Info("duplicate webhook delivery acknowledged")
			return nil
		}
		return err
	}

	kind, known := eventKindForWebhook(event.Event)
	if !known {
		s.finishWebhook(ctx, record, nil, entity.WebhookDispositionIgnored, nil)
		return nil
	}

	disposition, paymentID, err := s.applyWebhookEvent(ctx, event, kind, record.GatewayEventID)
	if err != nil && disposition == 0 {
		// Internal fault: drop the dedupe row so the gateway's redelivery is
		// not mistaken for a duplicate.
		_ = s.webhookRepo.Delete(ctx, record.ID)
		return err
	}

	s.finishWebhook(ctx, record, paymentID, disposition, err)
	return nil
}

// applyWebhookEvent locates the payment the event concerns and runs the state
// machine. The returned disposition is zero only for internal faults that
// should be retried by the gateway.
func (s *CheckoutService) applyWebhookEvent(ctx context.Context, event *gateway.WebhookEvent, kind eventKind, gatewayEventID string) (int32, *uint64, error) {
	switch kind {
	case eventAuthorized, eventCaptured, eventFailed:
		if event.Payment == nil {
			return entity.WebhookDispositionRejected, nil, fmt.Errorf("%w: payment entity missing", ErrMalformedEvent)
		}
		return s.applyWebhookPaymentEvent(ctx, event.Payment, kind, gatewayEventID)
	case eventRefundCreated, eventRefundProcessed, eventRefundFailed:
		if event.Refund == nil {
			return entity.WebhookDispositionRejected, nil, fmt.Errorf("%w: refund entity missing", ErrMalformedEvent)
		}
		return s.applyWebhookRefundEvent(ctx, event.Refund, kind, gatewayEventID)
	default:
		return entity.WebhookDispositionIgnored, nil, nil
	}
}

func (s *CheckoutService) applyWebhookPaymentEvent(ctx context.Context, detail *gateway.PaymentEntity, kind eventKind, gatewayEventID string) (int32, *uint64, error) {
	order, err := s.orderRepo.FindByGatewayOrderID(ctx, detail.OrderID)
	if err != nil {
		return 0, nil, err
	}
	if order == nil {
		return entity.WebhookDispositionRejected, nil, fmt.Errorf("%w: unknown gateway order %s", ErrMalformedEvent, detail.OrderID)
	}

	ev := &paymentEvent{
		Kind:             kind,
		GatewayEventID:   gatewayEventID,
		GatewayPaymentID: detail.ID,
		AmountCents:      detail.Amount,
		Detail:           detail,
	}

	release := s.locks.Lock(order.GatewayOrderID)
	defer release()

	payment, err := s.locateAttempt(ctx, order, detail.ID)
	if err != nil {
		return 0, nil, err
	}
	if payment == nil {
		return entity.WebhookDispositionRejected, nil, fmt.Errorf("%w: no payment for %s", ErrMalformedEvent, detail.ID)
	}

	updated, _, applyErr := s.applyPersist(ctx, payment, ev)
	if applyErr != nil {
		if errors.Is(applyErr, ErrConflictingTransition) {
			id := payment.ID
			if updated != nil {
				id = updated.ID
			}
			return entity.WebhookDispositionFlagged, &id, applyErr
		}
		return 0, nil, applyErr
	}

	id := updated.ID
	return entity.WebhookDispositionProcessed, &id, nil
}

func (s *CheckoutService) applyWebhookRefundEvent(ctx context.Context, detail *gateway.RefundEntity, kind eventKind, gatewayEventID string) (int32, *uint64, error) {
	payment, err := s.paymentRepo.FindByGatewayPaymentID(ctx, detail.PaymentID)
	if err != nil {
		return 0, nil, err
	}
	if payment == nil {
		return entity.WebhookDispositionRejected, nil, fmt.Errorf("%w: refund for unknown payment %s", ErrMalformedEvent, detail.PaymentID)
	}

	ev := &paymentEvent{
		Kind:            kind,
		GatewayEventID:  gatewayEventID,
		GatewayRefundID: detail.ID,
		RefundCents:     detail.Amount,
	}

	release := s.locks.Lock(payment.GatewayOrderID)
	defer release()

	fresh, err := s.paymentRepo.FindByID(ctx, payment.ID)
	if err != nil {
		return 0, nil, err
	}
	if fresh == nil {
		return entity.WebhookDispositionRejected, nil, fmt.Errorf("%w: payment row vanished", ErrMalformedEvent)
	}

	updated, _, applyErr := s.applyPersist(ctx, fresh, ev)
	if applyErr != nil {
		if errors.Is(applyErr, ErrConflictingTransition) {
			id := fresh.ID
			if updated != nil {
				id = updated.ID
			}
			return entity.WebhookDispositionFlagged, &id, applyErr
		}
		return 0, nil, applyErr
	}

	id := updated.ID
	return entity.WebhookDispositionProcessed, &id, nil
}

func (s *CheckoutService) insertWebhookRecord(ctx context.Context, request *types.WebhookRequest, eventType string) (*entity.WebhookEvent, error) {
	gatewayEventID := request.EventID
	if gatewayEventID == "" {
		// No delivery id header: dedupe cannot work, but the audit trail
		// still wants a row.
		gatewayEventID = "local_" + uuid.NewString()
	}

	now := time.Now().UTC()
	record := &entity.WebhookEvent{
		GatewayEventID: gatewayEventID,
		EventType:      eventType,
		PayloadJSON:    string(request.Body),
		Disposition:    entity.WebhookDispositionReceived,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.webhookRepo.Create(ctx, record); err != nil {
		return record, err
	}
	return record, nil
}

func (s *CheckoutService) finishWebhook(ctx context.Context, record *entity.WebhookEvent, paymentID *uint64, disposition int32, cause error) {
	record.PaymentID = paymentID
	record.Disposition = disposition
	record.UpdatedAt = time.Now().UTC()
	if cause != nil {
		msg := truncate(cause.Error(), 255)
		record.Error = &msg
	}
	if err := s.webhookRepo.Update(ctx, record); err != nil {
		s.logger.WithError(err).WithField("gateway_event_id", record.GatewayEventID).Warn("failed to finalize webhook record")
	}
}

func (s *CheckoutService) recordWebhook(ctx context.Context, request *types.WebhookRequest, eventType string, paymentID *uint64, disposition int32, cause error) {
	record, err := s.insertWebhookRecord(ctx, request, eventType)
	if err != nil {
		if !errors.Is(err, repository.ErrWebhookEventExists) {
			s.logger.WithError(err).Warn("failed to record webhook")
		}
		return
	}
	s.finishWebhook(ctx, record, paymentID, disposition, cause)
}
