package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

// RunReconcileBatch polls the gateway for payments stuck in authorized and
// refunds stuck in pending. Webhooks normally move these; the job covers
// deliveries that never arrived.
func (s *CheckoutService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.paymentsCfg.ReconcileStaleAfter)

	var firstErr error
	firstErr = keepFirstErr(firstErr, s.reconcileAuthorizedPayments(ctx, before))
	firstErr = keepFirstErr(firstErr, s.reconcilePendingRefunds(ctx, before))
	return firstErr
}

func (s *CheckoutService) reconcileAuthorizedPayments(ctx context.Context, before time.Time) error {
	items, err := s.paymentRepo.ListStaleAuthorized(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.GatewayPaymentID == nil || strings.TrimSpace(*payment.GatewayPaymentID) == "" {
			continue
		}
		gatewayPaymentID := strings.TrimSpace(*payment.GatewayPaymentID)

		detail, err := s.gateway.FetchPayment(ctx, gatewayPaymentID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		var kind eventKind
		switch detail.Status {
		case "captured", "refunded":
			kind = eventCaptured
		case "failed":
			kind = eventFailed
		default:
			continue
		}

		ev := &paymentEvent{
			Kind:             kind,
			GatewayPaymentID: gatewayPaymentID,
			AmountCents:      detail.Amount,
			Detail:           detail,
		}

		firstErr = keepFirstErr(firstErr, s.applyReconciled(ctx, payment, ev))
	}

	return firstErr
}

func (s *CheckoutService) reconcilePendingRefunds(ctx context.Context, before time.Time) error {
	items, err := s.refundRepo.ListStalePending(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, refund := range items {
		if refund == nil {
			continue
		}

		detail, err := s.gateway.FetchRefund(ctx, refund.GatewayRefundID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		var kind eventKind
		switch detail.Status {
		case "processed":
			kind = eventRefundProcessed
		case "failed":
			kind = eventRefundFailed
		default:
			continue
		}

		payment, err := s.paymentRepo.FindByID(ctx, refund.PaymentID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if payment == nil {
			continue
		}

		ev := &paymentEvent{
			Kind:            kind,
			GatewayRefundID: refund.GatewayRefundID,
			RefundCents:     detail.Amount,
		}

		firstErr = keepFirstErr(firstErr, s.applyReconciled(ctx, payment, ev))
	}

	return firstErr
}

func (s *CheckoutService) applyReconciled(ctx context.Context, payment *entity.Payment, ev *paymentEvent) error {
	release := s.locks.Lock(payment.GatewayOrderID)
	defer release()

	fresh, err := s.paymentRepo.FindByID(ctx, payment.ID)
	if err != nil {
		return err
	}
	if fresh == nil {
		return nil
	}

	_, _, applyErr := s.applyPersist(ctx, fresh, ev)
	if applyErr != nil && !errors.Is(applyErr, ErrConflictingTransition) {
		return applyErr
	}
	if errors.Is(applyErr, ErrConflictingTransition) {
		s.logger.WithField("payment_id", payment.ID).Warn("reconciliation flagged conflicting gateway state")
	}
	return nil
}

// RunExpirePendingBatch cancels orders that sat in pending past the checkout
// window with no successful payment. A capture webhook racing this job wins:
// the cancel re-checks payment state under the order lock.
func (s *CheckoutService) RunExpirePendingBatch(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.paymentsCfg.PendingOrderTimeout)
	orders, err := s.orderRepo.ListStalePending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range orders {
		if order == nil {
			continue
		}
		if err := s.expirePendingOrder(ctx, order); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *CheckoutService) expirePendingOrder(ctx context.Context, order *entity.Order) error {
	release := s.locks.Lock(order.GatewayOrderID)
	defer release()

	fresh, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return err
	}
	if fresh == nil || fresh.Status != entity.OrderStatusPending {
		return nil
	}

	payments, err := s.paymentRepo.ListByOrderID(ctx, fresh.ID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.Status == entity.PaymentStatusCaptured || p.Status == entity.PaymentStatusRefunded || p.Status == entity.PaymentStatusAuthorized {
			return nil
		}
	}

	oldStatus := fresh.Status
	fresh.Status = entity.OrderStatusCancelled
	fresh.UpdatedAt = time.Now().UTC()
	if err := s.orderRepo.Update(ctx, fresh); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, fresh, oldStatus)
	}

	return nil
}
