package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

// VerifyPayment handles the browser's return from checkout. The signature
// proves the payment id belongs to our order, but the authoritative status
// still comes from a server-side fetch: a valid signature only says the
// payment was authorized at some point, not that funds were captured.
func (s *CheckoutService) VerifyPayment(ctx context.Context, userID uint64, request *types.VerifyPaymentRequest) (*entity.Payment, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	order, err := s.orderRepo.FindByGatewayOrderID(ctx, request.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (userID != 0 && order.UserID != userID) {
		return nil, ErrOrderNotFound
	}

	if !s.gateway.VerifyPaymentSignature(request.GatewayOrderID, request.GatewayPaymentID, request.Signature) {
		s.logger.WithField("gateway_order_id", request.GatewayOrderID).
			WithField("gateway_payment_id", request.GatewayPaymentID).
			Warn("payment verification signature mismatch")
		return nil, ErrSignatureInvalid
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout())
	defer cancel()
	detail, err := s.gateway.FetchPayment(fetchCtx, request.GatewayPaymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if detail.OrderID != request.GatewayOrderID {
		// Signed ids that the gateway attributes to a different order: treat
		// as a forged correlation, not a transient failure.
		return nil, ErrSignatureInvalid
	}

	var kind eventKind
	switch detail.Status {
	case "captured":
		kind = eventCaptured
	case "authorized":
		kind = eventAuthorized
	case "failed":
		kind = eventFailed
	case "refunded":
		kind = eventCaptured
	default:
		return nil, ErrVerificationIncomplete
	}

	ev := &paymentEvent{
		Kind:             kind,
		GatewayPaymentID: request.GatewayPaymentID,
		Signature:        request.Signature,
		AmountCents:      detail.Amount,
		Detail:           detail,
	}

	release := s.locks.Lock(order.GatewayOrderID)
	defer release()

	payment, err := s.locateAttempt(ctx, order, request.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	updated, _, applyErr := s.applyPersist(ctx, payment, ev)
	if applyErr != nil {
		return nil, applyErr
	}

	if kind == eventFailed {
		return updated, ErrVerificationIncomplete
	}
	return updated, nil
}

// GetPayment serves the local record when one exists and falls back to a
// live gateway fetch for a payment we have not reconciled yet. The fallback
// result is reported, never persisted: persistence happens only through the
// state machine.
func (s *CheckoutService) GetPayment(ctx context.Context, userID uint64, gatewayPaymentID string) (*entity.Payment, []*entity.Refund, error) {
	payment, err := s.paymentRepo.FindByGatewayPaymentID(ctx, gatewayPaymentID)
	if err != nil {
		return nil, nil, err
	}

	if payment != nil {
		order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return nil, nil, err
		}
		if order == nil || (userID != 0 && order.UserID != userID) {
			return nil, nil, ErrPaymentNotFound
		}

		refunds, err := s.refundRepo.ListByPaymentID(ctx, payment.ID)
		if err != nil {
			return nil, nil, err
		}
		return payment, refunds, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout())
	defer cancel()
	detail, err := s.gateway.FetchPayment(fetchCtx, gatewayPaymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	order, err := s.orderRepo.FindByGatewayOrderID(ctx, detail.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil || (userID != 0 && order.UserID != userID) {
		return nil, nil, ErrPaymentNotFound
	}

	return paymentFromGateway(order, detail), nil, nil
}

// InitiateRefund asks the gateway to refund part or all of a captured
// payment. An amount of zero means the full remaining amount. The local
// record moves through the state machine like any other gateway fact, so the
// refund.processed webhook arriving later is a clean duplicate.
func (s *CheckoutService) InitiateRefund(ctx context.Context, userID uint64, request *types.CreateRefundRequest) (*entity.Payment, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	payment, err := s.paymentRepo.FindByGatewayPaymentID(ctx, request.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (userID != 0 && order.UserID != userID) {
		return nil, ErrPaymentNotFound
	}

	if payment.Status != entity.PaymentStatusCaptured {
		return nil, fmt.Errorf("%w: payment is not captured", ErrRefundNotAllowed)
	}

	remaining := payment.CapturedCents - payment.RefundedCents
	amount := request.AmountCents
	if amount == 0 {
		amount = remaining
	}
	if amount <= 0 || amount > remaining {
		return nil, fmt.Errorf("%w: %d exceeds refundable amount %d", ErrRefundNotAllowed, amount, remaining)
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout())
	defer cancel()
	refund, err := s.gateway.CreateRefund(refundCtx, request.GatewayPaymentID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	kind := eventRefundCreated
	switch refund.Status {
	case "processed":
		kind = eventRefundProcessed
	case "failed":
		kind = eventRefundFailed
	}

	ev := &paymentEvent{
		Kind:            kind,
		GatewayRefundID: refund.ID,
		RefundCents:     refund.Amount,
	}

	release := s.locks.Lock(payment.GatewayOrderID)
	defer release()

	fresh, err := s.paymentRepo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, ErrPaymentNotFound
	}

	updated, _, applyErr := s.applyPersist(ctx, fresh, ev)
	if applyErr != nil {
		return nil, applyErr
	}
	return updated, nil
}

// paymentFromGateway shapes a live gateway record as a read-only view for a
// payment that has no local row yet.
func paymentFromGateway(order *entity.Order, detail *gateway.PaymentEntity) *entity.Payment {
	id := detail.ID
	payment := &entity.Payment{
		OrderID:          order.ID,
		GatewayOrderID:   detail.OrderID,
		GatewayPaymentID: &id,
		AmountCents:      detail.Amount,
		Currency:         detail.Currency,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	switch detail.Status {
	case "authorized":
		payment.Status = entity.PaymentStatusAuthorized
	case "captured":
		payment.Status = entity.PaymentStatusCaptured
		payment.CapturedCents = detail.Amount
	case "refunded":
		payment.Status = entity.PaymentStatusRefunded
		payment.CapturedCents = detail.Amount
		payment.RefundedCents = detail.AmountRefunded
	case "failed":
		payment.Status = entity.PaymentStatusFailed
	default:
		payment.Status = entity.PaymentStatusCreated
	}

	assignMethodDetail(payment, detail)
	assignErrorDetail(payment, detail)
	return payment
}
