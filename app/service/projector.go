package service

import "github.com/vibast-solutions/ms-go-checkout/app/entity"

// projectOrder derives the order's status and refund sub-state from the full
// payment attempt history. It is a pure function, recomputed after every
// successful payment transition rather than patched incrementally, so the
// order record can never drift from its payments.
func projectOrder(order *entity.Order, payments []*entity.Payment, refundsByPayment map[uint64][]*entity.Refund) (int32, int32) {
	var winning *entity.Payment
	for _, p := range payments {
		if p.Status == entity.PaymentStatusCaptured || p.Status == entity.PaymentStatusRefunded {
			winning = p
			break
		}
	}

	if winning == nil {
		// No successful attempt: failed attempts permit retry, and a cancelled
		// order stays cancelled.
		if order.Status == entity.OrderStatusCancelled {
			return entity.OrderStatusCancelled, order.RefundState
		}
		return entity.OrderStatusPending, entity.RefundStateNone
	}

	refundState := projectRefundState(winning, refundsByPayment[winning.ID])

	if winning.Status == entity.PaymentStatusRefunded {
		return entity.OrderStatusCancelled, refundState
	}

	// Capture is the commit point. Fulfillment statuses are operator-owned
	// and never regressed here.
	switch order.Status {
	case entity.OrderStatusShipped, entity.OrderStatusDelivered:
		return order.Status, refundState
	default:
		return entity.OrderStatusProcessing, refundState
	}
}

func projectRefundState(p *entity.Payment, refunds []*entity.Refund) int32 {
	if p.Status == entity.PaymentStatusRefunded {
		return entity.RefundStateProcessed
	}

	var sawFailed bool
	for _, refund := range refunds {
		switch refund.Status {
		case entity.RefundStatusPending:
			return entity.RefundStatePending
		case entity.RefundStatusFailed:
			sawFailed = true
		}
	}

	if p.RefundedCents > 0 {
		return entity.RefundStateProcessed
	}
	if sawFailed {
		return entity.RefundStateFailed
	}
	return entity.RefundStateNone
}
