package service

import (
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
)

type eventKind string

const (
	eventAuthorized      eventKind = "authorized"
	eventCaptured        eventKind = "captured"
	eventFailed          eventKind = "failed"
	eventRefundCreated   eventKind = "refund_created"
	eventRefundProcessed eventKind = "refund_processed"
	eventRefundFailed    eventKind = "refund_failed"
)

// eventKindForWebhook maps a gateway webhook event name to the state-machine
// event kind. Unknown events are ignored by the caller.
func eventKindForWebhook(event string) (eventKind, bool) {
	switch event {
	case "payment.authorized":
		return eventAuthorized, true
	case "payment.captured":
		return eventCaptured, true
	case "payment.failed":
		return eventFailed, true
	case "refund.created":
		return eventRefundCreated, true
	case "refund.processed":
		return eventRefundProcessed, true
	case "refund.failed":
		return eventRefundFailed, true
	default:
		return "", false
	}
}

// paymentEvent is a verified gateway fact. Verification happens at the entry
// points; the state machine assumes authenticity.
type paymentEvent struct {
	Kind             eventKind
	GatewayEventID   string
	GatewayPaymentID string
	Signature        string
	AmountCents      int64
	Detail           *gateway.PaymentEntity

	GatewayRefundID string
	RefundCents     int64
}

type applyOutcome struct {
	Changed   bool
	OldStatus int32

	// Refund set when the event created or mutated a refund row;
	// RefundCreated distinguishes append from in-place update.
	Refund        *entity.Refund
	RefundCreated bool
}

// applyPaymentEvent advances the one-directional payment lifecycle:
// created -> {authorized, failed}; authorized -> {captured, failed};
// captured -> refunded via refund accumulation; failed and refunded are
// terminal. Duplicate events are no-ops; genuinely conflicting reports flag
// the record for manual review instead of overwriting.
func applyPaymentEvent(p *entity.Payment, refunds []*entity.Refund, ev *paymentEvent) (*applyOutcome, error) {
	outcome := &applyOutcome{OldStatus: p.Status}

	switch ev.Kind {
	case eventAuthorized:
		return applyAuthorized(p, ev, outcome)
	case eventCaptured:
		return applyCaptured(p, ev, outcome)
	case eventFailed:
		return applyFailed(p, ev, outcome)
	case eventRefundCreated:
		return applyRefundObservation(p, refunds, ev, entity.RefundStatusPending, outcome)
	case eventRefundProcessed:
		return applyRefundObservation(p, refunds, ev, entity.RefundStatusProcessed, outcome)
	case eventRefundFailed:
		return applyRefundObservation(p, refunds, ev, entity.RefundStatusFailed, outcome)
	default:
		return nil, fmt.Errorf("%w: unknown event kind %q", ErrMalformedEvent, ev.Kind)
	}
}

func applyAuthorized(p *entity.Payment, ev *paymentEvent, outcome *applyOutcome) (*applyOutcome, error) {
	// Authorization logically precedes every later status, so a late
	// authorized event against any advanced state is stale, not conflicting.
	if p.Status != entity.PaymentStatusCreated {
		return outcome, nil
	}

	p.Status = entity.PaymentStatusAuthorized
	claimPaymentIdentity(p, ev)
	assignMethodDetail(p, ev.Detail)
	outcome.Changed = true
	return outcome, nil
}

func applyCaptured(p *entity.Payment, ev *paymentEvent, outcome *applyOutcome) (*applyOutcome, error) {
	switch p.Status {
	case entity.PaymentStatusCaptured, entity.PaymentStatusRefunded:
		// Duplicate or stale delivery.
		return outcome, nil
	case entity.PaymentStatusFailed:
		flagPayment(p, fmt.Sprintf("captured event %s arrived after terminal failed state", ev.GatewayEventID))
		outcome.Changed = true
		return outcome, ErrConflictingTransition
	}

	if ev.AmountCents != p.AmountCents {
		flagPayment(p, fmt.Sprintf("captured amount %d does not match expected %d", ev.AmountCents, p.AmountCents))
		outcome.Changed = true
		return outcome, ErrConflictingTransition
	}

	p.Status = entity.PaymentStatusCaptured
	p.CapturedCents = ev.AmountCents
	claimPaymentIdentity(p, ev)
	assignMethodDetail(p, ev.Detail)
	outcome.Changed = true
	return outcome, nil
}

func applyFailed(p *entity.Payment, ev *paymentEvent, outcome *applyOutcome) (*applyOutcome, error) {
	switch p.Status {
	case entity.PaymentStatusFailed:
		return outcome, nil
	case entity.PaymentStatusCaptured, entity.PaymentStatusRefunded:
		flagPayment(p, fmt.Sprintf("failed event %s arrived after funds were captured", ev.GatewayEventID))
		outcome.Changed = true
		return outcome, ErrConflictingTransition
	}

	p.Status = entity.PaymentStatusFailed
	claimPaymentIdentity(p, ev)
	assignMethodDetail(p, ev.Detail)
	assignErrorDetail(p, ev.Detail)
	outcome.Changed = true
	return outcome, nil
}

// applyRefundObservation locates-or-appends the refund row by gateway refund
// id, moves its status, then recomputes the payment's refund aggregate.
func applyRefundObservation(p *entity.Payment, refunds []*entity.Refund, ev *paymentEvent, newStatus int32, outcome *applyOutcome) (*applyOutcome, error) {
	if p.Status != entity.PaymentStatusCaptured && p.Status != entity.PaymentStatusRefunded {
		flagPayment(p, fmt.Sprintf("refund event for %s against uncaptured payment", ev.GatewayRefundID))
		outcome.Changed = true
		return outcome, ErrConflictingTransition
	}

	refund := findRefund(refunds, ev.GatewayRefundID)
	if refund == nil {
		refund = &entity.Refund{
			PaymentID:       p.ID,
			GatewayRefundID: ev.GatewayRefundID,
			AmountCents:     ev.RefundCents,
			Status:          newStatus,
		}
		refunds = append(refunds, refund)
		outcome.Refund = refund
		outcome.RefundCreated = true
		outcome.Changed = true
	} else {
		if refund.Status == newStatus {
			// Duplicate delivery; refund accounting must not double-count.
			return outcome, nil
		}
		if refund.Status == entity.RefundStatusProcessed {
			flagPayment(p, fmt.Sprintf("refund %s reported %s after being processed", ev.GatewayRefundID, refundStatusName(newStatus)))
			outcome.Changed = true
			return outcome, ErrConflictingTransition
		}
		refund.Status = newStatus
		if ev.RefundCents > 0 {
			refund.AmountCents = ev.RefundCents
		}
		outcome.Refund = refund
		outcome.Changed = true
	}

	recomputeRefundAggregate(p, refunds)
	return outcome, nil
}

// recomputeRefundAggregate derives the payment's refunded amount and status
// strictly from processed refund rows. An over-refund is capped at the
// captured amount and flagged rather than reported as refunded beyond the
// charge.
func recomputeRefundAggregate(p *entity.Payment, refunds []*entity.Refund) {
	var processed int64
	for _, refund := range refunds {
		if refund.Status == entity.RefundStatusProcessed {
			processed += refund.AmountCents
		}
	}

	if processed > p.CapturedCents {
		flagPayment(p, fmt.Sprintf("processed refunds total %d exceeds captured amount %d", processed, p.CapturedCents))
		processed = p.CapturedCents
	}

	p.RefundedCents = processed
	if p.CapturedCents > 0 && processed >= p.CapturedCents {
		p.Status = entity.PaymentStatusRefunded
	}
}

func findRefund(refunds []*entity.Refund, gatewayRefundID string) *entity.Refund {
	for _, refund := range refunds {
		if refund.GatewayRefundID == gatewayRefundID {
			return refund
		}
	}
	return nil
}

func claimPaymentIdentity(p *entity.Payment, ev *paymentEvent) {
	if id := strings.TrimSpace(ev.GatewayPaymentID); id != "" && p.GatewayPaymentID == nil {
		p.GatewayPaymentID = &id
	}
	if sig := strings.TrimSpace(ev.Signature); sig != "" {
		p.Signature = &sig
	}
}

func assignMethodDetail(p *entity.Payment, detail *gateway.PaymentEntity) {
	if detail == nil {
		return
	}

	if method := normalizeMethod(detail.Method); method != "" {
		p.Method = &method
	}
	if detail.Card != nil {
		if last4 := strings.TrimSpace(detail.Card.Last4); last4 != "" {
			p.CardLast4 = &last4
		}
		if network := strings.TrimSpace(detail.Card.Network); network != "" {
			p.CardNetwork = &network
		}
	}
	if vpa := strings.TrimSpace(detail.VPA); vpa != "" {
		p.UPIVPA = &vpa
	}
	if wallet := strings.TrimSpace(detail.Wallet); wallet != "" {
		p.Wallet = &wallet
	}
	if bank := strings.TrimSpace(detail.Bank); bank != "" {
		p.Bank = &bank
	}
}

func assignErrorDetail(p *entity.Payment, detail *gateway.PaymentEntity) {
	if detail == nil {
		return
	}

	p.ErrorCode = normalizeOptionalString(detail.ErrorCode)
	p.ErrorDescription = normalizeOptionalString(detail.ErrorDescription)
	p.ErrorSource = normalizeOptionalString(detail.ErrorSource)
	p.ErrorStep = normalizeOptionalString(detail.ErrorStep)
	p.ErrorReason = normalizeOptionalString(detail.ErrorReason)
}

func flagPayment(p *entity.Payment, reason string) {
	p.FlaggedForReview = true
	trimmed := truncate(reason, 255)
	p.FlagReason = &trimmed
}

func normalizeMethod(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ""
	case entity.PaymentMethodCard, entity.PaymentMethodNetbanking, entity.PaymentMethodWallet, entity.PaymentMethodUPI, entity.PaymentMethodEMI:
		return strings.ToLower(strings.TrimSpace(raw))
	default:
		return entity.PaymentMethodOther
	}
}

func refundStatusName(status int32) string {
	switch status {
	case entity.RefundStatusPending:
		return "pending"
	case entity.RefundStatusProcessed:
		return "processed"
	case entity.RefundStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
