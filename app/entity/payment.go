package entity

import "time"

const (
	PaymentStatusCreated    int32 = 1
	PaymentStatusAuthorized int32 = 2
	PaymentStatusCaptured   int32 = 10
	PaymentStatusFailed     int32 = 20
	PaymentStatusRefunded   int32 = 30
)

const (
	PaymentMethodCard       = "card"
	PaymentMethodNetbanking = "netbanking"
	PaymentMethodWallet     = "wallet"
	PaymentMethodUPI        = "upi"
	PaymentMethodEMI        = "emi"
	PaymentMethodOther      = "other"
)

type Payment struct {
	ID uint64

	OrderID uint64

	GatewayOrderID   string
	GatewayPaymentID *string

	AmountCents int64
	Currency    string

	Status int32

	Method      *string
	CardLast4   *string
	CardNetwork *string
	UPIVPA      *string
	Wallet      *string
	Bank        *string

	Signature *string

	ErrorCode        *string
	ErrorDescription *string
	ErrorSource      *string
	ErrorStep        *string
	ErrorReason      *string

	CapturedCents int64
	// RefundedCents is derived from refund rows whose status is processed,
	// capped at CapturedCents. Never set from an unverified external claim.
	RefundedCents int64

	FlaggedForReview bool
	FlagReason       *string

	// Version guards concurrent appliers across processes; every update is a
	// compare-and-swap on this column.
	Version int32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether no further status transition is permitted.
func (p *Payment) Terminal() bool {
	return p.Status == PaymentStatusFailed || p.Status == PaymentStatusRefunded
}

// PartiallyRefunded is a derived condition, never a persisted status.
func (p *Payment) PartiallyRefunded() bool {
	return p.Status == PaymentStatusCaptured && p.RefundedCents > 0 && p.RefundedCents < p.CapturedCents
}
