package entity

import "time"

const (
	RefundStatusPending   int32 = 1
	RefundStatusProcessed int32 = 10
	RefundStatusFailed    int32 = 20
)

type Refund struct {
	ID uint64

	PaymentID uint64

	GatewayRefundID string

	AmountCents int64
	Status      int32

	CreatedAt time.Time
	UpdatedAt time.Time
}
