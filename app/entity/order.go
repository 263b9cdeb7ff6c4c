package entity

import "time"

const (
	OrderStatusPending    int32 = 1
	OrderStatusProcessing int32 = 2
	OrderStatusShipped    int32 = 3
	OrderStatusDelivered  int32 = 4
	OrderStatusCancelled  int32 = 5
)

const (
	RefundStateNone      int32 = 0
	RefundStatePending   int32 = 1
	RefundStateProcessed int32 = 10
	RefundStateFailed    int32 = 20
)

type OrderItem struct {
	Name           string `json:"name"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	ProductRef     string `json:"product_ref,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID uint64

	UserID uint64

	// Receipt is our side of the correlation: it is sent to the gateway when
	// the gateway order is created. GatewayOrderID is the gateway's, and is
	// the key every webhook and verify call correlates on.
	Receipt        string
	GatewayOrderID string

	Items []OrderItem

	AmountCents   int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	Currency      string

	ShippingAddress Address
	Notes           *string

	Status      int32
	RefundState int32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemTotalCents is the sum of line totals before tax, shipping, and discount.
func (o *Order) ItemTotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += int64(item.Quantity) * item.UnitPriceCents
	}
	return total
}
