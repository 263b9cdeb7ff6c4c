package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// CheckoutResponse is what the browser checkout widget needs to open the
// gateway's payment sheet.
type CheckoutResponse struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	KeyID          string `json:"keyId"`
	AmountCents    int64  `json:"amountCents"`
	Currency       string `json:"currency"`
}

type OrderResponse struct {
	ID              uint64             `json:"id"`
	Receipt         string             `json:"receipt"`
	GatewayOrderID  string             `json:"gatewayOrderId"`
	Items           []OrderItemPayload `json:"items"`
	AmountCents     int64              `json:"amountCents"`
	TaxCents        int64              `json:"taxCents"`
	ShippingCents   int64              `json:"shippingCents"`
	DiscountCents   int64              `json:"discountCents"`
	Currency        string             `json:"currency"`
	ShippingAddress AddressPayload     `json:"shippingAddress"`
	Notes           string             `json:"notes,omitempty"`
	Status          string             `json:"status"`
	RefundState     string             `json:"refundState"`
	CreatedAt       string             `json:"createdAt"`
	UpdatedAt       string             `json:"updatedAt"`
}

type CreateOrderResponse struct {
	Order    *OrderResponse    `json:"order"`
	Checkout *CheckoutResponse `json:"checkout"`
}

type OrderDetailResponse struct {
	Order    *OrderResponse     `json:"order"`
	Payments []*PaymentResponse `json:"payments"`
}

type PaymentResponse struct {
	ID                uint64 `json:"id,omitempty"`
	OrderID           uint64 `json:"orderId,omitempty"`
	GatewayOrderID    string `json:"gatewayOrderId"`
	GatewayPaymentID  string `json:"gatewayPaymentId,omitempty"`
	AmountCents       int64  `json:"amountCents"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	Method            string `json:"method,omitempty"`
	CardLast4         string `json:"cardLast4,omitempty"`
	CardNetwork       string `json:"cardNetwork,omitempty"`
	UPIVPA            string `json:"upiVpa,omitempty"`
	Wallet            string `json:"wallet,omitempty"`
	Bank              string `json:"bank,omitempty"`
	ErrorCode         string `json:"errorCode,omitempty"`
	ErrorDescription  string `json:"errorDescription,omitempty"`
	CapturedCents     int64  `json:"capturedCents"`
	RefundedCents     int64  `json:"refundedCents"`
	PartiallyRefunded bool   `json:"partiallyRefunded"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

type RefundResponse struct {
	ID              uint64 `json:"id"`
	GatewayRefundID string `json:"gatewayRefundId"`
	AmountCents     int64  `json:"amountCents"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

type PaymentDetailResponse struct {
	Payment *PaymentResponse  `json:"payment"`
	Refunds []*RefundResponse `json:"refunds"`
}
