package types

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	webhookSignatureHeader = "X-Razorpay-Signature"
	webhookEventIDHeader   = "X-Razorpay-Event-Id"

	maxWebhookBodyBytes = 1 << 20
)

type OrderItemPayload struct {
	Name           string `json:"name"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	ProductRef     string `json:"productRef,omitempty"`
}

type AddressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type CreateOrderRequest struct {
	Items           []OrderItemPayload `json:"items"`
	TaxCents        int64              `json:"taxCents"`
	ShippingCents   int64              `json:"shippingCents"`
	DiscountCents   int64              `json:"discountCents"`
	ShippingAddress AddressPayload     `json:"shippingAddress"`
	Notes           string             `json:"notes,omitempty"`
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	request := &CreateOrderRequest{}
	if err := ctx.Bind(request); err != nil {
		return nil, err
	}
	return request, nil
}

func (r *CreateOrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return errors.New("items are required")
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.Name) == "" {
			return errors.New("item name is required")
		}
		if item.Quantity <= 0 {
			return errors.New("item quantity must be positive")
		}
		if item.UnitPriceCents <= 0 {
			return errors.New("item unit price must be positive")
		}
		r.Items[i].Name = strings.TrimSpace(item.Name)
	}
	if r.TaxCents < 0 || r.ShippingCents < 0 || r.DiscountCents < 0 {
		return errors.New("tax, shipping, and discount must not be negative")
	}
	if strings.TrimSpace(r.ShippingAddress.Line1) == "" {
		return errors.New("shipping address line1 is required")
	}
	if strings.TrimSpace(r.ShippingAddress.City) == "" {
		return errors.New("shipping address city is required")
	}
	if strings.TrimSpace(r.ShippingAddress.PostalCode) == "" {
		return errors.New("shipping address postal code is required")
	}
	if strings.TrimSpace(r.ShippingAddress.Country) == "" {
		return errors.New("shipping address country is required")
	}
	return nil
}

type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	request := &VerifyPaymentRequest{}
	if err := ctx.Bind(request); err != nil {
		return nil, err
	}
	request.GatewayOrderID = strings.TrimSpace(request.GatewayOrderID)
	request.GatewayPaymentID = strings.TrimSpace(request.GatewayPaymentID)
	request.Signature = strings.TrimSpace(request.Signature)
	return request, nil
}

func (r *VerifyPaymentRequest) Validate() error {
	if r.GatewayOrderID == "" {
		return errors.New("gatewayOrderId is required")
	}
	if r.GatewayPaymentID == "" {
		return errors.New("gatewayPaymentId is required")
	}
	if r.Signature == "" {
		return errors.New("signature is required")
	}
	return nil
}

type CreateRefundRequest struct {
	GatewayPaymentID string `json:"-"`
	AmountCents      int64  `json:"amountCents"`
}

func NewCreateRefundRequestFromContext(ctx echo.Context) (*CreateRefundRequest, error) {
	request := &CreateRefundRequest{}
	if err := ctx.Bind(request); err != nil {
		return nil, err
	}
	request.GatewayPaymentID = strings.TrimSpace(ctx.Param("paymentId"))
	return request, nil
}

func (r *CreateRefundRequest) Validate() error {
	if r.GatewayPaymentID == "" {
		return errors.New("payment id is required")
	}
	if r.AmountCents < 0 {
		return errors.New("amountCents must not be negative")
	}
	return nil
}

// WebhookRequest carries the raw body untouched: the signature covers the
// exact bytes the gateway sent, so re-encoding before verification would
// break it.
type WebhookRequest struct {
	EventID   string
	Signature string
	Body      []byte
}

func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return nil, err
	}

	return &WebhookRequest{
		EventID:   strings.TrimSpace(ctx.Request().Header.Get(webhookEventIDHeader)),
		Signature: strings.TrimSpace(ctx.Request().Header.Get(webhookSignatureHeader)),
		Body:      body,
	}, nil
}

// OrderIDFromContext parses the numeric order id path parameter.
func OrderIDFromContext(ctx echo.Context) (uint64, error) {
	raw := strings.TrimSpace(ctx.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("order id must be a positive integer")
	}
	return id, nil
}
