package types

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newRequestContext(method, target, body string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestCreateOrderValidate(t *testing.T) {
	req := &CreateOrderRequest{}
	if err := req.Validate(); err == nil {
		t.Fatal("expected items validation error")
	}

	req = &CreateOrderRequest{
		Items: []OrderItemPayload{{Name: "  Espresso Machine  ", Quantity: 1, UnitPriceCents: 450000}},
		ShippingAddress: AddressPayload{
			Line1:      "14 MG Road",
			City:       "Bengaluru",
			PostalCode: "560001",
			Country:    "IN",
		},
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if req.Items[0].Name != "Espresso Machine" {
		t.Fatalf("expected trimmed item name, got %q", req.Items[0].Name)
	}

	req.Items[0].Quantity = 0
	if err := req.Validate(); err == nil {
		t.Fatal("expected quantity validation error")
	}

	req.Items[0].Quantity = 1
	req.DiscountCents = -1
	if err := req.Validate(); err == nil {
		t.Fatal("expected negative discount validation error")
	}

	req.DiscountCents = 0
	req.ShippingAddress.PostalCode = ""
	if err := req.Validate(); err == nil {
		t.Fatal("expected postal code validation error")
	}
}

func TestNewVerifyPaymentRequestTrimsFields(t *testing.T) {
	ctx := newRequestContext("POST", "/payments/verify",
		`{"gatewayOrderId": " order_g1 ", "gatewayPaymentId": " pay_g1 ", "signature": " abc "}`)

	parsed, err := NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GatewayOrderID != "order_g1" || parsed.GatewayPaymentID != "pay_g1" || parsed.Signature != "abc" {
		t.Fatalf("expected trimmed fields, got %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	parsed.Signature = ""
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected signature validation error")
	}
}

func TestNewCreateRefundRequestReadsPathParam(t *testing.T) {
	ctx := newRequestContext("POST", "/payments/pay_g1/refund", `{"amountCents": 2500}`)
	ctx.SetParamNames("paymentId")
	ctx.SetParamValues("pay_g1")

	parsed, err := NewCreateRefundRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GatewayPaymentID != "pay_g1" {
		t.Fatalf("expected payment id from path, got %q", parsed.GatewayPaymentID)
	}
	if parsed.AmountCents != 2500 {
		t.Fatalf("expected amount 2500, got %d", parsed.AmountCents)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	parsed.AmountCents = -1
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected negative amount validation error")
	}
}

func TestNewWebhookRequestKeepsRawBody(t *testing.T) {
	body := `{"event":"payment.captured","payload":{}}`
	ctx := newRequestContext("POST", "/payments/webhook", body)
	ctx.Request().Header.Set("X-Razorpay-Signature", " deadbeef ")
	ctx.Request().Header.Set("X-Razorpay-Event-Id", " evt_1 ")

	parsed, err := NewWebhookRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(parsed.Body) != body {
		t.Fatalf("expected untouched body, got %q", parsed.Body)
	}
	if parsed.Signature != "deadbeef" {
		t.Fatalf("expected trimmed signature, got %q", parsed.Signature)
	}
	if parsed.EventID != "evt_1" {
		t.Fatalf("expected trimmed event id, got %q", parsed.EventID)
	}
}

func TestOrderIDFromContext(t *testing.T) {
	ctx := newRequestContext("GET", "/orders/42", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("42")

	id, err := OrderIDFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != 42 {
		t.Fatalf("expected order id 42, got %d", id)
	}

	ctx.SetParamValues("abc")
	if _, err := OrderIDFromContext(ctx); err == nil {
		t.Fatal("expected error for non-numeric order id")
	}

	ctx.SetParamValues("0")
	if _, err := OrderIDFromContext(ctx); err == nil {
		t.Fatal("expected error for zero order id")
	}
}
