package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

var (
	ErrInvalidSignature = errors.New("invalid gateway signature")
	ErrMalformedPayload = errors.New("malformed gateway payload")
)

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
}

type RazorpayClient struct {
	cfg    RazorpayConfig
	client *http.Client
}

func NewRazorpayClient(cfg RazorpayConfig) *RazorpayClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &RazorpayClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// KeyID is handed to the browser checkout widget along with the gateway
// order id.
func (c *RazorpayClient) KeyID() string {
	return c.cfg.KeyID
}

type OrderEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type PaymentCard struct {
	Last4   string `json:"last4"`
	Network string `json:"network"`
}

type PaymentEntity struct {
	ID             string       `json:"id"`
	OrderID        string       `json:"order_id"`
	Amount         int64        `json:"amount"`
	AmountRefunded int64        `json:"amount_refunded"`
	Currency       string       `json:"currency"`
	Status         string       `json:"status"`
	Method         string       `json:"method"`
	Card           *PaymentCard `json:"card"`
	VPA            string       `json:"vpa"`
	Wallet         string       `json:"wallet"`
	Bank           string       `json:"bank"`

	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	ErrorSource      string `json:"error_source"`
	ErrorStep        string `json:"error_step"`
	ErrorReason      string `json:"error_reason"`
}

type RefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type CreateOrderInput struct {
	AmountCents int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, input *CreateOrderInput) (*OrderEntity, error) {
	if strings.TrimSpace(c.cfg.KeyID) == "" || strings.TrimSpace(c.cfg.KeySecret) == "" {
		return nil, errors.New("gateway api key is not configured")
	}

	notes := input.Notes
	if notes == nil {
		notes = map[string]string{}
	}
	body := map[string]interface{}{
		"amount":   input.AmountCents,
		"currency": strings.ToUpper(strings.TrimSpace(input.Currency)),
		"receipt":  input.Receipt,
		"notes":    notes,
	}

	raw, err := c.postJSON(ctx, "/orders", body)
	if err != nil {
		return nil, err
	}

	var order OrderEntity
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, errors.New("gateway order id missing")
	}

	return &order, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, gatewayPaymentID string) (*PaymentEntity, error) {
	raw, err := c.getJSON(ctx, "/payments/"+url.PathEscape(gatewayPaymentID))
	if err != nil {
		return nil, err
	}

	var payment PaymentEntity
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *RazorpayClient) FetchRefund(ctx context.Context, gatewayRefundID string) (*RefundEntity, error) {
	raw, err := c.getJSON(ctx, "/refunds/"+url.PathEscape(gatewayRefundID))
	if err != nil {
		return nil, err
	}

	var refund RefundEntity
	if err := json.Unmarshal(raw, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *RazorpayClient) CreateRefund(ctx context.Context, gatewayPaymentID string, amountCents int64) (*RefundEntity, error) {
	body := map[string]interface{}{}
	if amountCents > 0 {
		body["amount"] = amountCents
	}

	raw, err := c.postJSON(ctx, "/payments/"+url.PathEscape(gatewayPaymentID)+"/refund", body)
	if err != nil {
		return nil, err
	}

	var refund RefundEntity
	if err := json.Unmarshal(raw, &refund); err != nil {
		return nil, err
	}
	if strings.TrimSpace(refund.ID) == "" {
		return nil, errors.New("gateway refund id missing")
	}
	return &refund, nil
}

// VerifyPaymentSignature checks the signature the browser hands back after
// checkout: HMAC over "orderID|paymentID" keyed with the API key secret.
func (c *RazorpayClient) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	ok, err := VerifySignature(PaymentCorrelation(gatewayOrderID, gatewayPaymentID), signature, c.cfg.KeySecret)
	return err == nil && ok
}

// WebhookEvent is the decoded envelope, a tagged variant keyed by the event
// category: exactly one of Payment/Refund is set for known categories.
type WebhookEvent struct {
	Event     string
	CreatedAt int64
	Payment   *PaymentEntity
	Refund    *RefundEntity
}

// VerifyAndParseWebhook verifies the header signature over the raw body
// bytes, then decodes the envelope. Signature failure is ErrInvalidSignature;
// an undecodable body after a valid signature is ErrMalformedPayload.
func (c *RazorpayClient) VerifyAndParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	ok, err := VerifySignature(payload, strings.TrimSpace(signature), c.cfg.WebhookSecret)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	var envelope struct {
		Event     string          `json:"event"`
		CreatedAt int64           `json:"created_at"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(envelope.Event) == "" {
		return nil, fmt.Errorf("%w: event field missing", ErrMalformedPayload)
	}

	event := &WebhookEvent{
		Event:     envelope.Event,
		CreatedAt: envelope.CreatedAt,
	}

	category := envelope.Event
	if idx := strings.IndexByte(category, '.'); idx >= 0 {
		category = category[:idx]
	}

	switch category {
	case "payment":
		var wrapper struct {
			Payment struct {
				Entity *PaymentEntity `json:"entity"`
			} `json:"payment"`
		}
		if err := json.Unmarshal(envelope.Payload, &wrapper); err != nil || wrapper.Payment.Entity == nil {
			return nil, fmt.Errorf("%w: payment entity missing for %s", ErrMalformedPayload, envelope.Event)
		}
		event.Payment = wrapper.Payment.Entity
	case "refund":
		var wrapper struct {
			Refund struct {
				Entity *RefundEntity `json:"entity"`
			} `json:"refund"`
		}
		if err := json.Unmarshal(envelope.Payload, &wrapper); err != nil || wrapper.Refund.Entity == nil {
			return nil, fmt.Errorf("%w: refund entity missing for %s", ErrMalformedPayload, envelope.Event)
		}
		event.Refund = wrapper.Refund.Entity
	default:
		// Unknown category: callers log and ignore. No key probing.
	}

	return event, nil
}

func (c *RazorpayClient) postJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	return c.do(req, path)
}

func (c *RazorpayClient) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	return c.do(req, path)
}

func (c *RazorpayClient) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}
