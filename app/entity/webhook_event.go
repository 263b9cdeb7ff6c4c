package entity

import "time"

const (
	WebhookDispositionReceived  int32 = 1
	WebhookDispositionProcessed int32 = 10
	WebhookDispositionIgnored   int32 = 11
	WebhookDispositionRejected  int32 = 20
	WebhookDispositionFlagged   int32 = 21
)

// WebhookEvent is the audit and dedupe record for inbound gateway webhooks.
// GatewayEventID carries a unique index; a duplicate delivery fails the
// insert and is acknowledged without reprocessing.
type WebhookEvent struct {
	ID uint64

	GatewayEventID string
	EventType      string

	PaymentID *uint64

	PayloadJSON string

	Disposition int32
	Error       *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
