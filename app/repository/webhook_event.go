package repository

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

// ErrWebhookEventExists signals a duplicate delivery: the gateway event id
// already carries a row, so the event must be acknowledged without reapply.
var ErrWebhookEventExists = errors.New("webhook event already recorded")

type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			gateway_event_id, event_type, payment_id, payload_json, disposition, error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.GatewayEventID,
		event.EventType,
		nullableUint64Value(event.PaymentID),
		event.PayloadJSON,
		event.Disposition,
		nullableStringValue(event.Error),
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrWebhookEventExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func (r *WebhookEventRepository) Update(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		UPDATE webhook_events SET
			payment_id = ?,
			disposition = ?,
			error = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		nullableUint64Value(event.PaymentID),
		event.Disposition,
		nullableStringValue(event.Error),
		event.UpdatedAt,
		event.ID,
	)
	return err
}

// Delete removes a dedupe row after a processing failure so the gateway's
// redelivery is not mistaken for a duplicate.
func (r *WebhookEventRepository) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM webhook_events WHERE id = ?`, id)
	return err
}
