package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

var ErrRefundAlreadyExists = errors.New("refund already exists")

type RefundRepository struct {
	db DBTX
}

func NewRefundRepository(db DBTX) *RefundRepository {
	return &RefundRepository{db: db}
}

const refundColumns = `id, payment_id, gateway_refund_id, amount_cents, status, created_at, updated_at`

func (r *RefundRepository) Create(ctx context.Context, refund *entity.Refund) error {
	query := `
		INSERT INTO refunds (
			payment_id, gateway_refund_id, amount_cents, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		refund.PaymentID,
		refund.GatewayRefundID,
		refund.AmountCents,
		refund.Status,
		refund.CreatedAt,
		refund.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrRefundAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	refund.ID = uint64(id)
	return nil
}

func (r *RefundRepository) Update(ctx context.Context, refund *entity.Refund) error {
	query := `
		UPDATE refunds SET
			amount_cents = ?,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		refund.AmountCents,
		refund.Status,
		refund.UpdatedAt,
		refund.ID,
	)
	return err
}

func (r *RefundRepository) ListByPaymentID(ctx context.Context, paymentID uint64) ([]*entity.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE payment_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := make([]*entity.Refund, 0)
	for rows.Next() {
		item := &entity.Refund{}
		if err := scanRefund(rows, item); err != nil {
			return nil, err
		}
		refunds = append(refunds, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return refunds, nil
}

func (r *RefundRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM refunds
		WHERE status = ?
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, entity.RefundStatusPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := make([]*entity.Refund, 0)
	for rows.Next() {
		item := &entity.Refund{}
		if err := scanRefund(rows, item); err != nil {
			return nil, err
		}
		refunds = append(refunds, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return refunds, nil
}

func scanRefund(scan rowScanner, refund *entity.Refund) error {
	return scan.Scan(
		&refund.ID,
		&refund.PaymentID,
		&refund.GatewayRefundID,
		&refund.AmountCents,
		&refund.Status,
		&refund.CreatedAt,
		&refund.UpdatedAt,
	)
}
