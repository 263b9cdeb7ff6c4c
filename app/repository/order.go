package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, receipt, gateway_order_id, items_json,
	amount_cents, tax_cents, shipping_cents, discount_cents, currency,
	shipping_address_json, notes, status, refund_state, created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	itemsJSON, err := serializeJSON(order.Items)
	if err != nil {
		return err
	}
	addressJSON, err := serializeJSON(order.ShippingAddress)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			user_id, receipt, gateway_order_id, items_json,
			amount_cents, tax_cents, shipping_cents, discount_cents, currency,
			shipping_address_json, notes, status, refund_state, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.UserID,
		order.Receipt,
		order.GatewayOrderID,
		itemsJSON,
		order.AmountCents,
		order.TaxCents,
		order.ShippingCents,
		order.DiscountCents,
		order.Currency,
		addressJSON,
		nullableStringValue(order.Notes),
		order.Status,
		order.RefundState,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	query := `
		UPDATE orders SET
			notes = ?,
			status = ?,
			refund_state = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(order.Notes),
		order.Status,
		order.RefundState,
		order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, id), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_id = ? LIMIT 1`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, gatewayOrderID), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ?
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, entity.OrderStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		item := &entity.Order{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var itemsJSON string
	var addressJSON string
	var notes sql.NullString

	err := scan.Scan(
		&order.ID,
		&order.UserID,
		&order.Receipt,
		&order.GatewayOrderID,
		&itemsJSON,
		&order.AmountCents,
		&order.TaxCents,
		&order.ShippingCents,
		&order.DiscountCents,
		&order.Currency,
		&addressJSON,
		&notes,
		&order.Status,
		&order.RefundState,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.Notes = stringPtrFromNull(notes)

	order.Items = []entity.OrderItem{}
	if err := parseJSON(itemsJSON, &order.Items); err != nil {
		return err
	}
	if err := parseJSON(addressJSON, &order.ShippingAddress); err != nil {
		return err
	}

	return nil
}
