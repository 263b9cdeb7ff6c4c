package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
	// ErrVersionConflict means another applier updated the row between our
	// read and our write; the caller must re-read and re-apply.
	ErrVersionConflict = errors.New("payment version conflict")
)

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, order_id, gateway_order_id, gateway_payment_id,
	amount_cents, currency, status,
	method, card_last4, card_network, upi_vpa, wallet, bank, signature,
	error_code, error_description, error_source, error_step, error_reason,
	captured_cents, refunded_cents, flagged_for_review, flag_reason,
	version, created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			order_id, gateway_order_id, gateway_payment_id,
			amount_cents, currency, status,
			method, card_last4, card_network, upi_vpa, wallet, bank, signature,
			error_code, error_description, error_source, error_step, error_reason,
			captured_cents, refunded_cents, flagged_for_review, flag_reason,
			version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.OrderID,
		payment.GatewayOrderID,
		nullableStringValue(payment.GatewayPaymentID),
		payment.AmountCents,
		payment.Currency,
		payment.Status,
		nullableStringValue(payment.Method),
		nullableStringValue(payment.CardLast4),
		nullableStringValue(payment.CardNetwork),
		nullableStringValue(payment.UPIVPA),
		nullableStringValue(payment.Wallet),
		nullableStringValue(payment.Bank),
		nullableStringValue(payment.Signature),
		nullableStringValue(payment.ErrorCode),
		nullableStringValue(payment.ErrorDescription),
		nullableStringValue(payment.ErrorSource),
		nullableStringValue(payment.ErrorStep),
		nullableStringValue(payment.ErrorReason),
		payment.CapturedCents,
		payment.RefundedCents,
		payment.FlaggedForReview,
		nullableStringValue(payment.FlagReason),
		payment.Version,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

// Update is a compare-and-swap on the version column. On success the
// in-memory version is advanced to match the row.
func (r *PaymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	query := `
		UPDATE payments SET
			gateway_payment_id = ?,
			status = ?,
			method = ?,
			card_last4 = ?,
			card_network = ?,
			upi_vpa = ?,
			wallet = ?,
			bank = ?,
			signature = ?,
			error_code = ?,
			error_description = ?,
			error_source = ?,
			error_step = ?,
			error_reason = ?,
			captured_cents = ?,
			refunded_cents = ?,
			flagged_for_review = ?,
			flag_reason = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(payment.GatewayPaymentID),
		payment.Status,
		nullableStringValue(payment.Method),
		nullableStringValue(payment.CardLast4),
		nullableStringValue(payment.CardNetwork),
		nullableStringValue(payment.UPIVPA),
		nullableStringValue(payment.Wallet),
		nullableStringValue(payment.Bank),
		nullableStringValue(payment.Signature),
		nullableStringValue(payment.ErrorCode),
		nullableStringValue(payment.ErrorDescription),
		nullableStringValue(payment.ErrorSource),
		nullableStringValue(payment.ErrorStep),
		nullableStringValue(payment.ErrorReason),
		payment.CapturedCents,
		payment.RefundedCents,
		payment.FlaggedForReview,
		nullableStringValue(payment.FlagReason),
		payment.UpdatedAt,
		payment.ID,
		payment.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, findErr := r.FindByID(ctx, payment.ID)
		if findErr != nil {
			return findErr
		}
		if existing == nil {
			return ErrPaymentNotFound
		}
		return ErrVersionConflict
	}

	payment.Version++
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_payment_id = ? LIMIT 1`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, gatewayPaymentID), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) ListByOrderID(ctx context.Context, orderID uint64) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) ListStaleAuthorized(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND gateway_payment_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, entity.PaymentStatusAuthorized, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var gatewayPaymentID sql.NullString
	var method sql.NullString
	var cardLast4 sql.NullString
	var cardNetwork sql.NullString
	var upiVPA sql.NullString
	var wallet sql.NullString
	var bank sql.NullString
	var signature sql.NullString
	var errorCode sql.NullString
	var errorDescription sql.NullString
	var errorSource sql.NullString
	var errorStep sql.NullString
	var errorReason sql.NullString
	var flagReason sql.NullString

	err := scan.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.GatewayOrderID,
		&gatewayPaymentID,
		&payment.AmountCents,
		&payment.Currency,
		&payment.Status,
		&method,
		&cardLast4,
		&cardNetwork,
		&upiVPA,
		&wallet,
		&bank,
		&signature,
		&errorCode,
		&errorDescription,
		&errorSource,
		&errorStep,
		&errorReason,
		&payment.CapturedCents,
		&payment.RefundedCents,
		&payment.FlaggedForReview,
		&flagReason,
		&payment.Version,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.GatewayPaymentID = stringPtrFromNull(gatewayPaymentID)
	payment.Method = stringPtrFromNull(method)
	payment.CardLast4 = stringPtrFromNull(cardLast4)
	payment.CardNetwork = stringPtrFromNull(cardNetwork)
	payment.UPIVPA = stringPtrFromNull(upiVPA)
	payment.Wallet = stringPtrFromNull(wallet)
	payment.Bank = stringPtrFromNull(bank)
	payment.Signature = stringPtrFromNull(signature)
	payment.ErrorCode = stringPtrFromNull(errorCode)
	payment.ErrorDescription = stringPtrFromNull(errorDescription)
	payment.ErrorSource = stringPtrFromNull(errorSource)
	payment.ErrorStep = stringPtrFromNull(errorStep)
	payment.ErrorReason = stringPtrFromNull(errorReason)
	payment.FlagReason = stringPtrFromNull(flagReason)

	return nil
}
