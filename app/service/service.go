package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultBatchSize      = int32(100)

	// applyMaxRetries bounds the re-read/re-apply loop when the version
	// compare-and-swap loses to a concurrent applier in another process.
	applyMaxRetries = 3
)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uint64) (*entity.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.Order, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error)
}

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	Update(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*entity.Payment, error)
	ListByOrderID(ctx context.Context, orderID uint64) ([]*entity.Payment, error)
	ListStaleAuthorized(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
}

type refundRepository interface {
	Create(ctx context.Context, refund *entity.Refund) error
	Update(ctx context.Context, refund *entity.Refund) error
	ListByPaymentID(ctx context.Context, paymentID uint64) ([]*entity.Refund, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Refund, error)
}

type webhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEvent) error
	Update(ctx context.Context, event *entity.WebhookEvent) error
	Delete(ctx context.Context, id uint64) error
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type gatewayClient interface {
	KeyID() string
	CreateOrder(ctx context.Context, input *gateway.CreateOrderInput) (*gateway.OrderEntity, error)
	FetchPayment(ctx context.Context, gatewayPaymentID string) (*gateway.PaymentEntity, error)
	FetchRefund(ctx context.Context, gatewayRefundID string) (*gateway.RefundEntity, error)
	CreateRefund(ctx context.Context, gatewayPaymentID string, amountCents int64) (*gateway.RefundEntity, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	VerifyAndParseWebhook(payload []byte, signature string) (*gateway.WebhookEvent, error)
}

type CheckoutService struct {
	orderRepo   orderRepository
	paymentRepo paymentRepository
	refundRepo  refundRepository
	webhookRepo webhookEventRepository
	eventRepo   paymentEventRepository
	gateway     gatewayClient
	notifier    Notifier
	paymentsCfg config.PaymentsConfig
	locks       *keyedMutex
	logger      logrus.FieldLogger
}

func NewCheckoutService(
	orderRepo orderRepository,
	paymentRepo paymentRepository,
	refundRepo refundRepository,
	webhookRepo webhookEventRepository,
	eventRepo paymentEventRepository,
	gatewayClient gatewayClient,
	notifier Notifier,
	paymentsCfg config.PaymentsConfig,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		webhookRepo: webhookRepo,
		eventRepo:   eventRepo,
		gateway:     gatewayClient,
		notifier:    notifier,
		paymentsCfg: paymentsCfg,
		locks:       newKeyedMutex(),
		logger:      factory.NewModuleLogger("checkout-service"),
	}
}

// applyPersist runs the state machine against the freshest persisted state
// and writes the result. The caller must hold the per-order lock. A lost
// compare-and-swap re-reads and re-applies; the state machine's idempotency
// makes the retry safe.
func (s *CheckoutService) applyPersist(ctx context.Context, payment *entity.Payment, ev *paymentEvent) (*entity.Payment, *applyOutcome, error) {
	for attempt := 0; attempt < applyMaxRetries; attempt++ {
		refunds, err := s.refundRepo.ListByPaymentID(ctx, payment.ID)
		if err != nil {
			return nil, nil, err
		}

		outcome, applyErr := applyPaymentEvent(payment, refunds, ev)
		if applyErr != nil && !errors.Is(applyErr, ErrConflictingTransition) {
			return nil, nil, applyErr
		}

		if !outcome.Changed {
			return payment, outcome, applyErr
		}

		now := time.Now().UTC()
		payment.UpdatedAt = now

		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				fresh, findErr := s.paymentRepo.FindByID(ctx, payment.ID)
				if findErr != nil {
					return nil, nil, findErr
				}
				if fresh == nil {
					return nil, nil, ErrPaymentNotFound
				}
				payment = fresh
				continue
			}
			return nil, nil, err
		}

		if outcome.Refund != nil {
			outcome.Refund.PaymentID = payment.ID
			outcome.Refund.UpdatedAt = now
			if outcome.RefundCreated {
				outcome.Refund.CreatedAt = now
				if err := s.refundRepo.Create(ctx, outcome.Refund); err != nil && !errors.Is(err, repository.ErrRefundAlreadyExists) {
					return nil, nil, err
				}
			} else if err := s.refundRepo.Update(ctx, outcome.Refund); err != nil {
				return nil, nil, err
			}
		}

		s.recordPaymentEvent(ctx, payment, ev, outcome, now)

		if err := s.reprojectOrder(ctx, payment.OrderID, now); err != nil {
			return nil, nil, err
		}

		return payment, outcome, applyErr
	}

	return nil, nil, repository.ErrVersionConflict
}

func (s *CheckoutService) recordPaymentEvent(ctx context.Context, payment *entity.Payment, ev *paymentEvent, outcome *applyOutcome, now time.Time) {
	var oldStatus *int32
	if outcome.OldStatus != payment.Status {
		old := outcome.OldStatus
		oldStatus = &old
	}

	var gatewayEventID *string
	if id := strings.TrimSpace(ev.GatewayEventID); id != "" {
		gatewayEventID = &id
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID:      payment.ID,
		EventType:      string(ev.Kind),
		OldStatus:      oldStatus,
		NewStatus:      payment.Status,
		GatewayEventID: gatewayEventID,
		CreatedAt:      now,
	})
}

// reprojectOrder recomputes the order's status from the full payment history
// and notifies exactly once per genuine transition. Idempotent by
// construction: projecting the same history again writes nothing.
func (s *CheckoutService) reprojectOrder(ctx context.Context, orderID uint64, now time.Time) error {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}

	payments, err := s.paymentRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	refundsByPayment := make(map[uint64][]*entity.Refund, len(payments))
	for _, p := range payments {
		refunds, err := s.refundRepo.ListByPaymentID(ctx, p.ID)
		if err != nil {
			return err
		}
		refundsByPayment[p.ID] = refunds
	}

	newStatus, newRefundState := projectOrder(order, payments, refundsByPayment)
	if newStatus == order.Status && newRefundState == order.RefundState {
		return nil
	}

	oldStatus := order.Status
	order.Status = newStatus
	order.RefundState = newRefundState
	order.UpdatedAt = now

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return err
	}

	if newStatus != oldStatus && s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, order, oldStatus)
	}

	return nil
}

// locateAttempt resolves the payment row a gateway payment id belongs to,
// claiming the order's open attempt or recording a retry attempt the
// checkout flow never saw. Must run under the per-order lock.
func (s *CheckoutService) locateAttempt(ctx context.Context, order *entity.Order, gatewayPaymentID string) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByGatewayPaymentID(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		return payment, nil
	}

	payments, err := s.paymentRepo.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if p.Status == entity.PaymentStatusCreated && p.GatewayPaymentID == nil {
			return p, nil
		}
	}

	now := time.Now().UTC()
	attempt := &entity.Payment{
		OrderID:        order.ID,
		GatewayOrderID: order.GatewayOrderID,
		AmountCents:    order.AmountCents,
		Currency:       order.Currency,
		Status:         entity.PaymentStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.paymentRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return s.paymentRepo.FindByGatewayPaymentID(ctx, gatewayPaymentID)
		}
		return nil, err
	}

	return attempt, nil
}

// CheckoutKeyID is the public key id the browser widget opens the payment
// sheet with.
func (s *CheckoutService) CheckoutKeyID() string {
	return s.gateway.KeyID()
}

func (s *CheckoutService) gatewayTimeout() time.Duration {
	if s.paymentsCfg.GatewayTimeout > 0 {
		return s.paymentsCfg.GatewayTimeout
	}
	return defaultGatewayTimeout
}

func (s *CheckoutService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
