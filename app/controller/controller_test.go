package controller

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

var errGatewayDown = errors.New("gateway connection refused")

type controllerOrderRepo struct {
	orders map[uint64]*entity.Order
	nextID uint64
}

func newControllerOrderRepo() *controllerOrderRepo {
	return &controllerOrderRepo{orders: map[uint64]*entity.Order{}, nextID: 1}
}

func (r *controllerOrderRepo) Create(_ context.Context, order *entity.Order) error {
	id := r.nextID
	r.nextID++
	copyItem := *order
	copyItem.ID = id
	r.orders[id] = &copyItem
	order.ID = id
	return nil
}

func (r *controllerOrderRepo) Update(_ context.Context, order *entity.Order) error {
	copyItem := *order
	r.orders[order.ID] = &copyItem
	return nil
}

func (r *controllerOrderRepo) FindByID(_ context.Context, id uint64) (*entity.Order, error) {
	item, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *controllerOrderRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*entity.Order, error) {
	for _, item := range r.orders {
		if item.GatewayOrderID == gatewayOrderID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *controllerOrderRepo) ListStalePending(context.Context, time.Time, int32) ([]*entity.Order, error) {
	return []*entity.Order{}, nil
}

type controllerPaymentRepo struct {
	payments map[uint64]*entity.Payment
	nextID   uint64
}

func newControllerPaymentRepo() *controllerPaymentRepo {
	return &controllerPaymentRepo{payments: map[uint64]*entity.Payment{}, nextID: 1}
}

func (r *controllerPaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	id := r.nextID
	r.nextID++
	copyItem := *payment
	copyItem.ID = id
	r.payments[id] = &copyItem
	payment.ID = id
	return nil
}

func (r *controllerPaymentRepo) Update(_ context.Context, payment *entity.Payment) error {
	stored, ok := r.payments[payment.ID]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	if stored.Version != payment.Version {
		return repository.ErrVersionConflict
	}
	copyItem := *payment
	copyItem.Version++
	r.payments[payment.ID] = &copyItem
	payment.Version++
	return nil
}

func (r *controllerPaymentRepo) FindByID(_ context.Context, id uint64) (*entity.Payment, error) {
	item, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *controllerPaymentRepo) FindByGatewayPaymentID(_ context.Context, gatewayPaymentID string) (*entity.Payment, error) {
	for _, item := range r.payments {
		if item.GatewayPaymentID != nil && *item.GatewayPaymentID == gatewayPaymentID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *controllerPaymentRepo) ListByOrderID(_ context.Context, orderID uint64) ([]*entity.Payment, error) {
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if item.OrderID == orderID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *controllerPaymentRepo) ListStaleAuthorized(context.Context, time.Time, int32) ([]*entity.Payment, error) {
	return []*entity.Payment{}, nil
}

type controllerRefundRepo struct {
	refunds []*entity.Refund
}

func (r *controllerRefundRepo) Create(_ context.Context, refund *entity.Refund) error {
	copyItem := *refund
	copyItem.ID = uint64(len(r.refunds) + 1)
	r.refunds = append(r.refunds, &copyItem)
	refund.ID = copyItem.ID
	return nil
}

func (r *controllerRefundRepo) Update(_ context.Context, refund *entity.Refund) error {
	for i, item := range r.refunds {
		if item.GatewayRefundID == refund.GatewayRefundID {
			copyItem := *refund
			r.refunds[i] = &copyItem
			return nil
		}
	}
	return nil
}

func (r *controllerRefundRepo) ListByPaymentID(_ context.Context, paymentID uint64) ([]*entity.Refund, error) {
	items := make([]*entity.Refund, 0)
	for _, item := range r.refunds {
		if item.PaymentID == paymentID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (r *controllerRefundRepo) ListStalePending(context.Context, time.Time, int32) ([]*entity.Refund, error) {
	return []*entity.Refund{}, nil
}

type controllerWebhookRepo struct {
	events map[uint64]*entity.WebhookEvent
	nextID uint64
}

func newControllerWebhookRepo() *controllerWebhookRepo {
	return &controllerWebhookRepo{events: map[uint64]*entity.WebhookEvent{}, nextID: 1}
}

func (r *controllerWebhookRepo) Create(_ context.Context, event *entity.WebhookEvent) error {
	for _, item := range r.events {
		if item.GatewayEventID == event.GatewayEventID {
			return repository.ErrWebhookEventExists
		}
	}
	id := r.nextID
	r.nextID++
	copyItem := *event
	copyItem.ID = id
	r.events[id] = &copyItem
	event.ID = id
	return nil
}

func (r *controllerWebhookRepo) Update(_ context.Context, event *entity.WebhookEvent) error {
	copyItem := *event
	r.events[event.ID] = &copyItem
	return nil
}

func (r *controllerWebhookRepo) Delete(_ context.Context, id uint64) error {
	delete(r.events, id)
	return nil
}

type controllerEventRepo struct{}

func (r *controllerEventRepo) Create(context.Context, *entity.PaymentEvent) error {
	return nil
}

type controllerGateway struct {
	keyID           string
	createOrderOut  *gateway.OrderEntity
	createOrderErr  error
	payments        map[string]*gateway.PaymentEntity
	fetchErr        error
	createRefundOut *gateway.RefundEntity
	signatureValid  bool
	webhookSecret   string
}

func newControllerGateway() *controllerGateway {
	return &controllerGateway{
		keyID:          "rzp_test_key",
		payments:       map[string]*gateway.PaymentEntity{},
		signatureValid: true,
		webhookSecret:  "whsec_test",
	}
}

func (g *controllerGateway) KeyID() string {
	return g.keyID
}

func (g *controllerGateway) CreateOrder(context.Context, *gateway.CreateOrderInput) (*gateway.OrderEntity, error) {
	if g.createOrderErr != nil {
		return nil, g.createOrderErr
	}
	if g.createOrderOut != nil {
		return g.createOrderOut, nil
	}
	return &gateway.OrderEntity{ID: "order_test_1", Status: "created"}, nil
}

func (g *controllerGateway) FetchPayment(_ context.Context, gatewayPaymentID string) (*gateway.PaymentEntity, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	if item, ok := g.payments[gatewayPaymentID]; ok {
		copyItem := *item
		return &copyItem, nil
	}
	return nil, context.DeadlineExceeded
}

func (g *controllerGateway) FetchRefund(context.Context, string) (*gateway.RefundEntity, error) {
	return nil, context.DeadlineExceeded
}

func (g *controllerGateway) CreateRefund(context.Context, string, int64) (*gateway.RefundEntity, error) {
	if g.createRefundOut != nil {
		copyItem := *g.createRefundOut
		return &copyItem, nil
	}
	return &gateway.RefundEntity{ID: "rfnd_test_1", Status: "pending", Amount: 100}, nil
}

func (g *controllerGateway) VerifyPaymentSignature(string, string, string) bool {
	return g.signatureValid
}

// VerifyAndParseWebhook runs the real codec so controller tests exercise the
// same signature and envelope handling production sees.
func (g *controllerGateway) VerifyAndParseWebhook(payload []byte, signature string) (*gateway.WebhookEvent, error) {
	real := gateway.NewRazorpayClient(gateway.RazorpayConfig{
		KeyID:         g.keyID,
		KeySecret:     "rzp_test_secret",
		WebhookSecret: g.webhookSecret,
	})
	return real.VerifyAndParseWebhook(payload, signature)
}

type controllerFixture struct {
	orders   *controllerOrderRepo
	payments *controllerPaymentRepo
	refunds  *controllerRefundRepo
	webhooks *controllerWebhookRepo
	gateway  *controllerGateway
	svc      *service.CheckoutService
	order    *OrderController
	payment  *PaymentController
}

func newControllerFixture() *controllerFixture {
	f := &controllerFixture{
		orders:   newControllerOrderRepo(),
		payments: newControllerPaymentRepo(),
		refunds:  &controllerRefundRepo{},
		webhooks: newControllerWebhookRepo(),
		gateway:  newControllerGateway(),
	}
	f.svc = service.NewCheckoutService(
		f.orders,
		f.payments,
		f.refunds,
		f.webhooks,
		&controllerEventRepo{},
		f.gateway,
		service.NewLogNotifier(),
		config.PaymentsConfig{
			Currency:            "INR",
			GatewayTimeout:      time.Second,
			PendingOrderTimeout: time.Minute,
			ReconcileStaleAfter: time.Minute,
			JobBatchSize:        100,
		},
	)
	f.order = NewOrderController(f.svc)
	f.payment = NewPaymentController(f.svc)
	return f
}

func (f *controllerFixture) seedOrder(userID uint64) *entity.Order {
	now := time.Now().UTC()
	order := &entity.Order{
		UserID:         userID,
		Receipt:        "rcpt-1",
		GatewayOrderID: "order_g1",
		AmountCents:    5000,
		Currency:       "INR",
		Status:         entity.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_ = f.orders.Create(context.Background(), order)

	attempt := &entity.Payment{
		OrderID:        order.ID,
		GatewayOrderID: order.GatewayOrderID,
		AmountCents:    5000,
		Currency:       "INR",
		Status:         entity.PaymentStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_ = f.payments.Create(context.Background(), attempt)
	return order
}
