package service

import (
	"context"
	"sort"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

type serviceOrderRepo struct {
	orders map[uint64]*entity.Order
	nextID uint64
}

func newServiceOrderRepo() *serviceOrderRepo {
	return &serviceOrderRepo{orders: map[uint64]*entity.Order{}, nextID: 1}
}

func (r *serviceOrderRepo) Create(_ context.Context, order *entity.Order) error {
	id := r.nextID
	r.nextID++
	copyItem := *order
	copyItem.ID = id
	r.orders[id] = &copyItem
	order.ID = id
	return nil
}

func (r *serviceOrderRepo) Update(_ context.Context, order *entity.Order) error {
	if _, ok := r.orders[order.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	copyItem := *order
	r.orders[order.ID] = &copyItem
	return nil
}

func (r *serviceOrderRepo) FindByID(_ context.Context, id uint64) (*entity.Order, error) {
	item, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *serviceOrderRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*entity.Order, error) {
	for _, item := range r.orders {
		if item.GatewayOrderID == gatewayOrderID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *serviceOrderRepo) ListStalePending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	items := make([]*entity.Order, 0)
	for _, item := range r.orders {
		if item.Status == entity.OrderStatusPending && !item.CreatedAt.After(cutoff) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

type servicePaymentRepo struct {
	payments map[uint64]*entity.Payment
	nextID   uint64
}

func newServicePaymentRepo() *servicePaymentRepo {
	return &servicePaymentRepo{payments: map[uint64]*entity.Payment{}, nextID: 1}
}

func (r *servicePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	if payment.GatewayPaymentID != nil {
		for _, item := range r.payments {
			if item.GatewayPaymentID != nil && *item.GatewayPaymentID == *payment.GatewayPaymentID {
				return repository.ErrPaymentAlreadyExists
			}
		}
	}
	id := r.nextID
	r.nextID++
	copyItem := *payment
	copyItem.ID = id
	r.payments[id] = &copyItem
	payment.ID = id
	return nil
}

// Update mirrors the MySQL repository's compare-and-swap on the version
// column, including the version bump on success.
func (r *servicePaymentRepo) Update(_ context.Context, payment *entity.Payment) error {
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

func (r *servicePaymentRepo) FindByID(_ context.Context, id uint64) (*entity.Payment, error) {
	item, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *servicePaymentRepo) FindByGatewayPaymentID(_ context.Context, gatewayPaymentID string) (*entity.Payment, error) {
	for _, item := range r.payments {
		if item.GatewayPaymentID != nil && *item.GatewayPaymentID == gatewayPaymentID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *servicePaymentRepo) ListByOrderID(_ context.Context, orderID uint64) ([]*entity.Payment, error) {
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

func (r *servicePaymentRepo) ListStaleAuthorized(_ context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if item.Status == entity.PaymentStatusAuthorized && !item.UpdatedAt.After(before) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

type serviceRefundRepo struct {
	refunds map[uint64]*entity.Refund
	nextID  uint64
}

func newServiceRefundRepo() *serviceRefundRepo {
	return &serviceRefundRepo{refunds: map[uint64]*entity.Refund{}, nextID: 1}
}

func (r *serviceRefundRepo) Create(_ context.Context, refund *entity.Refund) error {
	for _, item := range r.refunds {
		if item.GatewayRefundID == refund.GatewayRefundID {
			return repository.ErrRefundAlreadyExists
		}
	}
	id := r.nextID
	r.nextID++
	copyItem := *refund
	copyItem.ID = id
	r.refunds[id] = &copyItem
	refund.ID = id
	return nil
}

func (r *serviceRefundRepo) Update(_ context.Context, refund *entity.Refund) error {
	for id, item := range r.refunds {
		if item.GatewayRefundID == refund.GatewayRefundID {
			copyItem := *refund
			copyItem.ID = id
			r.refunds[id] = &copyItem
			return nil
		}
	}
	return repository.ErrRefundAlreadyExists
}

func (r *serviceRefundRepo) ListByPaymentID(_ context.Context, paymentID uint64) ([]*entity.Refund, error) {
	items := make([]*entity.Refund, 0)
	for _, item := range r.refunds {
		if item.PaymentID == paymentID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *serviceRefundRepo) ListStalePending(_ context.Context, before time.Time, limit int32) ([]*entity.Refund, error) {
	items := make([]*entity.Refund, 0)
	for _, item := range r.refunds {
		if item.Status == entity.RefundStatusPending && !item.UpdatedAt.After(before) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

type serviceWebhookRepo struct {
	events map[uint64]*entity.WebhookEvent
	nextID uint64
}

func newServiceWebhookRepo() *serviceWebhookRepo {
	return &serviceWebhookRepo{events: map[uint64]*entity.WebhookEvent{}, nextID: 1}
}

func (r *serviceWebhookRepo) Create(_ context.Context, event *entity.WebhookEvent) error {
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

func (r *serviceWebhookRepo) Update(_ context.Context, event *entity.WebhookEvent) error {
	if _, ok := r.events[event.ID]; !ok {
		return repository.ErrWebhookEventExists
	}
	copyItem := *event
	r.events[event.ID] = &copyItem
	return nil
}

func (r *serviceWebhookRepo) Delete(_ context.Context, id uint64) error {
	delete(r.events, id)
	return nil
}

type serviceEventRepo struct {
	events []*entity.PaymentEvent
}

func (r *serviceEventRepo) Create(_ context.Context, event *entity.PaymentEvent) error {
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

type serviceGateway struct {
	keyID string

	createOrderOut *gateway.OrderEntity
	createOrderErr error

	payments  map[string]*gateway.PaymentEntity
	fetchErr  error
	refunds   map[string]*gateway.RefundEntity
	refundErr error

	createRefundOut *gateway.RefundEntity
	createRefundErr error

	signatureValid bool
	webhookEvent   *gateway.WebhookEvent
	webhookErr     error
}

func newServiceGateway() *serviceGateway {
	return &serviceGateway{
		keyID:          "rzp_test_key",
		payments:       map[string]*gateway.PaymentEntity{},
		refunds:        map[string]*gateway.RefundEntity{},
		signatureValid: true,
	}
}

func (g *serviceGateway) KeyID() string {
	return g.keyID
}

func (g *serviceGateway) CreateOrder(context.Context, *gateway.CreateOrderInput) (*gateway.OrderEntity, error) {
	if g.createOrderErr != nil {
		return nil, g.createOrderErr
	}
	if g.createOrderOut != nil {
		return g.createOrderOut, nil
	}
	return &gateway.OrderEntity{ID: "order_test_1", Status: "created"}, nil
}

func (g *serviceGateway) FetchPayment(_ context.Context, gatewayPaymentID string) (*gateway.PaymentEntity, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	if item, ok := g.payments[gatewayPaymentID]; ok {
		copyItem := *item
		return &copyItem, nil
	}
	return nil, context.DeadlineExceeded
}

func (g *serviceGateway) FetchRefund(_ context.Context, gatewayRefundID string) (*gateway.RefundEntity, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if item, ok := g.refunds[gatewayRefundID]; ok {
		copyItem := *item
		return &copyItem, nil
	}
	return nil, context.DeadlineExceeded
}

func (g *serviceGateway) CreateRefund(context.Context, string, int64) (*gateway.RefundEntity, error) {
	if g.createRefundErr != nil {
		return nil, g.createRefundErr
	}
	if g.createRefundOut != nil {
		copyItem := *g.createRefundOut
		return &copyItem, nil
	}
	return &gateway.RefundEntity{ID: "rfnd_test_1", Status: "pending", Amount: 100}, nil
}

func (g *serviceGateway) VerifyPaymentSignature(string, string, string) bool {
	return g.signatureValid
}

func (g *serviceGateway) VerifyAndParseWebhook([]byte, string) (*gateway.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.webhookEvent, nil
}

type recordingNotifier struct {
	transitions []string
}

func (n *recordingNotifier) OrderStatusChanged(_ context.Context, order *entity.Order, oldStatus int32) {
	n.transitions = append(n.transitions, orderStatusName(oldStatus)+"->"+orderStatusName(order.Status))
}

type checkoutFixture struct {
	orders   *serviceOrderRepo
	payments *servicePaymentRepo
	refunds  *serviceRefundRepo
	webhooks *serviceWebhookRepo
	events   *serviceEventRepo
	gateway  *serviceGateway
	notifier *recordingNotifier
	svc      *CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		orders:   newServiceOrderRepo(),
		payments: newServicePaymentRepo(),
		refunds:  newServiceRefundRepo(),
		webhooks: newServiceWebhookRepo(),
		events:   &serviceEventRepo{},
		gateway:  newServiceGateway(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewCheckoutService(
		f.orders,
		f.payments,
		f.refunds,
		f.webhooks,
		f.events,
		f.gateway,
		f.notifier,
		config.PaymentsConfig{
			Currency:            "INR",
			GatewayTimeout:      time.Second,
			PendingOrderTimeout: time.Minute,
			ReconcileStaleAfter: time.Minute,
			JobBatchSize:        100,
		},
	)
	return f
}

// seedCapturableOrder installs a pending order with one open attempt, the
// state checkout leaves behind.
func (f *checkoutFixture) seedCapturableOrder(amountCents int64) (*entity.Order, *entity.Payment) {
	now := time.Now().UTC()
	order := &entity.Order{
		UserID:         7,
		Receipt:        "rcpt-1",
		GatewayOrderID: "order_g1",
		AmountCents:    amountCents,
		Currency:       "INR",
		Status:         entity.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_ = f.orders.Create(context.Background(), order)

	attempt := &entity.Payment{
		OrderID:        order.ID,
		GatewayOrderID: order.GatewayOrderID,
		AmountCents:    amountCents,
		Currency:       "INR",
		Status:         entity.PaymentStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_ = f.payments.Create(context.Background(), attempt)

	return order, attempt
}
