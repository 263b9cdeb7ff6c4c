package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
)

// Notifier receives order status transitions. Implementations must tolerate
// being called at most once per genuine transition; duplicate gateway
// deliveries never reach it.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, order *entity.Order, oldStatus int32)
}

// LogNotifier is the default sink: it writes transitions to the log until a
// real fulfillment consumer is wired in.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: factory.NewModuleLogger("order-notifier")}
}

func (n *LogNotifier) OrderStatusChanged(_ context.Context, order *entity.Order, oldStatus int32) {
	n.logger.WithField("order_id", order.ID).
		WithField("old_status", orderStatusName(oldStatus)).
		WithField("new_status", orderStatusName(order.Status)).
		Info("order_status_changed")
}
