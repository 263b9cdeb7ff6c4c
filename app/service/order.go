package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

const defaultCurrency = "INR"

// CreateOrder prices the cart server-side, registers the order with the
// gateway, and persists the local order plus an open payment attempt. The
// gateway order id minted here is the correlation key for everything that
// follows.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID uint64, request *types.CreateOrderRequest) (*entity.Order, error) {
	if userID == 0 {
		return nil, ErrInvalidRequest
	}
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := time.Now().UTC()
	order := &entity.Order{
		UserID:        userID,
		Receipt:       uuid.NewString(),
		TaxCents:      request.TaxCents,
		ShippingCents: request.ShippingCents,
		DiscountCents: request.DiscountCents,
		Currency:      s.currency(),
		Notes:         normalizeOptionalString(request.Notes),
		Status:        entity.OrderStatusPending,
		RefundState:   entity.RefundStateNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, item := range request.Items {
		order.Items = append(order.Items, entity.OrderItem{
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			ProductRef:     item.ProductRef,
		})
	}
	order.ShippingAddress = entity.Address{
		Line1:      request.ShippingAddress.Line1,
		Line2:      request.ShippingAddress.Line2,
		City:       request.ShippingAddress.City,
		State:      request.ShippingAddress.State,
		PostalCode: request.ShippingAddress.PostalCode,
		Country:    request.ShippingAddress.Country,
	}

	order.AmountCents = order.ItemTotalCents() + order.TaxCents + order.ShippingCents - order.DiscountCents
	if order.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: order total must be positive", ErrInvalidRequest)
	}

	createCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout())
	defer cancel()
	gatewayOrder, err := s.gateway.CreateOrder(createCtx, &gateway.CreateOrderInput{
		AmountCents: order.AmountCents,
		Currency:    order.Currency,
		Receipt:     order.Receipt,
		Notes:       map[string]string{"user_id": strconv.FormatUint(userID, 10)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	order.GatewayOrderID = gatewayOrder.ID

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

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
		return nil, err
	}

	return order, nil
}

func (s *CheckoutService) GetOrder(ctx context.Context, userID uint64, orderID uint64) (*entity.Order, []*entity.Payment, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil || (userID != 0 && order.UserID != userID) {
		return nil, nil, ErrOrderNotFound
	}

	payments, err := s.paymentRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, payments, nil
}

// CancelOrder cancels an order that has no captured funds. Cancelling an
// already cancelled order is a no-op; an order whose payment captured must go
// through a refund instead.
func (s *CheckoutService) CancelOrder(ctx context.Context, userID uint64, orderID uint64) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (userID != 0 && order.UserID != userID) {
		return nil, ErrOrderNotFound
	}

	release := s.locks.Lock(order.GatewayOrderID)
	defer release()

	order, err = s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if order.Status == entity.OrderStatusCancelled {
		return order, nil
	}
	if order.Status == entity.OrderStatusShipped || order.Status == entity.OrderStatusDelivered {
		return nil, fmt.Errorf("%w: order already %s", ErrOrderNotCancellable, orderStatusName(order.Status))
	}

	payments, err := s.paymentRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if p.Status == entity.PaymentStatusCaptured || p.Status == entity.PaymentStatusRefunded {
			return nil, fmt.Errorf("%w: funds were captured", ErrOrderNotCancellable)
		}
	}

	oldStatus := order.Status
	order.Status = entity.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, order, oldStatus)
	}

	return order, nil
}

func (s *CheckoutService) currency() string {
	if s.paymentsCfg.Currency != "" {
		return s.paymentsCfg.Currency
	}
	return defaultCurrency
}

func orderStatusName(status int32) string {
	switch status {
	case entity.OrderStatusPending:
		return "pending"
	case entity.OrderStatusProcessing:
		return "processing"
	case entity.OrderStatusShipped:
		return "shipped"
	case entity.OrderStatusDelivered:
		return "delivered"
	case entity.OrderStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
