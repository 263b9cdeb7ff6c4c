package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/auth"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

type OrderController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewOrderController(checkoutService *service.CheckoutService) *OrderController {
	return &OrderController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("order-controller"),
	}
}

func (c *OrderController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.checkoutService.CreateOrder(ctx.Request().Context(), auth.UserID(ctx), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGatewayUnavailable):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create order failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.CreateOrderResponse{
		Order: mapper.OrderToResponse(order),
		Checkout: &types.CheckoutResponse{
			GatewayOrderID: order.GatewayOrderID,
			KeyID:          c.checkoutService.CheckoutKeyID(),
			AmountCents:    order.AmountCents,
			Currency:       order.Currency,
		},
	})
}

func (c *OrderController) GetOrder(ctx echo.Context) error {
	orderID, err := types.OrderIDFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, payments, err := c.checkoutService.GetOrder(ctx.Request().Context(), auth.UserID(ctx), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.OrderDetailResponse{
		Order:    mapper.OrderToResponse(order),
		Payments: mapper.PaymentsToResponse(payments),
	})
}

func (c *OrderController) CancelOrder(ctx echo.Context) error {
	orderID, err := types.OrderIDFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.checkoutService.CancelOrder(ctx.Request().Context(), auth.UserID(ctx), orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrOrderNotCancellable):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Cancel order failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.OrderDetailResponse{Order: mapper.OrderToResponse(order)})
}

func (c *OrderController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
