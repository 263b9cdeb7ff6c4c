package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/auth"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

type PaymentController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewPaymentController(checkoutService *service.CheckoutService) *PaymentController {
	return &PaymentController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("payment-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	payment, err := c.checkoutService.VerifyPayment(ctx.Request().Context(), auth.UserID(ctx), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSignatureInvalid):
			return c.writeError(ctx, http.StatusBadRequest, "payment verification failed")
		case errors.Is(err, service.ErrVerificationIncomplete):
			return c.writeError(ctx, http.StatusBadRequest, "payment was not completed")
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrConflictingTransition):
			return c.writeError(ctx, http.StatusConflict, "payment state conflicts with gateway report")
		case errors.Is(err, service.ErrGatewayUnavailable):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Verify payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.PaymentDetailResponse{Payment: mapper.PaymentToResponse(payment)})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	gatewayPaymentID := strings.TrimSpace(ctx.Param("paymentId"))
	if gatewayPaymentID == "" {
		return c.writeError(ctx, http.StatusBadRequest, "payment id is required")
	}

	payment, refunds, err := c.checkoutService.GetPayment(ctx.Request().Context(), auth.UserID(ctx), gatewayPaymentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrGatewayUnavailable):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.PaymentDetailResponse{
		Payment: mapper.PaymentToResponse(payment),
		Refunds: mapper.RefundsToResponse(refunds),
	})
}

func (c *PaymentController) CreateRefund(ctx echo.Context) error {
	req, err := types.NewCreateRefundRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	payment, err := c.checkoutService.InitiateRefund(ctx.Request().Context(), auth.UserID(ctx), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrRefundNotAllowed):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrConflictingTransition):
			return c.writeError(ctx, http.StatusConflict, "payment state conflicts with gateway report")
		case errors.Is(err, service.ErrGatewayUnavailable):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create refund failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusAccepted, &types.PaymentDetailResponse{Payment: mapper.PaymentToResponse(payment)})
}

// HandleWebhook acknowledges everything except a bad signature and internal
// faults. The gateway retries non-2xx responses, and retrying a conflicting
// or malformed event cannot change its outcome.
func (c *PaymentController) HandleWebhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "unreadable request body")
	}

	if err := c.checkoutService.HandleWebhook(ctx.Request().Context(), req); err != nil {
		if errors.Is(err, service.ErrSignatureInvalid) {
			return c.writeError(ctx, http.StatusBadRequest, "invalid webhook signature")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Webhook processing failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Webhook processed"})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
