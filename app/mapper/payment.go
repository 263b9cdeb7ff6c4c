package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

func PaymentToResponse(item *entity.Payment) *types.PaymentResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentResponse{
		ID:                item.ID,
		OrderID:           item.OrderID,
		GatewayOrderID:    item.GatewayOrderID,
		GatewayPaymentID:  derefString(item.GatewayPaymentID),
		AmountCents:       item.AmountCents,
		Currency:          item.Currency,
		Status:            PaymentStatusName(item.Status),
		Method:            derefString(item.Method),
		CardLast4:         derefString(item.CardLast4),
		CardNetwork:       derefString(item.CardNetwork),
		UPIVPA:            derefString(item.UPIVPA),
		Wallet:            derefString(item.Wallet),
		Bank:              derefString(item.Bank),
		ErrorCode:         derefString(item.ErrorCode),
		ErrorDescription:  derefString(item.ErrorDescription),
		CapturedCents:     item.CapturedCents,
		RefundedCents:     item.RefundedCents,
		PartiallyRefunded: item.PartiallyRefunded(),
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentsToResponse(items []*entity.Payment) []*types.PaymentResponse {
	result := make([]*types.PaymentResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentToResponse(item))
	}
	return result
}

func RefundToResponse(item *entity.Refund) *types.RefundResponse {
	if item == nil {
		return nil
	}

	return &types.RefundResponse{
		ID:              item.ID,
		GatewayRefundID: item.GatewayRefundID,
		AmountCents:     item.AmountCents,
		Status:          RefundStatusName(item.Status),
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func RefundsToResponse(items []*entity.Refund) []*types.RefundResponse {
	result := make([]*types.RefundResponse, 0, len(items))
	for _, item := range items {
		result = append(result, RefundToResponse(item))
	}
	return result
}

func PaymentStatusName(status int32) string {
	switch status {
	case entity.PaymentStatusCreated:
		return "created"
	case entity.PaymentStatusAuthorized:
		return "authorized"
	case entity.PaymentStatusCaptured:
		return "captured"
	case entity.PaymentStatusFailed:
		return "failed"
	case entity.PaymentStatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

func RefundStatusName(status int32) string {
	switch status {
	case entity.RefundStatusPending:
		return "pending"
	case entity.RefundStatusProcessed:
		return "processed"
	case entity.RefundStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
