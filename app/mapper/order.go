package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

func OrderToResponse(item *entity.Order) *types.OrderResponse {
	if item == nil {
		return nil
	}

	return &types.OrderResponse{
		ID:              item.ID,
		Receipt:         item.Receipt,
		GatewayOrderID:  item.GatewayOrderID,
		Items:           orderItemsToPayload(item.Items),
		AmountCents:     item.AmountCents,
		TaxCents:        item.TaxCents,
		ShippingCents:   item.ShippingCents,
		DiscountCents:   item.DiscountCents,
		Currency:        item.Currency,
		ShippingAddress: addressToPayload(item.ShippingAddress),
		Notes:           derefString(item.Notes),
		Status:          OrderStatusName(item.Status),
		RefundState:     RefundStateName(item.RefundState),
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func OrderStatusName(status int32) string {
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

func RefundStateName(state int32) string {
	switch state {
	case entity.RefundStateNone:
		return "none"
	case entity.RefundStatePending:
		return "pending"
	case entity.RefundStateProcessed:
		return "processed"
	case entity.RefundStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func orderItemsToPayload(items []entity.OrderItem) []types.OrderItemPayload {
	result := make([]types.OrderItemPayload, 0, len(items))
	for _, item := range items {
		result = append(result, types.OrderItemPayload{
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			ProductRef:     item.ProductRef,
		})
	}
	return result
}

func addressToPayload(address entity.Address) types.AddressPayload {
	return types.AddressPayload{
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
