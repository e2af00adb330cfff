package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLineDTO is one recorded cart line.
type OrderLineDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderDTO is the admin view of an order with its lines.
type OrderDTO struct {
	ID               uuid.UUID             `json:"id"`
	CustomerName     string                `json:"customer_name"`
	Email            string                `json:"email"`
	Phone            string                `json:"phone"`
	Address          string                `json:"address"`
	ShippingTier     string                `json:"shipping_tier"`
	Subtotal         decimal.Decimal       `json:"subtotal"`
	DiscountAmount   decimal.Decimal       `json:"discount_amount"`
	ShippingCost     decimal.Decimal       `json:"shipping_cost"`
	TotalAmount      decimal.Decimal       `json:"total_amount"`
	AmountPaid       decimal.Decimal       `json:"amount_paid"`
	Currency         string                `json:"currency"`
	PaymentProvider  enums.PaymentProvider `json:"payment_provider"`
	PaymentReference string                `json:"payment_reference"`
	Status           enums.OrderStatus     `json:"status"`
	Items            []OrderLineDTO        `json:"items"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// OrderStats counts orders per status.
type OrderStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Delivered int64 `json:"delivered"`
}

// OrderList is one page of the admin order listing.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	Stats      OrderStats `json:"stats"`
	NextCursor string     `json:"cursor,omitempty"`
}

// NewOrderDTO maps a persisted order. Items must be preloaded to appear.
func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	items := make([]OrderLineDTO, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, OrderLineDTO{
			ID:          line.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return &OrderDTO{
		ID:               order.ID,
		CustomerName:     order.CustomerName,
		Email:            order.Email,
		Phone:            order.Phone,
		Address:          order.Address,
		ShippingTier:     order.ShippingTier,
		Subtotal:         order.Subtotal,
		DiscountAmount:   order.DiscountAmount,
		ShippingCost:     order.ShippingCost,
		TotalAmount:      order.TotalAmount,
		AmountPaid:       order.AmountPaid,
		Currency:         order.Currency,
		PaymentProvider:  order.PaymentProvider,
		PaymentReference: order.PaymentReference,
		Status:           order.Status,
		Items:            items,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func statsFromCounts(counts map[enums.OrderStatus]int64) OrderStats {
	stats := OrderStats{
		Pending:   counts[enums.OrderStatusPending],
		Confirmed: counts[enums.OrderStatusConfirmed],
		Delivered: counts[enums.OrderStatusDelivered],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats
}
