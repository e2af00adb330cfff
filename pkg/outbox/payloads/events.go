package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLineSnapshot is the per-line view carried with a recorded order.
type OrderLineSnapshot struct {
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderRecordedEvent is emitted once per verified payment reference.
type OrderRecordedEvent struct {
	OrderID          uuid.UUID             `json:"order_id"`
	PaymentReference string                `json:"payment_reference"`
	PaymentProvider  enums.PaymentProvider `json:"payment_provider"`
	ShippingTier     string                `json:"shipping_tier"`
	Currency         string                `json:"currency"`
	Subtotal         decimal.Decimal       `json:"subtotal"`
	DiscountAmount   decimal.Decimal       `json:"discount_amount"`
	ShippingCost     decimal.Decimal       `json:"shipping_cost"`
	TotalAmount      decimal.Decimal       `json:"total_amount"`
	AmountPaid       decimal.Decimal       `json:"amount_paid"`
	Items            []OrderLineSnapshot   `json:"items"`
	RecordedAt       time.Time             `json:"recorded_at"`
}

// OrderStatusChangedEvent is emitted when an admin moves an order forward.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// OrderDeletedEvent is emitted when an admin removes an order.
type OrderDeletedEvent struct {
	OrderID          uuid.UUID         `json:"order_id"`
	PaymentReference string            `json:"payment_reference"`
	Status           enums.OrderStatus `json:"status"`
	DeletedAt        time.Time         `json:"deleted_at"`
}
