package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the header recorded once per verified payment reference.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CustomerName     string                `gorm:"column:customer_name;not null"`
	Email            string                `gorm:"column:email;not null"`
	Phone            string                `gorm:"column:phone;not null"`
	Address          string                `gorm:"column:address;not null"`
	ShippingTier     string                `gorm:"column:shipping_tier;not null"`
	Subtotal         decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountAmount   decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	ShippingCost     decimal.Decimal       `gorm:"column:shipping_cost;type:numeric(12,2);not null;default:0"`
	TotalAmount      decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	AmountPaid       decimal.Decimal       `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	Currency         string                `gorm:"column:currency;not null"`
	PaymentProvider  enums.PaymentProvider `gorm:"column:payment_provider;not null"`
	PaymentReference string                `gorm:"column:payment_reference;not null;uniqueIndex:ux_orders_payment_reference"`
	Status           enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	Items            []OrderLine           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
