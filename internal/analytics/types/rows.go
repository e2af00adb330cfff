package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. Money columns carry
// the decimal string so the NUMERIC columns keep two-decimal precision.
type OrderEventRow struct {
	EventID          string               `bigquery:"event_id"`
	EventType        string               `bigquery:"event_type"`
	OccurredAt       time.Time            `bigquery:"occurred_at"`
	OrderID          string               `bigquery:"order_id"`
	PaymentReference cbigquery.NullString `bigquery:"payment_reference"`
	PaymentProvider  cbigquery.NullString `bigquery:"payment_provider"`
	Status           cbigquery.NullString `bigquery:"status"`
	PreviousStatus   cbigquery.NullString `bigquery:"previous_status"`
	ShippingTier     cbigquery.NullString `bigquery:"shipping_tier"`
	Currency         cbigquery.NullString `bigquery:"currency"`
	Subtotal         cbigquery.NullString `bigquery:"subtotal"`
	DiscountAmount   cbigquery.NullString `bigquery:"discount_amount"`
	ShippingCost     cbigquery.NullString `bigquery:"shipping_cost"`
	TotalAmount      cbigquery.NullString `bigquery:"total_amount"`
	AmountPaid       cbigquery.NullString `bigquery:"amount_paid"`
	ItemCount        cbigquery.NullInt64  `bigquery:"item_count"`
	ActorRole        cbigquery.NullString `bigquery:"actor_role"`
	Items            cbigquery.NullJSON   `bigquery:"items"`
	Payload          cbigquery.NullJSON   `bigquery:"payload"`
}
