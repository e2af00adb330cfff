package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

// rowBuilder turns a decoded payload into the fact row for its event.
type rowBuilder func(envelope types.Envelope, payload any) (types.OrderEventRow, error)

// Router decodes order events and writes one order_events row per event.
type Router struct {
	writer   Writer
	decoders decoder
	builders map[enums.OutboxEventType]rowBuilder
	logg     *logger.Logger
}

// NewRouter wires the row builders for every order event.
func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{
		writer:   writer,
		decoders: registry.NewOrderDecoders(),
		builders: map[enums.OutboxEventType]rowBuilder{
			enums.EventOrderRecorded:      buildRecordedRow,
			enums.EventOrderStatusChanged: buildStatusChangedRow,
			enums.EventOrderDeleted:       buildDeletedRow,
		},
		logg: logg,
	}, nil
}

// Handle decodes the envelope payload and inserts the resulting row.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	build, ok := r.builders[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	payload, err := r.decoders.Decode(envelope.EventType, version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   envelope.AggregateID,
	})

	row, err := build(envelope, payload)
	if err != nil {
		r.logg.Error(logCtx, "failed to build order event row", err)
		return err
	}
	if envelope.ActorRole != "" {
		row.ActorRole = nullString(envelope.ActorRole)
	}

	if err := r.writer.InsertOrderEvent(logCtx, row); err != nil {
		r.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}

	r.logg.Info(logCtx, "order event row inserted")
	return nil
}

func baseRow(envelope types.Envelope, payload any) (types.OrderEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.OrderEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
		OrderID:    envelope.AggregateID,
		Payload:    payloadJSON,
	}, nil
}

func buildRecordedRow(envelope types.Envelope, payload any) (types.OrderEventRow, error) {
	event, ok := payload.(*payloads.OrderRecordedEvent)
	if !ok {
		return types.OrderEventRow{}, fmt.Errorf("invalid payload for %s", enums.EventOrderRecorded)
	}
	row, err := baseRow(envelope, event)
	if err != nil {
		return row, err
	}
	items, err := analyticswriter.EncodeJSON(event.Items)
	if err != nil {
		return row, fmt.Errorf("encode items json: %w", err)
	}

	row.OrderID = event.OrderID.String()
	row.OccurredAt = pickTime(event.RecordedAt, envelope.OccurredAt)
	row.PaymentReference = nullString(event.PaymentReference)
	row.PaymentProvider = nullString(string(event.PaymentProvider))
	row.Status = nullString(string(enums.OrderStatusPending))
	row.ShippingTier = nullString(event.ShippingTier)
	row.Currency = nullString(event.Currency)
	row.Subtotal = money(event.Subtotal)
	row.DiscountAmount = money(event.DiscountAmount)
	row.ShippingCost = money(event.ShippingCost)
	row.TotalAmount = money(event.TotalAmount)
	row.AmountPaid = money(event.AmountPaid)
	row.ItemCount = cbigquery.NullInt64{Int64: itemCount(event.Items), Valid: true}
	row.Items = items
	return row, nil
}

func buildStatusChangedRow(envelope types.Envelope, payload any) (types.OrderEventRow, error) {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return types.OrderEventRow{}, fmt.Errorf("invalid payload for %s", enums.EventOrderStatusChanged)
	}
	row, err := baseRow(envelope, event)
	if err != nil {
		return row, err
	}
	row.OrderID = event.OrderID.String()
	row.OccurredAt = pickTime(event.ChangedAt, envelope.OccurredAt)
	row.Status = nullString(string(event.Status))
	row.PreviousStatus = nullString(string(event.PreviousStatus))
	return row, nil
}

func buildDeletedRow(envelope types.Envelope, payload any) (types.OrderEventRow, error) {
	event, ok := payload.(*payloads.OrderDeletedEvent)
	if !ok {
		return types.OrderEventRow{}, fmt.Errorf("invalid payload for %s", enums.EventOrderDeleted)
	}
	row, err := baseRow(envelope, event)
	if err != nil {
		return row, err
	}
	row.OrderID = event.OrderID.String()
	row.OccurredAt = pickTime(event.DeletedAt, envelope.OccurredAt)
	row.PaymentReference = nullString(event.PaymentReference)
	row.Status = nullString(string(event.Status))
	return row, nil
}

func itemCount(items []payloads.OrderLineSnapshot) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity)
	}
	return total
}

func pickTime(primary, fallback time.Time) time.Time {
	if primary.IsZero() {
		return fallback.UTC()
	}
	return primary.UTC()
}
