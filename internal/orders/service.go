package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrStatusTransition = errors.New("order status transition not allowed")
	ErrPersistence      = errors.New("order could not be persisted")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service records paid orders and exposes the admin lifecycle operations.
type Service interface {
	RecordOrder(ctx context.Context, input RecordInput) (*RecordResult, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, actor *outbox.ActorRef) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, params pagination.Params, status string) (*OrderList, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error
}

// Customer is the contact and delivery information captured at checkout.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// RecordInput carries a verified payment and the server-computed totals.
type RecordInput struct {
	PaymentReference string
	PaymentProvider  enums.PaymentProvider
	AmountPaid       decimal.Decimal
	Currency         string
	Customer         Customer
	Totals           pricing.Result
}

// RecordResult reports the stored order and whether this call created it.
type RecordResult struct {
	Order   *OrderDTO
	Created bool
}

type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	clock   func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		clock:   clock,
	}, nil
}

// RecordOrder stores the order for a verified payment exactly once per
// payment reference. Repeated calls return the first order with Created=false.
func (s *service) RecordOrder(ctx context.Context, input RecordInput) (*RecordResult, error) {
	reference := strings.TrimSpace(input.PaymentReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if len(input.Totals.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one line")
	}

	now := s.clock().UTC()
	order := &models.Order{
		ID:               uuid.New(),
		CustomerName:     strings.TrimSpace(input.Customer.Name),
		Email:            strings.ToLower(strings.TrimSpace(input.Customer.Email)),
		Phone:            strings.TrimSpace(input.Customer.Phone),
		Address:          strings.TrimSpace(input.Customer.Address),
		ShippingTier:     input.Totals.ShippingTier,
		Subtotal:         input.Totals.Subtotal,
		DiscountAmount:   input.Totals.DiscountAmount,
		ShippingCost:     input.Totals.ShippingCost,
		TotalAmount:      input.Totals.GrandTotal,
		AmountPaid:       input.AmountPaid.Round(2),
		Currency:         strings.ToUpper(strings.TrimSpace(input.Currency)),
		PaymentProvider:  input.PaymentProvider,
		PaymentReference: reference,
		Status:           enums.OrderStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var (
		stored  *models.Order
		created bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inserted, err := repo.InsertIfAbsent(ctx, order)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := repo.FindByPaymentReference(ctx, reference)
			if err != nil {
				return err
			}
			stored = existing
			return nil
		}

		lines := buildLines(order.ID, input.Totals.Lines, now)
		if err := repo.CreateLines(ctx, lines); err != nil {
			return err
		}
		order.Items = lines

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderRecorded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem.String()},
			Data:          recordedEvent(order, now),
			OccurredAt:    now,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		stored = order
		created = true
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(ErrPersistence, err), "record order")
	}

	if created {
		s.metrics.IncOrderRecorded(metrics.RecordCreated)
	} else {
		s.metrics.IncOrderRecorded(metrics.RecordDeduplicated)
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithPaymentReference(ctx, reference), stored.ID.String())
		logCtx = s.logg.WithField(logCtx, "created", created)
		s.logg.Info(logCtx, "order.recorded")
	}
	return &RecordResult{Order: NewOrderDTO(stored), Created: created}, nil
}

// UpdateStatus moves an order forward. Setting the current status is a no-op.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, actor *outbox.ActorRef) (*OrderDTO, error) {
	next, err := enums.ParseOrderStatus(status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidStatus, "invalid order status").
			WithDetails(map[string]any{"status": status, "allowed": enums.OrderStatuses()})
	}

	var changed bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == next {
			return nil
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrStatusTransition, "order status transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": next})
		}

		now := s.clock().UTC()
		if err := repo.UpdateStatus(ctx, orderID, next, now); err != nil {
			return err
		}
		changed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        orderID,
				PreviousStatus: order.Status,
				Status:         next,
				ChangedAt:      now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, mapOrderError(err, "update order status")
	}

	if changed && s.logg != nil {
		logCtx := s.logg.WithField(s.logg.WithOrderID(ctx, orderID.String()), "status", next)
		s.logg.Info(logCtx, "order.status_changed")
	}
	return s.GetOrder(ctx, orderID)
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapOrderError(err, "load order")
	}
	return NewOrderDTO(order), nil
}

// ListOrders returns a page of orders newest first with store-wide status counts.
func (s *service) ListOrders(ctx context.Context, params pagination.Params, status string) (*OrderList, error) {
	var filter ListFilter
	if strings.TrimSpace(status) != "" {
		parsed, err := enums.ParseOrderStatus(status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidStatus, "invalid status filter")
		}
		filter.Status = &parsed
	}

	rows, next, err := s.repo.List(ctx, params, filter)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}

	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewOrderDTO(&rows[i]))
	}
	return &OrderList{Orders: out, Stats: statsFromCounts(counts), NextCursor: next}, nil
}

// DeleteOrder removes an order and its lines.
func (s *service) DeleteOrder(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		deleted, err := repo.Delete(ctx, orderID)
		if err != nil {
			return err
		}
		if !deleted {
			return gorm.ErrRecordNotFound
		}
		now := s.clock().UTC()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data: payloads.OrderDeletedEvent{
				OrderID:          orderID,
				PaymentReference: order.PaymentReference,
				Status:           order.Status,
				DeletedAt:        now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return mapOrderError(err, "delete order")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order.deleted")
	}
	return nil
}

func buildLines(orderID uuid.UUID, priced []pricing.PricedLine, now time.Time) []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(priced))
	for i, line := range priced {
		var productID *uuid.UUID
		if line.ProductID != uuid.Nil {
			id := line.ProductID
			productID = &id
		}
		lines = append(lines, models.OrderLine{
			ID:          uuid.New(),
			OrderID:     orderID,
			Position:    i,
			ProductID:   productID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
			CreatedAt:   now,
		})
	}
	return lines
}

func recordedEvent(order *models.Order, at time.Time) payloads.OrderRecordedEvent {
	items := make([]payloads.OrderLineSnapshot, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, payloads.OrderLineSnapshot{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return payloads.OrderRecordedEvent{
		OrderID:          order.ID,
		PaymentReference: order.PaymentReference,
		PaymentProvider:  order.PaymentProvider,
		ShippingTier:     order.ShippingTier,
		Currency:         order.Currency,
		Subtotal:         order.Subtotal,
		DiscountAmount:   order.DiscountAmount,
		ShippingCost:     order.ShippingCost,
		TotalAmount:      order.TotalAmount,
		AmountPaid:       order.AmountPaid,
		Items:            items,
		RecordedAt:       at,
	}
}

func mapOrderError(err error, op string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if isNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrOrderNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
