package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// ErrUnknownProduct is returned when a cart line names a product the catalog does not have.
var ErrUnknownProduct = errors.New("unknown product")

// CartLine is a line from the client's cart snapshot. UnitPrice is what the
// client displayed and is never used for totals.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice *decimal.Decimal
}

// QuoteInput is the pricing request.
type QuoteInput struct {
	Lines    []CartLine
	Shipping string
}

// Quote is a priced cart plus the context it was priced in.
type Quote struct {
	Result
	Currency       string
	DiscountActive bool
	PricedAt       time.Time
}

type catalog interface {
	LookupProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// ServiceParams wires the pricing service.
type ServiceParams struct {
	Engine   *Engine
	Policy   DiscountPolicy
	Catalog  catalog
	Currency string
	Clock    func() time.Time
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

// Service re-prices cart snapshots from the catalog.
type Service struct {
	engine   *Engine
	policy   DiscountPolicy
	catalog  catalog
	currency string
	clock    func() time.Time
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewService validates params and builds the pricing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		engine:   params.Engine,
		policy:   params.Policy,
		catalog:  params.Catalog,
		currency: params.Currency,
		clock:    clock,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Quote looks up authoritative prices for every line and computes totals.
func (s *Service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrEmptyCart, "Cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.LookupProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(input.Lines))
	var missing []string
	repriced := 0
	for _, cartLine := range input.Lines {
		product, ok := products[cartLine.ProductID]
		if !ok {
			missing = append(missing, cartLine.ProductID.String())
			continue
		}
		if cartLine.UnitPrice != nil && !cartLine.UnitPrice.Equal(product.Price) {
			repriced++
		}
		lines = append(lines, Line{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  cartLine.Quantity,
		})
	}
	if len(missing) > 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrUnknownProduct, "cart contains unknown products").
			WithDetails(map[string]any{"product_ids": missing})
	}

	now := s.clock().UTC()
	active := s.policy.ActiveAt(now)
	result, err := s.engine.ComputeTotals(lines, input.Shipping, active)
	if err != nil {
		return nil, err
	}

	s.metrics.IncQuote(result.ShippingTier)
	if s.logg != nil && (repriced > 0 || result.TierDefaulted) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"repriced_lines":   repriced,
			"requested_tier":   input.Shipping,
			"applied_tier":     result.ShippingTier,
			"tier_defaulted":   result.TierDefaulted,
			"grand_total":      result.GrandTotal.StringFixed(2),
			"discount_applied": active,
		})
		s.logg.Debug(logCtx, "checkout.quote")
	}

	return &Quote{
		Result:         result,
		Currency:       s.currency,
		DiscountActive: active,
		PricedAt:       now,
	}, nil
}
