package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var (
	// ErrEmptyCart is returned when totals are requested for a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidLine is returned for a quantity below one or a negative unit price.
	ErrInvalidLine = errors.New("invalid cart line")
)

var hundred = decimal.NewFromInt(100)

// Line is a priced cart line. UnitPrice must already be authoritative.
type Line struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// PricedLine carries the computed line total alongside the input line.
type PricedLine struct {
	Line
	LineTotal decimal.Decimal
}

// Result is the output of ComputeTotals. GrandTotal always equals
// Subtotal - DiscountAmount + ShippingCost.
type Result struct {
	Lines              []PricedLine
	Subtotal           decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	ShippingCost       decimal.Decimal
	GrandTotal         decimal.Decimal
	ShippingTier       string
	TierDefaulted      bool
}

// Engine computes checkout totals from a shipping table and a discount rate.
// It holds no clock and performs no I/O.
type Engine struct {
	shipping   map[string]decimal.Decimal
	percentage decimal.Decimal
}

// NewEngine validates the shipping table and discount percentage.
func NewEngine(shipping map[string]decimal.Decimal, percentage decimal.Decimal) (*Engine, error) {
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return nil, fmt.Errorf("discount percentage %s out of range", percentage)
	}
	table := make(map[string]decimal.Decimal, len(shipping)+1)
	for name, cost := range shipping {
		if cost.IsNegative() {
			return nil, fmt.Errorf("shipping tier %s has negative cost", name)
		}
		table[normalizeTier(name)] = cost
	}
	if _, ok := table[config.ShippingTierPickup]; !ok {
		table[config.ShippingTierPickup] = decimal.Zero
	}
	return &Engine{shipping: table, percentage: percentage}, nil
}

// ComputeTotals prices lines for the shipping tier. An unknown or empty tier
// falls back to pickup and sets TierDefaulted.
func (e *Engine) ComputeTotals(lines []Line, tier string, discountActive bool) (Result, error) {
	if len(lines) == 0 {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrEmptyCart, "Cart is empty")
	}

	priced := make([]PricedLine, 0, len(lines))
	subtotal := decimal.Zero
	for i, line := range lines {
		if line.Quantity < 1 {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidLine, "quantity must be at least 1").
				WithDetails(map[string]any{"line": i, "quantity": line.Quantity})
		}
		if line.UnitPrice.IsNegative() {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidLine, "unit price must be non-negative").
				WithDetails(map[string]any{"line": i})
		}
		total := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(total)
		priced = append(priced, PricedLine{Line: line, LineTotal: total})
	}

	appliedTier, shippingCost, defaulted := e.resolveShipping(tier)

	discount := decimal.Zero
	percentage := decimal.Zero
	if discountActive && e.percentage.IsPositive() {
		percentage = e.percentage
		discount = subtotal.Mul(percentage).Div(hundred).Round(2)
	}

	return Result{
		Lines:              priced,
		Subtotal:           subtotal,
		DiscountAmount:     discount,
		DiscountPercentage: percentage,
		ShippingCost:       shippingCost,
		GrandTotal:         subtotal.Sub(discount).Add(shippingCost),
		ShippingTier:       appliedTier,
		TierDefaulted:      defaulted,
	}, nil
}

// Tiers returns a copy of the shipping table.
func (e *Engine) Tiers() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(e.shipping))
	for k, v := range e.shipping {
		out[k] = v
	}
	return out
}

func (e *Engine) resolveShipping(tier string) (string, decimal.Decimal, bool) {
	key := normalizeTier(tier)
	if cost, ok := e.shipping[key]; ok && key != "" {
		return key, cost, false
	}
	return config.ShippingTierPickup, e.shipping[config.ShippingTierPickup], true
}

func normalizeTier(tier string) string {
	return strings.ToLower(strings.TrimSpace(tier))
}
