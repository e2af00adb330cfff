package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// DiscountPolicy is the server-side promotion. A zero StartsAt or EndsAt leaves
// that side of the window open.
type DiscountPolicy struct {
	Enabled    bool
	Percentage decimal.Decimal
	StartsAt   time.Time
	EndsAt     time.Time
}

// NewDiscountPolicy builds the policy from configuration.
func NewDiscountPolicy(cfg config.DiscountConfig) DiscountPolicy {
	return DiscountPolicy{
		Enabled:    cfg.Enabled,
		Percentage: cfg.Percentage,
		StartsAt:   cfg.StartsAt,
		EndsAt:     cfg.EndsAt,
	}
}

// ActiveAt reports whether the discount applies at now. Both window bounds are inclusive.
func (p DiscountPolicy) ActiveAt(now time.Time) bool {
	if !p.Enabled || !p.Percentage.IsPositive() {
		return false
	}
	if !p.StartsAt.IsZero() && now.Before(p.StartsAt) {
		return false
	}
	if !p.EndsAt.IsZero() && now.After(p.EndsAt) {
		return false
	}
	return true
}
