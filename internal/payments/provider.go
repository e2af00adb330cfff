package payments

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/paystack"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

// NewFromConfig builds the verifier for the configured provider, wrapped in a
// circuit breaker.
func NewFromConfig(ctx context.Context, cfg *config.Config, m *metrics.CheckoutMetrics, logg *logger.Logger) (*GuardedVerifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	provider, err := enums.ParsePaymentProvider(cfg.Payments.NormalizedProvider())
	if err != nil {
		return nil, err
	}

	var inner Verifier
	switch provider {
	case enums.PaymentProviderSquare:
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("square client: %w", err)
		}
		if inner, err = NewSquareVerifier(client); err != nil {
			return nil, err
		}
	default:
		client, err := paystack.NewClient(
			cfg.Payments.PaystackSecret,
			paystack.WithBaseURL(cfg.Payments.PaystackBaseURL),
			paystack.WithTimeout(cfg.Payments.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("paystack client: %w", err)
		}
		if inner, err = NewPaystackVerifier(client); err != nil {
			return nil, err
		}
	}

	return NewGuardedVerifier(inner, provider, BreakerSettings{
		ConsecutiveFailures: cfg.Payments.BreakerFailures,
		Cooldown:            cfg.Payments.BreakerCooldown,
	}, m, logg)
}
