package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultBreakerFailures uint32 = 5
	defaultBreakerCooldown        = 30 * time.Second
)

// BreakerSettings controls when the gateway circuit opens.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

// GuardedVerifier adds a circuit breaker, metrics and logging around a Verifier.
// Only outages count as breaker failures.
type GuardedVerifier struct {
	inner    Verifier
	provider enums.PaymentProvider
	breaker  *gobreaker.CircuitBreaker[Verification]
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewGuardedVerifier(inner Verifier, provider enums.PaymentProvider, settings BreakerSettings, m *metrics.CheckoutMetrics, logg *logger.Logger) (*GuardedVerifier, error) {
	if inner == nil {
		return nil, errors.New("verifier required")
	}
	if !provider.IsValid() {
		return nil, fmt.Errorf("unsupported payment provider %q", provider)
	}
	failures := settings.ConsecutiveFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := settings.Cooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	g := &GuardedVerifier{
		inner:    inner,
		provider: provider,
		metrics:  m,
		logg:     logg,
		now:      time.Now,
	}
	g.breaker = gobreaker.NewCircuitBreaker[Verification](gobreaker.Settings{
		Name:        "payments." + string(provider),
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrGatewayUnreachable)
		},
		OnStateChange: g.onStateChange,
	})
	return g, nil
}

func (g *GuardedVerifier) Verify(ctx context.Context, reference string) (Verification, error) {
	if _, err := normalizeReference(reference); err != nil {
		return Verification{}, err
	}

	started := g.now()
	result, err := g.breaker.Execute(func() (Verification, error) {
		return g.inner.Verify(ctx, reference)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.metrics.IncVerification(string(g.provider), metrics.OutcomeUnreachable)
		return Verification{Reference: reference, Provider: g.provider}, unreachable(g.provider, err)
	}
	g.metrics.ObserveGateway(string(g.provider), g.now().Sub(started))

	switch {
	case errors.Is(err, ErrGatewayUnreachable):
		g.metrics.IncVerification(string(g.provider), metrics.OutcomeUnreachable)
		if g.logg != nil {
			g.logg.Error(g.logg.WithPaymentReference(ctx, reference), "payment.verify unreachable", err)
		}
	case err != nil:
		// input errors are not gateway outcomes
	case result.Verified:
		g.metrics.IncVerification(string(g.provider), metrics.OutcomeVerified)
	default:
		g.metrics.IncVerification(string(g.provider), metrics.OutcomeDeclined)
		if g.logg != nil {
			g.logg.Info(g.logg.WithPaymentReference(ctx, reference), "payment.verify declined")
		}
	}
	return result, err
}

// State exposes the breaker state for readiness reporting.
func (g *GuardedVerifier) State() string {
	return g.breaker.State().String()
}

func (g *GuardedVerifier) onStateChange(name string, from, to gobreaker.State) {
	if g.logg == nil {
		return
	}
	ctx := g.logg.WithFields(context.Background(), map[string]any{
		"breaker": name,
		"from":    from.String(),
		"to":      to.String(),
	})
	g.logg.Warn(ctx, "payment.breaker state changed")
}
