package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Verification outcomes.
const (
	OutcomeVerified    = "verified"
	OutcomeDeclined    = "declined"
	OutcomeUnreachable = "unreachable"
)

// Order recording results.
const (
	RecordCreated      = "created"
	RecordDeduplicated = "deduplicated"
)

// CheckoutMetrics covers pricing, gateway verification and order recording.
type CheckoutMetrics struct {
	quotes              *prometheus.CounterVec
	verifications       *prometheus.CounterVec
	gatewayLatency      *prometheus.HistogramVec
	ordersRecorded      *prometheus.CounterVec
	amountMismatches    prometheus.Counter
	persistenceFailures prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_quotes_total",
		Help: "Checkout price quotes by shipping tier.",
	}, []string{"shipping_tier"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verification attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_duration_seconds",
		Help:    "Latency of payment gateway verification calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider"})
	ordersRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_recorded_total",
		Help: "Order recorder calls by result.",
	}, []string{"result"})
	amountMismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_amount_mismatches_total",
		Help: "Verified payments whose amount differs from the server-computed total.",
	})
	persistenceFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_persistence_failures_total",
		Help: "Verified payments whose order could not be recorded.",
	})
	reg.MustRegister(quotes, verifications, gatewayLatency, ordersRecorded, amountMismatches, persistenceFailures)
	return &CheckoutMetrics{
		quotes:              quotes,
		verifications:       verifications,
		gatewayLatency:      gatewayLatency,
		ordersRecorded:      ordersRecorded,
		amountMismatches:    amountMismatches,
		persistenceFailures: persistenceFailures,
	}
}

func (m *CheckoutMetrics) IncQuote(tier string) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(normalizeLabel(tier)).Inc()
}

func (m *CheckoutMetrics) IncVerification(provider, outcome string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) ObserveGateway(provider string, d time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(provider)).Observe(d.Seconds())
}

func (m *CheckoutMetrics) IncOrderRecorded(result string) {
	if m == nil || m.ordersRecorded == nil {
		return
	}
	m.ordersRecorded.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CheckoutMetrics) IncAmountMismatch() {
	if m == nil || m.amountMismatches == nil {
		return
	}
	m.amountMismatches.Inc()
}

// IncPersistenceFailure counts paid orders that need manual reconciliation.
func (m *CheckoutMetrics) IncPersistenceFailure() {
	if m == nil || m.persistenceFailures == nil {
		return
	}
	m.persistenceFailures.Inc()
}
