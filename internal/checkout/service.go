package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// ErrPaymentDeclined is returned when the gateway did not confirm the payment.
var ErrPaymentDeclined = errors.New("payment declined")

// DeclinedMessage is the customer-facing text for a declined verification.
const DeclinedMessage = "Verification failed"

type quoter interface {
	Quote(ctx context.Context, input pricing.QuoteInput) (*pricing.Quote, error)
}

type recorder interface {
	RecordOrder(ctx context.Context, input orders.RecordInput) (*orders.RecordResult, error)
}

// Service verifies a payment with the gateway and records the order.
type Service interface {
	VerifyAndRecord(ctx context.Context, input VerifyInput) (*VerifyResult, error)
}

// VerifyInput is the checkout payload submitted after the customer paid.
type VerifyInput struct {
	Reference string
	Lines     []pricing.CartLine
	Shipping  string
	Customer  orders.Customer
	// ClientTotal is the grand total the storefront displayed. It is only compared.
	ClientTotal *decimal.Decimal
}

// VerifyResult reports a verified payment. PersistenceFailed means the
// customer paid but the order still needs manual reconciliation.
type VerifyResult struct {
	Reference         string
	Verification      payments.Verification
	Quote             *pricing.Quote
	OrderID           *uuid.UUID
	Created           bool
	AmountMismatch    bool
	PersistenceFailed bool
}

type ServiceParams struct {
	Verifier payments.Verifier
	Pricing  quoter
	Orders   recorder
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

type service struct {
	verifier payments.Verifier
	pricing  quoter
	orders   recorder
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Verifier == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order recorder required")
	}
	return &service{
		verifier: params.Verifier,
		pricing:  params.Pricing,
		orders:   params.Orders,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// VerifyAndRecord confirms the payment before anything is written. Once the
// gateway confirms, failures to price or store the order never turn into an
// error for the customer.
func (s *service) VerifyAndRecord(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, payments.ErrReferenceRequired, "payment reference is required")
	}
	if s.logg != nil {
		ctx = s.logg.WithPaymentReference(ctx, reference)
	}

	verification, err := s.verifier.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !verification.Verified {
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "gateway_status", verification.GatewayStatus), "payment.verify declined")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, ErrPaymentDeclined, DeclinedMessage).
			WithDetails(map[string]any{"reference": reference})
	}

	result := &VerifyResult{Reference: reference, Verification: verification}

	quote, err := s.pricing.Quote(ctx, pricing.QuoteInput{Lines: input.Lines, Shipping: input.Shipping})
	if err != nil {
		s.persistenceFailed(ctx, input, verification, nil, err)
		result.PersistenceFailed = true
		return result, nil
	}
	result.Quote = quote

	if !verification.AmountPaid.Equal(quote.GrandTotal) {
		result.AmountMismatch = true
		s.metrics.IncAmountMismatch()
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"amount_paid":  verification.AmountPaid.StringFixed(2),
				"grand_total":  quote.GrandTotal.StringFixed(2),
				"client_total": clientTotal(input.ClientTotal),
			})
			s.logg.Warn(logCtx, "payment.amount_mismatch")
		}
	}

	recorded, err := s.orders.RecordOrder(ctx, orders.RecordInput{
		PaymentReference: reference,
		PaymentProvider:  verification.Provider,
		AmountPaid:       verification.AmountPaid,
		Currency:         currencyOf(verification, quote),
		Customer:         input.Customer,
		Totals:           quote.Result,
	})
	if err != nil {
		s.persistenceFailed(ctx, input, verification, quote, err)
		result.PersistenceFailed = true
		return result, nil
	}

	orderID := recorded.Order.ID
	result.OrderID = &orderID
	result.Created = recorded.Created
	return result, nil
}

func (s *service) persistenceFailed(ctx context.Context, input VerifyInput, verification payments.Verification, quote *pricing.Quote, err error) {
	s.metrics.IncPersistenceFailure()
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"customer_name":  input.Customer.Name,
		"customer_email": input.Customer.Email,
		"customer_phone": input.Customer.Phone,
		"provider":       string(verification.Provider),
		"amount_paid":    verification.AmountPaid.StringFixed(2),
		"line_count":     len(input.Lines),
	}
	if quote != nil {
		fields["grand_total"] = quote.GrandTotal.StringFixed(2)
		fields["shipping_tier"] = quote.ShippingTier
	}
	s.logg.Error(s.logg.WithFields(ctx, fields), "order.persistence_failed", err)
}

func currencyOf(verification payments.Verification, quote *pricing.Quote) string {
	if verification.Currency != "" {
		return verification.Currency
	}
	return quote.Currency
}

func clientTotal(total *decimal.Decimal) string {
	if total == nil {
		return ""
	}
	return total.StringFixed(2)
}
