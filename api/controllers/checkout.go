package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	emptyCartMessage   = "Cart is empty"
	unreachableMessage = "Could not reach the payment provider. Please try again shortly."
	verifiedMessage    = "Payment verified"

	maxCustomerFieldLen = 200
	maxAddressLen       = 500
)

type quoteService interface {
	Quote(ctx context.Context, input pricing.QuoteInput) (*pricing.Quote, error)
}

type cartLineRequest struct {
	ID    string           `json:"id" validate:"required,uuid"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Qty   int              `json:"qty" validate:"gt=0"`
}

type quoteRequest struct {
	Cart     []cartLineRequest `json:"cart" validate:"dive"`
	Shipping string            `json:"shipping"`
}

type customerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,max=40"`
	Address  string `json:"address" validate:"required,max=500"`
	Shipping string `json:"shipping"`
}

type totalsRequest struct {
	GrandTotal *decimal.Decimal `json:"grandTotal,omitempty"`
}

type verifyPaymentRequest struct {
	Reference string            `json:"reference" validate:"required,max=100"`
	Cart      []cartLineRequest `json:"cart" validate:"dive"`
	Customer  customerRequest   `json:"customer" validate:"required"`
	Totals    *totalsRequest    `json:"totals,omitempty"`
}

type quoteResponse struct {
	Success        bool         `json:"success"`
	Subtotal       json.Number  `json:"subtotal"`
	ShippingCost   json.Number  `json:"shippingCost"`
	DiscountAmount *json.Number `json:"discountAmount,omitempty"`
	GrandTotal     json.Number  `json:"grandTotal"`
	ShippingTier   string       `json:"shippingTier"`
}

type storefrontResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Reference string     `json:"reference,omitempty"`
	OrderID   *uuid.UUID `json:"orderId,omitempty"`
}

func toCartLines(lines []cartLineRequest) ([]pricing.CartLine, error) {
	out := make([]pricing.CartLine, 0, len(lines))
	for i, line := range lines {
		id, err := uuid.Parse(strings.TrimSpace(line.ID))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id").
				WithDetails(map[string]any{"line": i})
		}
		out = append(out, pricing.CartLine{ProductID: id, Quantity: line.Qty, UnitPrice: line.Price})
	}
	return out, nil
}

func money(value decimal.Decimal) json.Number {
	return json.Number(value.StringFixed(2))
}

// CheckoutQuote prices the client's cart snapshot against the catalog.
func CheckoutQuote(svc quoteService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeStorefrontBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(payload.Cart) == 0 {
			responses.WriteJSON(w, http.StatusBadRequest, storefrontResponse{Success: false, Message: emptyCartMessage})
			return
		}

		lines, err := toCartLines(payload.Cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), pricing.QuoteInput{Lines: lines, Shipping: payload.Shipping})
		if err != nil {
			if errors.Is(err, pricing.ErrEmptyCart) {
				responses.WriteJSON(w, http.StatusBadRequest, storefrontResponse{Success: false, Message: emptyCartMessage})
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := quoteResponse{
			Success:      true,
			Subtotal:     money(quote.Subtotal),
			ShippingCost: money(quote.ShippingCost),
			GrandTotal:   money(quote.GrandTotal),
			ShippingTier: quote.ShippingTier,
		}
		if quote.DiscountActive {
			discount := money(quote.DiscountAmount)
			resp.DiscountAmount = &discount
		}
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}

// VerifyPayment confirms the gateway reference and records the order.
func VerifyPayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload verifyPaymentRequest
		if err := validators.DecodeStorefrontBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(payload.Cart) == 0 {
			responses.WriteJSON(w, http.StatusBadRequest, storefrontResponse{Success: false, Message: emptyCartMessage})
			return
		}

		lines, err := toCartLines(payload.Cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reference := strings.TrimSpace(payload.Reference)
		input := checkoutsvc.VerifyInput{
			Reference: reference,
			Lines:     lines,
			Shipping:  payload.Customer.Shipping,
			Customer: orders.Customer{
				Name:    validators.SanitizeString(payload.Customer.Name, maxCustomerFieldLen),
				Email:   validators.SanitizeString(payload.Customer.Email, maxCustomerFieldLen),
				Phone:   validators.SanitizeString(payload.Customer.Phone, maxCustomerFieldLen),
				Address: validators.SanitizeString(payload.Customer.Address, maxAddressLen),
			},
		}
		if payload.Totals != nil {
			input.ClientTotal = payload.Totals.GrandTotal
		}

		result, err := svc.VerifyAndRecord(r.Context(), input)
		if err != nil {
			switch {
			case errors.Is(err, checkoutsvc.ErrPaymentDeclined):
				responses.WriteJSON(w, http.StatusPaymentRequired, storefrontResponse{
					Success:   false,
					Message:   checkoutsvc.DeclinedMessage,
					Reference: reference,
				})
			case errors.Is(err, payments.ErrGatewayUnreachable):
				responses.WriteJSON(w, http.StatusServiceUnavailable, storefrontResponse{
					Success:   false,
					Message:   unreachableMessage,
					Reference: reference,
				})
			default:
				responses.WriteError(r.Context(), logg, w, err)
			}
			return
		}

		resp := storefrontResponse{
			Success:   true,
			Message:   verifiedMessage,
			Reference: result.Reference,
			OrderID:   result.OrderID,
		}
		if result.PersistenceFailed {
			// A replay must reach RecordOrder again.
			w.Header().Set("Cache-Control", "no-store")
			resp.Message = fmt.Sprintf("Payment received, but we could not save your order. Please contact support with reference %s.", result.Reference)
		}
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}
