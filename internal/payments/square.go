package payments

import (
	"context"
	"errors"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const squareStatusCompleted = "COMPLETED"

type squareAPI interface {
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// SquareVerifier treats the reference as a Square payment id.
type SquareVerifier struct {
	client squareAPI
}

func NewSquareVerifier(client squareAPI) (*SquareVerifier, error) {
	if client == nil {
		return nil, errors.New("square client required")
	}
	return &SquareVerifier{client: client}, nil
}

func (v *SquareVerifier) Verify(ctx context.Context, reference string) (Verification, error) {
	ref, err := normalizeReference(reference)
	if err != nil {
		return Verification{}, err
	}
	result := Verification{Reference: ref, Provider: enums.PaymentProviderSquare}

	payment, err := v.client.GetPayment(ctx, ref)
	if err != nil {
		if squareOutage(err) {
			return result, unreachable(enums.PaymentProviderSquare, err)
		}
		result.GatewayStatus = "rejected"
		return result, nil
	}
	if payment == nil {
		result.GatewayStatus = "missing"
		return result, nil
	}

	status := strings.ToUpper(stringValue(payment.GetStatus()))
	result.GatewayStatus = status
	result.Verified = status == squareStatusCompleted
	if money := payment.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			result.AmountPaid = minorToMajor(*amount)
		}
		if currency := money.GetCurrency(); currency != nil {
			result.Currency = string(*currency)
		}
	}
	return result, nil
}

// squareOutage separates gateway outages from definitive 4xx answers.
func squareOutage(err error) bool {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal, pkgerrors.CodeRateLimit:
		return true
	default:
		return false
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
