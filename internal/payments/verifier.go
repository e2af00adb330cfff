package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var (
	// ErrGatewayUnreachable is returned when the gateway could not give an answer.
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
	ErrReferenceRequired  = errors.New("payment reference is required")
)

// Verifier confirms with the gateway that a reference was paid. A gateway
// decline is a successful call with Verified=false.
type Verifier interface {
	Verify(ctx context.Context, reference string) (Verification, error)
}

// Verification is the gateway's answer for one reference.
type Verification struct {
	Reference     string
	Verified      bool
	AmountPaid    decimal.Decimal
	Currency      string
	Provider      enums.PaymentProvider
	GatewayStatus string
}

func unreachable(provider enums.PaymentProvider, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(ErrGatewayUnreachable, err), "Payment gateway unreachable").
		WithDetails(map[string]any{"provider": string(provider)})
}

func normalizeReference(reference string) (string, error) {
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, ErrReferenceRequired, "payment reference is required")
	}
	return trimmed, nil
}

// minorToMajor converts an amount in minor currency units (kobo, cents).
func minorToMajor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
