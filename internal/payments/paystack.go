package payments

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/paystack"
)

type paystackAPI interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// PaystackVerifier verifies references against the Paystack transaction API.
type PaystackVerifier struct {
	client paystackAPI
}

func NewPaystackVerifier(client paystackAPI) (*PaystackVerifier, error) {
	if client == nil {
		return nil, errors.New("paystack client required")
	}
	return &PaystackVerifier{client: client}, nil
}

func (v *PaystackVerifier) Verify(ctx context.Context, reference string) (Verification, error) {
	ref, err := normalizeReference(reference)
	if err != nil {
		return Verification{}, err
	}
	result := Verification{Reference: ref, Provider: enums.PaymentProviderPaystack}

	txn, err := v.client.VerifyTransaction(ctx, ref)
	switch {
	case err == nil:
	case errors.Is(err, paystack.ErrRejected):
		result.GatewayStatus = "rejected"
		return result, nil
	default:
		return result, unreachable(enums.PaymentProviderPaystack, err)
	}

	result.GatewayStatus = txn.Status
	result.Currency = txn.Currency
	result.AmountPaid = minorToMajor(txn.Amount)
	result.Verified = txn.Succeeded()
	return result, nil
}
