package paystack

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestVerifyTransactionSuccess(t *testing.T) {
	var capturedPath, capturedAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":true,"message":"Verification successful","data":{"reference":"ref_123","status":"success","amount":200000,"currency":"ngn","gateway_response":"Successful","paid_at":"2026-10-01T09:30:00.000Z"}}`)
	}))
	defer srv.Close()

	client, err := NewClient("sk_test_secret", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	txn, err := client.VerifyTransaction(context.Background(), " ref_123 ")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if capturedPath != "/transaction/verify/ref_123" {
		t.Fatalf("unexpected path %q", capturedPath)
	}
	if capturedAuth != "Bearer sk_test_secret" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if !txn.Succeeded() || txn.Amount != 200000 || txn.Currency != "NGN" {
		t.Fatalf("unexpected transaction %+v", txn)
	}
	if txn.PaidAt == nil || !txn.PaidAt.Equal(time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected paid_at %v", txn.PaidAt)
	}
}

func TestVerifyTransactionAbandoned(t *testing.T) {
	client := newStubClient(t, http.StatusOK, `{"status":true,"message":"ok","data":{"reference":"ref_9","status":"abandoned","amount":5000,"currency":"NGN"}}`)
	txn, err := client.VerifyTransaction(context.Background(), "ref_9")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if txn.Succeeded() {
		t.Fatal("abandoned transaction must not succeed")
	}
}

func TestVerifyTransactionRejected(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"status":false,"message":"Transaction reference not found"}`},
		{name: "bad request html", status: http.StatusBadRequest, body: `<html>bad</html>`},
		{name: "status false", status: http.StatusOK, body: `{"status":false,"message":"Transaction reference not found"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newStubClient(t, tc.status, tc.body)
			_, err := client.VerifyTransaction(context.Background(), "ref_missing")
			if !errors.Is(err, ErrRejected) {
				t.Fatalf("expected ErrRejected, got %v", err)
			}
			if errors.Is(err, ErrUnavailable) {
				t.Fatal("rejection must not look like an outage")
			}
		})
	}
}

func TestVerifyTransactionUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden} {
		client := newStubClient(t, status, `upstream down`)
		_, err := client.VerifyTransaction(context.Background(), "ref_1")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("status %d: expected ErrUnavailable, got %v", status, err)
		}
		if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
			t.Fatalf("status %d: expected dependency code, got %s", status, pkgerrors.CodeOf(err))
		}
	}

	transportErr := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	client, err := NewClient("sk", WithBaseURL("http://paystack.test"), WithHTTPClient(&http.Client{Transport: transportErr}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.VerifyTransaction(context.Background(), "ref_1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on transport error, got %v", err)
	}
}

func TestVerifyTransactionRequiresReference(t *testing.T) {
	client := newStubClient(t, http.StatusOK, `{}`)
	_, err := client.VerifyTransaction(context.Background(), "  ")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewClientRequiresSecret(t *testing.T) {
	if _, err := NewClient(" "); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func newStubClient(t *testing.T, status int, body string) *Client {
	t.Helper()
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{},
			Request:    req,
		}, nil
	})
	client, err := NewClient("sk_test", WithBaseURL("http://paystack.test"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
