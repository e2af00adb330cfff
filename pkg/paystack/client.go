package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultBaseURL = "https://api.paystack.co"
	defaultTimeout = 10 * time.Second
)

const responseBodyReadLimit int64 = 1024

// StatusSuccess is the transaction status Paystack reports for a settled charge.
const StatusSuccess = "success"

var (
	errSecretRequired = errors.New("paystack secret key is required")

	// ErrUnavailable marks transport failures, timeouts, throttling, rejected
	// credentials and 5xx responses.
	ErrUnavailable = errors.New("paystack unavailable")
	// ErrRejected marks a definitive answer from Paystack that the reference is not payable.
	ErrRejected = errors.New("paystack rejected transaction")
)

// Client calls the Paystack transaction API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Paystack API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every request made by the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a Paystack client for the given secret key.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, errSecretRequired
	}

	client := &Client{
		secretKey:  trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	return client, nil
}

// Transaction is the subset of the verify response the storefront relies on.
// Amount is in minor units (kobo for NGN).
type Transaction struct {
	Reference       string
	Status          string
	Amount          int64
	Currency        string
	GatewayResponse string
	PaidAt          *time.Time
}

// Succeeded reports whether Paystack settled the charge.
func (t Transaction) Succeeded() bool {
	return strings.EqualFold(t.Status, StatusSuccess)
}

// VerifyTransaction looks up a transaction by reference. Gateway outages and
// credential failures wrap ErrUnavailable; any other 4xx or a status:false
// body wraps ErrRejected.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	endpoint := c.buildURL("transaction/verify/" + url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build verify request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(ErrUnavailable, err), "execute verify request")
	}
	defer func() { _ = resp.Body.Close() }()

	if unavailableStatus(resp.StatusCode) {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(ErrUnavailable, cause), "verify request failed")
	}

	var apiResp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reference       string     `json:"reference"`
			Status          string     `json:"status"`
			Amount          int64      `json:"amount"`
			Currency        string     `json:"currency"`
			GatewayResponse string     `json:"gateway_response"`
			PaidAt          *time.Time `json:"paid_at"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiResp); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			cause := fmt.Errorf("status %d", resp.StatusCode)
			return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, errors.Join(ErrRejected, cause), "verify request rejected")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(ErrUnavailable, err), "decode verify response")
	}

	if resp.StatusCode >= http.StatusBadRequest || !apiResp.Status {
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(apiResp.Message))
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, errors.Join(ErrRejected, cause), "verify request rejected")
	}

	ref := apiResp.Data.Reference
	if ref == "" {
		ref = trimmed
	}
	return &Transaction{
		Reference:       ref,
		Status:          apiResp.Data.Status,
		Amount:          apiResp.Data.Amount,
		Currency:        strings.ToUpper(apiResp.Data.Currency),
		GatewayResponse: apiResp.Data.GatewayResponse,
		PaidAt:          apiResp.Data.PaidAt,
	}, nil
}

// unavailableStatus reports statuses where Paystack made no decision about the
// reference: outages, throttling and a secret key it refused.
func unavailableStatus(code int) bool {
	switch {
	case code >= http.StatusInternalServerError:
		return true
	case code == http.StatusTooManyRequests, code == http.StatusUnauthorized, code == http.StatusForbidden:
		return true
	}
	return false
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
