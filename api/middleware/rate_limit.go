package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// LimitPolicy is a fixed-window budget for one surface. PerEmail counts the
// "email" field of the JSON body and is meant for admin login.
type LimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
	// FailOpen lets traffic through when the counter store errors.
	FailOpen bool
}

// StorefrontLimit guards a public storefront endpoint. A Redis outage must
// not stop customers from paying, so it fails open.
func StorefrontLimit(name string, window time.Duration, perIP int) LimitPolicy {
	return LimitPolicy{Name: name, Window: window, PerIP: perIP, FailOpen: true}
}

// AdminLoginLimit guards the admin login against password guessing.
func AdminLoginLimit(window time.Duration, perIP, perEmail int) LimitPolicy {
	return LimitPolicy{Name: "admin_login", Window: window, PerIP: perIP, PerEmail: perEmail}
}

func (p LimitPolicy) enabled() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

func (p LimitPolicy) scope() string {
	if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" {
		return name
	}
	return "public"
}

type limitCheck struct {
	dimension string
	value     string
	limit     int
}

// RateLimit counts requests per client IP and, when configured, per login
// email. Exhausted budgets answer 429 with Retry-After.
func RateLimit(policy LimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			checks := make([]limitCheck, 0, 2)
			if policy.PerIP > 0 {
				checks = append(checks, limitCheck{dimension: "ip", value: clientIP(r), limit: policy.PerIP})
			}
			if policy.PerEmail > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := loginEmail(body); email != "" {
					checks = append(checks, limitCheck{dimension: "email", value: hashValue(email), limit: policy.PerEmail})
				}
			}

			for _, check := range checks {
				key := fmt.Sprintf("rl:%s:%s:%s", policy.scope(), check.dimension, check.value)
				count, err := store.IncrWithTTL(ctx, key, policy.Window)
				if err != nil {
					if policy.FailOpen {
						if logg != nil {
							logg.Error(logg.WithField(ctx, "policy", policy.scope()), "rate_limit.store_failed", err)
						}
						break
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(check.limit) {
					rejectOverLimit(ctx, logg, w, policy, check, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectOverLimit(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy LimitPolicy, check limitCheck, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.scope(),
			"dimension":      check.dimension,
			check.dimension:  check.value,
			"attempts":       count,
			"limit":          check.limit,
			"window_seconds": int(policy.Window.Seconds()),
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// clientIP prefers the first X-Forwarded-For hop since the API runs behind a
// proxy in every deployment.
func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func loginEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
