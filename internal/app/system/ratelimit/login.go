package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"go.uber.org/zap"
)

// LoginLimiter rate limits sign-in attempts. It tracks both IP-based and
// subject-based limits (the phone for OTP, the email for admin login) to
// prevent:
// - Distributed attacks from multiple IPs
// - Targeted attacks on specific accounts
type LoginLimiter struct {
	ip      Allower
	subject Allower
	log     *zap.Logger
}

// NewLoginLimiter combines an IP limiter and a subject limiter.
func NewLoginLimiter(ip, subject Allower, logger *zap.Logger) *LoginLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginLimiter{ip: ip, subject: subject, log: logger}
}

// NewMemoryLoginLimiter creates an in-process limiter with the given limits.
func NewMemoryLoginLimiter(ipLimit int, ipDuration time.Duration, subjectLimit int, subjectDuration time.Duration) *LoginLimiter {
	return NewLoginLimiter(New(ipLimit, ipDuration), New(subjectLimit, subjectDuration), nil)
}

// Check verifies if an attempt should be allowed.
// Returns (allowed, reason) where reason explains why it was blocked.
// Limiter backend errors fail open and are logged.
func (ll *LoginLimiter) Check(ctx context.Context, r *http.Request, subject string) (bool, string) {
	ip := ClientIP(r)

	// Check IP limit first
	if !ll.allow(ctx, ll.ip, "ip:"+ip) {
		return false, "Too many attempts. Please try again later."
	}

	if subject != "" {
		key := strings.ToLower(strings.TrimSpace(subject))
		if !ll.allow(ctx, ll.subject, "sub:"+key) {
			return false, "Too many attempts for this account. Please wait a few minutes."
		}
	}

	return true, ""
}

func (ll *LoginLimiter) allow(ctx context.Context, a Allower, key string) bool {
	if a == nil {
		return true
	}
	ok, err := a.Allow(ctx, key)
	if err != nil {
		ll.log.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	return ok
}

// ResetSubject clears the subject limit after a successful sign-in.
func (ll *LoginLimiter) ResetSubject(ctx context.Context, subject string) {
	if subject == "" || ll.subject == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(subject))
	if err := ll.subject.Reset(ctx, "sub:"+key); err != nil {
		ll.log.Warn("rate limiter reset failed", zap.Error(err))
	}
}

// Middleware limits requests per client IP with a and answers 429 when the
// window is full. Backend errors fail open.
func Middleware(a Allower, message string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := a.Allow(r.Context(), "ip:"+ClientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				ok = true
			}
			if !ok {
				jsonresp.Fail(w, http.StatusTooManyRequests, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
