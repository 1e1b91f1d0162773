// Package otp issues and verifies phone login codes.
//
// A Manager owns the session lifecycle (create, verify, resend) and defers
// code delivery and checking to a Provider chosen once at construction:
// TwilioProvider when an external verification service owns the code, or
// LocalProvider when codes are generated here and sent over an SMSSender.
package otp

import (
	"context"
	"errors"
)

var (
	// ErrProviderUnavailable is returned when the code could not be sent or
	// checked because the provider is unconfigured or unreachable.
	ErrProviderUnavailable = errors.New("sms provider unavailable")
)

// Provider delivers and checks login codes.
type Provider interface {
	// Send delivers a code to phone. It returns the code when the caller
	// must store it, or "" when the provider keeps the code itself.
	Send(ctx context.Context, phone string) (string, error)
	// Check reports whether submitted is the right code. storedCode is what
	// Send returned, or the placeholder for provider-owned codes.
	Check(ctx context.Context, phone, storedCode, submitted string) (bool, error)
	// Name identifies the provider in logs and metrics.
	Name() string
}

// Result is the outcome of a verification attempt.
type Result int

const (
	ResultInvalidCode Result = iota
	ResultVerified
	ResultBypassed
	ResultNotFound
	ResultExpired
	ResultTooManyAttempts
)

// OK reports whether the result authenticates the caller.
func (r Result) OK() bool {
	return r == ResultVerified || r == ResultBypassed
}

func (r Result) String() string {
	switch r {
	case ResultVerified:
		return "verified"
	case ResultBypassed:
		return "bypassed"
	case ResultNotFound:
		return "not_found"
	case ResultExpired:
		return "expired"
	case ResultTooManyAttempts:
		return "too_many_attempts"
	default:
		return "invalid_code"
	}
}

// CreateResult is returned from Manager.Create. Code is set only when the
// manager is configured to expose it.
type CreateResult struct {
	SessionID string
	Code      string
}
