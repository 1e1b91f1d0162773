package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

// CodeLength is the number of digits in a locally generated code.
const CodeLength = 6

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) error
}

// LocalProvider generates codes itself and hands them to an SMSSender.
// With no sender the code is only logged, which is the development setup.
type LocalProvider struct {
	sms SMSSender
	log *zap.Logger
}

// NewLocalProvider returns a LocalProvider. sms may be nil.
func NewLocalProvider(sms SMSSender, logger *zap.Logger) *LocalProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalProvider{sms: sms, log: logger}
}

func (p *LocalProvider) Name() string { return "local" }

// Send draws a new code and delivers it.
func (p *LocalProvider) Send(ctx context.Context, phone string) (string, error) {
	code := GenerateCode()
	if p.sms == nil {
		p.log.Info("otp code generated (no sms channel configured)",
			zap.String("phone", maskPhone(phone)),
			zap.String("code", code))
		return code, nil
	}
	body := fmt.Sprintf("رمز التحقق الخاص بك في مخلص: %s", code)
	if err := p.sms.SendSMS(ctx, phone, body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return code, nil
}

// Check compares submitted with the stored code in constant time.
func (p *LocalProvider) Check(_ context.Context, _ string, storedCode, submitted string) (bool, error) {
	if storedCode == "" || len(storedCode) != len(submitted) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(storedCode), []byte(submitted)) == 1, nil
}

// GenerateCode returns a uniformly random code in 100000..999999.
// Panics if the system's cryptographic random number generator fails.
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		panic("crypto/rand.Int failed: " + err.Error())
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}
