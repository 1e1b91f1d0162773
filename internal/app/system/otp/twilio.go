package otp

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	verify "github.com/twilio/twilio-go/rest/verify/v2"
	"go.uber.org/zap"
)

// verifyAPI is the slice of the Twilio Verify client the provider calls.
type verifyAPI interface {
	CreateVerification(serviceSid string, params *verify.CreateVerificationParams) (*verify.VerifyV2Verification, error)
	CreateVerificationCheck(serviceSid string, params *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error)
}

// TwilioProvider sends and checks codes through Twilio Verify. Twilio owns
// the code, so Send returns "".
type TwilioProvider struct {
	api        verifyAPI
	serviceSID string
	log        *zap.Logger
}

// NewTwilioProvider builds a provider from account credentials and a Verify
// service SID. Missing credentials yield ErrProviderUnavailable.
func NewTwilioProvider(accountSID, authToken, serviceSID string, logger *zap.Logger) (*TwilioProvider, error) {
	if accountSID == "" || authToken == "" || serviceSID == "" {
		return nil, fmt.Errorf("%w: twilio credentials not configured", ErrProviderUnavailable)
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioProvider(client.VerifyV2, serviceSID, logger), nil
}

func newTwilioProvider(api verifyAPI, serviceSID string, logger *zap.Logger) *TwilioProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwilioProvider{api: api, serviceSID: serviceSID, log: logger}
}

func (p *TwilioProvider) Name() string { return "twilio" }

// Send starts an SMS verification for phone.
func (p *TwilioProvider) Send(_ context.Context, phone string) (string, error) {
	params := &verify.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel("sms")

	resp, err := p.api.CreateVerification(p.serviceSID, params)
	if err != nil {
		p.log.Error("twilio send verification failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	status := ""
	if resp != nil && resp.Status != nil {
		status = *resp.Status
	}
	p.log.Info("twilio verification sent", zap.String("phone", maskPhone(phone)), zap.String("status", status))
	return "", nil
}

// Check asks Twilio whether submitted is the pending code for phone.
func (p *TwilioProvider) Check(_ context.Context, phone, _ string, submitted string) (bool, error) {
	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(submitted)

	resp, err := p.api.CreateVerificationCheck(p.serviceSID, params)
	if err != nil {
		p.log.Error("twilio verification check failed", zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return resp != nil && resp.Status != nil && *resp.Status == "approved", nil
}
