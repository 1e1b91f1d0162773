package otp

import (
	"context"
	"errors"
	"strings"
	"testing"

	verify "github.com/twilio/twilio-go/rest/verify/v2"
)

type recordingSMS struct {
	phone, body string
	err         error
}

func (r *recordingSMS) SendSMS(_ context.Context, phone, body string) error {
	r.phone, r.body = phone, body
	return r.err
}

func TestLocalProvider_SendUsesSMS(t *testing.T) {
	sms := &recordingSMS{}
	p := NewLocalProvider(sms, nil)

	code, err := p.Send(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !sixDigits.MatchString(code) {
		t.Errorf("code %q is not six digits", code)
	}
	if sms.phone != testPhone {
		t.Errorf("sms phone = %q", sms.phone)
	}
	if len(sms.body) == 0 || !strings.Contains(sms.body, code) {
		t.Errorf("sms body %q does not carry the code", sms.body)
	}
}

func TestLocalProvider_SendFailure(t *testing.T) {
	p := NewLocalProvider(&recordingSMS{err: errBoom}, nil)
	if _, err := p.Send(context.Background(), testPhone); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestLocalProvider_Check(t *testing.T) {
	p := NewLocalProvider(nil, nil)
	ctx := context.Background()

	tests := []struct {
		stored, submitted string
		want              bool
	}{
		{"123456", "123456", true},
		{"123456", "123457", false},
		{"123456", "12345", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := p.Check(ctx, testPhone, tt.stored, tt.submitted)
		if err != nil {
			t.Fatalf("Check error: %v", err)
		}
		if got != tt.want {
			t.Errorf("Check(%q, %q) = %v, want %v", tt.stored, tt.submitted, got, tt.want)
		}
	}
}

func TestGenerateCode_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		c := GenerateCode()
		if !sixDigits.MatchString(c) {
			t.Fatalf("code %q is not six digits", c)
		}
		if c[0] == '0' {
			t.Fatalf("code %q below 100000", c)
		}
	}
}

type fakeVerify struct {
	sendErr     error
	checkStatus string
	to, code    string
}

func (f *fakeVerify) CreateVerification(_ string, p *verify.CreateVerificationParams) (*verify.VerifyV2Verification, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.to = *p.To
	status := "pending"
	return &verify.VerifyV2Verification{Status: &status}, nil
}

func (f *fakeVerify) CreateVerificationCheck(_ string, p *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error) {
	f.code = *p.Code
	status := f.checkStatus
	return &verify.VerifyV2VerificationCheck{Status: &status}, nil
}

func TestTwilioProvider_SendAndCheck(t *testing.T) {
	api := &fakeVerify{checkStatus: "approved"}
	p := newTwilioProvider(api, "VA123", nil)
	ctx := context.Background()

	code, err := p.Send(ctx, testPhone)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if code != "" {
		t.Errorf("twilio owns the code, got %q", code)
	}
	if api.to != testPhone {
		t.Errorf("to = %q", api.to)
	}

	ok, err := p.Check(ctx, testPhone, "ignored", "654321")
	if err != nil || !ok {
		t.Fatalf("Check = %v, %v", ok, err)
	}
	if api.code != "654321" {
		t.Errorf("checked code = %q", api.code)
	}

	api.checkStatus = "pending"
	if ok, _ := p.Check(ctx, testPhone, "", "000000"); ok {
		t.Error("pending status must not verify")
	}
}

func TestTwilioProvider_SendError(t *testing.T) {
	p := newTwilioProvider(&fakeVerify{sendErr: errBoom}, "VA123", nil)
	if _, err := p.Send(context.Background(), testPhone); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestNewTwilioProvider_Unconfigured(t *testing.T) {
	if _, err := NewTwilioProvider("", "", "", nil); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}
