package bootstrap

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func validConfig() AppConfig {
	return AppConfig{
		JWTAccessSecret:  strings.Repeat("a", 32),
		JWTRefreshSecret: strings.Repeat("b", 32),
		OTPProvider:      "local",
		SMSProvider:      "none",
	}
}

func TestValidateApp(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"dev defaults", "dev", func(*AppConfig) {}, ""},
		{"short secret", "dev", func(c *AppConfig) { c.JWTAccessSecret = "short" }, "at least"},
		{"same secrets", "dev", func(c *AppConfig) { c.JWTRefreshSecret = c.JWTAccessSecret }, "must differ"},
		{"unknown otp provider", "dev", func(c *AppConfig) { c.OTPProvider = "carrier-pigeon" }, "unknown otp_provider"},
		{"twilio missing sid", "dev", func(c *AppConfig) { c.OTPProvider = "twilio" }, "twilio_verify_service_sid"},
		{"twilio complete", "prod", func(c *AppConfig) {
			c.OTPProvider = "twilio"
			c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioVerifySID = "AC1", "tok", "VA1"
		}, ""},
		{"local without sms in prod", "prod", func(*AppConfig) {}, "requires sms_provider"},
		{"sns without region", "prod", func(c *AppConfig) { c.SMSProvider = "sns" }, "sns_region"},
		{"sns with region", "prod", func(c *AppConfig) { c.SMSProvider, c.SNSRegion = "sns", "me-south-1" }, ""},
		{"bad sms provider", "dev", func(c *AppConfig) { c.SMSProvider = "fax" }, "unknown sms_provider"},
		{"bypass without code", "dev", func(c *AppConfig) { c.OTPBypassEnabled = true }, "otp_bypass_code"},
		{"bypass with code", "dev", func(c *AppConfig) { c.OTPBypassEnabled, c.OTPBypassCode = true, "123456" }, ""},
		{"bad admin credentials", "dev", func(c *AppConfig) { c.AdminCredentials = "ops@mukhalis.sa:root:nothash" }, "admin_credentials"},
		{"good admin credentials", "dev", func(c *AppConfig) { c.AdminCredentials = "ops@mukhalis.sa:admin:" + string(hash) }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := validateApp(tt.env, cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
