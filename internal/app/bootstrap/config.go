// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/features/adminauth"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// minSecretLen matches the token issuer's requirement.
const minSecretLen = 32

// appConfigKeys defines the configuration keys for Mukhalis.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: MUKHALIS_MONGO_URI, MUKHALIS_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "mukhalis", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Tokens
	{Name: "jwt_secret", Default: "", Desc: "Access token signing secret (32+ bytes)"},
	{Name: "jwt_refresh_secret", Default: "", Desc: "Refresh token signing secret (32+ bytes, distinct from jwt_secret)"},
	{Name: "jwt_expires_in", Default: "168h", Desc: "Access token lifetime"},
	{Name: "jwt_refresh_expires_in", Default: "720h", Desc: "Refresh token lifetime"},

	// OTP
	{Name: "otp_provider", Default: "local", Desc: "OTP provider: 'local' or 'twilio'"},
	{Name: "otp_expiry", Default: "10m", Desc: "Lifetime of locally generated OTP sessions"},
	{Name: "otp_bypass_enabled", Default: false, Desc: "Accept otp_bypass_code for any phone (review accounts only)"},
	{Name: "otp_bypass_code", Default: "", Desc: "Fixed OTP accepted when bypass is enabled"},

	// Twilio
	{Name: "twilio_account_sid", Default: "", Desc: "Twilio account SID"},
	{Name: "twilio_auth_token", Default: "", Desc: "Twilio auth token"},
	{Name: "twilio_verify_service_sid", Default: "", Desc: "Twilio Verify service SID (otp_provider=twilio)"},
	{Name: "twilio_from", Default: "", Desc: "Sender number for sms_provider=twilio"},

	// SMS for local codes
	{Name: "sms_provider", Default: "none", Desc: "SMS transport for local OTP codes: 'none', 'sns' or 'twilio'"},
	{Name: "sns_region", Default: "", Desc: "AWS region for SNS SMS"},
	{Name: "sns_sender_id", Default: "Mukhalis", Desc: "SNS alphanumeric sender ID"},

	// Push
	{Name: "push_enabled", Default: true, Desc: "Send push notifications through Expo (false logs them)"},
	{Name: "expo_push_url", Default: "https://exp.host/--/api/v2/push/send", Desc: "Expo push endpoint"},
	{Name: "expo_access_token", Default: "", Desc: "Expo access token for enhanced push security"},

	// Redis
	{Name: "redis_addr", Default: "", Desc: "Redis address for shared rate limiting (blank uses in-process limits)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Staff
	{Name: "admin_credentials", Default: "", Desc: "Staff logins as email:role:bcrypthash, comma separated"},

	// Response URLs
	{Name: "base_url", Default: "http://localhost:5000", Desc: "Public origin for upload URLs in responses"},
	{Name: "local_port", Default: 5000, Desc: "Port embedded in development URLs that get rewritten to base_url"},

	// Jobs
	{Name: "notification_retention", Default: "2160h", Desc: "Delete notifications older than this (0 disables)"},

	// Timeouts
	{Name: "timeout_short", Default: "0s", Desc: "Override for single-document operations"},
	{Name: "timeout_medium", Default: "0s", Desc: "Override for list and aggregate operations"},
	{Name: "timeout_long", Default: "0s", Desc: "Override for bulk operations"},
	{Name: "timeout_push", Default: "0s", Desc: "Override for one push gateway call"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, MUKHALIS_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "MUKHALIS", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTAccessSecret:  appValues.String("jwt_secret"),
		JWTRefreshSecret: appValues.String("jwt_refresh_secret"),
		JWTAccessTTL:     appValues.Duration("jwt_expires_in", 7*24*time.Hour),
		JWTRefreshTTL:    appValues.Duration("jwt_refresh_expires_in", 30*24*time.Hour),

		OTPProvider:      strings.ToLower(strings.TrimSpace(appValues.String("otp_provider"))),
		OTPExpiry:        appValues.Duration("otp_expiry", 10*time.Minute),
		OTPBypassEnabled: appValues.Bool("otp_bypass_enabled"),
		OTPBypassCode:    appValues.String("otp_bypass_code"),

		TwilioAccountSID: appValues.String("twilio_account_sid"),
		TwilioAuthToken:  appValues.String("twilio_auth_token"),
		TwilioVerifySID:  appValues.String("twilio_verify_service_sid"),
		TwilioFrom:       appValues.String("twilio_from"),

		SMSProvider: strings.ToLower(strings.TrimSpace(appValues.String("sms_provider"))),
		SNSRegion:   appValues.String("sns_region"),
		SNSSenderID: appValues.String("sns_sender_id"),

		PushEnabled:     appValues.Bool("push_enabled"),
		ExpoPushURL:     appValues.String("expo_push_url"),
		ExpoAccessToken: appValues.String("expo_access_token"),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		AdminCredentials: appValues.String("admin_credentials"),

		BaseURL:   appValues.String("base_url"),
		LocalPort: appValues.Int("local_port"),

		NotificationRetention: appValues.Duration("notification_retention", 90*24*time.Hour),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
		TimeoutPush:   appValues.Duration("timeout_push", 0),
	}

	// Development builds get working tokens without extra setup.
	if coreCfg.Env == "dev" {
		if appCfg.JWTAccessSecret == "" {
			appCfg.JWTAccessSecret = "dev-only-access-secret-change-me-0123456789"
			logger.Warn("jwt_secret not set; using development secret")
		}
		if appCfg.JWTRefreshSecret == "" {
			appCfg.JWTRefreshSecret = "dev-only-refresh-secret-change-me-0123456789"
			logger.Warn("jwt_refresh_secret not set; using development secret")
		}
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

func validateApp(env string, appCfg AppConfig) error {
	if len(appCfg.JWTAccessSecret) < minSecretLen || len(appCfg.JWTRefreshSecret) < minSecretLen {
		return fmt.Errorf("jwt_secret and jwt_refresh_secret must be at least %d bytes", minSecretLen)
	}
	if appCfg.JWTAccessSecret == appCfg.JWTRefreshSecret {
		return fmt.Errorf("jwt_secret and jwt_refresh_secret must differ")
	}

	switch appCfg.OTPProvider {
	case "local":
	case "twilio":
		if appCfg.TwilioAccountSID == "" || appCfg.TwilioAuthToken == "" || appCfg.TwilioVerifySID == "" {
			return fmt.Errorf("otp_provider=twilio requires twilio_account_sid, twilio_auth_token and twilio_verify_service_sid")
		}
	default:
		return fmt.Errorf("unknown otp_provider %q (want local or twilio)", appCfg.OTPProvider)
	}

	switch appCfg.SMSProvider {
	case "", "none":
		if appCfg.OTPProvider == "local" && env == "prod" {
			return fmt.Errorf("otp_provider=local in prod requires sms_provider sns or twilio")
		}
	case "sns":
		if appCfg.SNSRegion == "" {
			return fmt.Errorf("sms_provider=sns requires sns_region")
		}
	case "twilio":
		if appCfg.TwilioAccountSID == "" || appCfg.TwilioAuthToken == "" || appCfg.TwilioFrom == "" {
			return fmt.Errorf("sms_provider=twilio requires twilio_account_sid, twilio_auth_token and twilio_from")
		}
	default:
		return fmt.Errorf("unknown sms_provider %q (want none, sns or twilio)", appCfg.SMSProvider)
	}

	if appCfg.OTPBypassEnabled && len(appCfg.OTPBypassCode) != 6 {
		return fmt.Errorf("otp_bypass_enabled requires a 6-digit otp_bypass_code")
	}

	if appCfg.AdminCredentials != "" {
		if _, err := adminauth.ParseCredentials(appCfg.AdminCredentials); err != nil {
			return fmt.Errorf("admin_credentials: %w", err)
		}
	}
	return nil
}
