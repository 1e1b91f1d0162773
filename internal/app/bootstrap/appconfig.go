// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP ports,
// TLS, logging level, CORS and request body size limits. Everything
// Mukhalis-specific lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer tokens
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration

	// OTP
	OTPProvider      string        // "local" (generate and SMS) or "twilio" (Verify)
	OTPExpiry        time.Duration // local sessions only
	OTPBypassEnabled bool          // app-store review login
	OTPBypassCode    string

	// Twilio: Verify for OTP, Messaging for local-code SMS
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioVerifySID  string
	TwilioFrom       string

	// SMS transport for locally generated codes: "none", "sns" or "twilio"
	SMSProvider string
	SNSRegion   string
	SNSSenderID string

	// Push delivery
	PushEnabled     bool
	ExpoPushURL     string
	ExpoAccessToken string

	// Redis backs the rate limiters when set; otherwise they are in-process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Staff login table: email:role:bcrypthash entries, comma separated
	AdminCredentials string

	// Public origin that upload paths and localhost URLs in responses are
	// rewritten to. LocalPort is the port development builds embed.
	BaseURL   string
	LocalPort int

	// Retention for the nightly notification purge. Zero disables it.
	NotificationRetention time.Duration

	// Operation deadlines; zero keeps the package default
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
	TimeoutPush   time.Duration
}
