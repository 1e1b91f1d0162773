// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON endpoints.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxAuthBody caps OTP and staff login requests.
	MaxAuthBody = 16 << 10 // 16 KB

	// MaxSettingsBody caps preference and push token updates.
	MaxSettingsBody = 8 << 10 // 8 KB

	// MaxBroadcastBody caps admin notification create and bulk delete. A
	// full individuals list is 1000 ids.
	MaxBroadcastBody = 256 << 10 // 256 KB
)
