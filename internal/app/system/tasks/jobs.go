// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredOTPDeleter removes OTP sessions past their expiry.
type ExpiredOTPDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// NotificationPurger removes notifications created before a cutoff.
type NotificationPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// OTPCleanupJob removes expired OTP sessions every ten minutes.
// This is a backup for when MongoDB's TTL monitor is delayed.
func OTPCleanupJob(store ExpiredOTPDeleter, logger *zap.Logger) Job {
	return Job{
		Name:    "otp-session-cleanup",
		Spec:    "0 */10 * * * *",
		Timeout: 30 * time.Second,
		Run: func(ctx context.Context) error {
			count, err := store.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OTP sessions", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// NotificationRetentionJob deletes notifications older than retention once a
// day at 03:00.
func NotificationRetentionJob(store NotificationPurger, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:    "notification-retention",
		Spec:    "0 0 3 * * *",
		Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().UTC().Add(-retention)
			count, err := store.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("purged old notifications",
					zap.Int64("count", count),
					zap.Time("cutoff", cutoff))
			}
			return nil
		},
	}
}
