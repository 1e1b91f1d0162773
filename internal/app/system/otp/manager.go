package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/store/otpsessions"
	"github.com/dalemusser/mukhalis/internal/app/system/metrics"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SessionStore is the persistence the Manager needs. *otpsessions.Store
// satisfies it.
type SessionStore interface {
	Create(ctx context.Context, phone, code string) (*models.OTPSession, error)
	Find(ctx context.Context, phone, sessionID string) (*models.OTPSession, error)
	IncrementAttempts(ctx context.Context, id primitive.ObjectID) (int, error)
	SetCode(ctx context.Context, id primitive.ObjectID, code string) error
	Reset(ctx context.Context, id primitive.ObjectID, code string) (time.Time, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteForSession(ctx context.Context, phone, sessionID string) error
}

// Config tunes a Manager.
type Config struct {
	// BypassEnabled accepts BypassCode for any phone and session. It exists
	// for app-store review accounts only.
	BypassEnabled bool
	BypassCode    string
	// ExposeCode returns locally generated codes from Create. Never set in
	// production.
	ExposeCode bool
	// MaxAttempts defaults to otpsessions.MaxAttempts.
	MaxAttempts int
}

// Manager runs the OTP session state machine.
type Manager struct {
	store    SessionStore
	provider Provider
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

// NewManager wires a Manager.
func NewManager(store SessionStore, provider Provider, cfg Config, logger *zap.Logger) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = otpsessions.MaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		provider: provider,
		cfg:      cfg,
		log:      logger,
		now:      time.Now,
	}
}

// ProviderName returns the configured provider's name.
func (m *Manager) ProviderName() string {
	return m.provider.Name()
}

// Create replaces any session for phone with a new one and sends a code.
// If sending fails the new session is removed and the error wraps
// ErrProviderUnavailable.
func (m *Manager) Create(ctx context.Context, phone string) (*CreateResult, error) {
	sess, err := m.store.Create(ctx, phone, otpsessions.ProviderCode)
	if err != nil {
		return nil, fmt.Errorf("create otp session: %w", err)
	}

	code, err := m.provider.Send(ctx, phone)
	if err != nil {
		metrics.OTPSessionsCreated.WithLabelValues(m.provider.Name(), "send_failed").Inc()
		if derr := m.store.Delete(ctx, sess.ID); derr != nil {
			m.log.Warn("failed to remove otp session after send failure", zap.Error(derr))
		}
		return nil, sendError(err)
	}

	if code != "" {
		if err := m.store.SetCode(ctx, sess.ID, code); err != nil {
			return nil, fmt.Errorf("store otp code: %w", err)
		}
	}

	metrics.OTPSessionsCreated.WithLabelValues(m.provider.Name(), "created").Inc()
	m.log.Info("otp session created",
		zap.String("provider", m.provider.Name()),
		zap.String("phone", maskPhone(phone)))

	out := &CreateResult{SessionID: sess.SessionID}
	if m.cfg.ExposeCode {
		out.Code = code
	}
	return out, nil
}

// Verify reports whether code is accepted for phone and sessionID.
func (m *Manager) Verify(ctx context.Context, phone, code, sessionID string) (bool, error) {
	res, err := m.Check(ctx, phone, code, sessionID)
	if err != nil {
		return false, err
	}
	return res.OK(), nil
}

// Check verifies code and reports the specific outcome. A successful check
// consumes the session. Expired and exhausted sessions are deleted.
func (m *Manager) Check(ctx context.Context, phone, code, sessionID string) (Result, error) {
	res, err := m.check(ctx, phone, code, sessionID)
	if err == nil {
		metrics.OTPVerifications.WithLabelValues(res.String()).Inc()
	}
	return res, err
}

func (m *Manager) check(ctx context.Context, phone, code, sessionID string) (Result, error) {
	if m.cfg.BypassEnabled && m.cfg.BypassCode != "" && code == m.cfg.BypassCode {
		if err := m.store.DeleteForSession(ctx, phone, sessionID); err != nil {
			return ResultInvalidCode, fmt.Errorf("delete bypassed session: %w", err)
		}
		m.log.Info("otp bypass code used", zap.String("phone", maskPhone(phone)))
		return ResultBypassed, nil
	}

	sess, err := m.store.Find(ctx, phone, sessionID)
	if errors.Is(err, otpsessions.ErrNotFound) {
		return ResultNotFound, nil
	}
	if err != nil {
		return ResultInvalidCode, fmt.Errorf("find otp session: %w", err)
	}

	if sess.Expired(m.now()) {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return ResultExpired, fmt.Errorf("delete expired session: %w", err)
		}
		return ResultExpired, nil
	}

	if sess.Attempts >= m.cfg.MaxAttempts {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return ResultTooManyAttempts, fmt.Errorf("delete exhausted session: %w", err)
		}
		return ResultTooManyAttempts, nil
	}

	if _, err := m.store.IncrementAttempts(ctx, sess.ID); err != nil {
		if errors.Is(err, otpsessions.ErrNotFound) {
			return ResultNotFound, nil
		}
		return ResultInvalidCode, fmt.Errorf("increment attempts: %w", err)
	}

	ok, err := m.provider.Check(ctx, phone, sess.Code, code)
	if err != nil {
		return ResultInvalidCode, sendError(err)
	}
	if !ok {
		return ResultInvalidCode, nil
	}

	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return ResultInvalidCode, fmt.Errorf("consume otp session: %w", err)
	}
	return ResultVerified, nil
}

// Resend resets the attempt counter and expiry of an existing session and
// sends a fresh code. The session id does not change. It returns false when
// no session matches.
func (m *Manager) Resend(ctx context.Context, phone, sessionID string) (bool, error) {
	sess, err := m.store.Find(ctx, phone, sessionID)
	if errors.Is(err, otpsessions.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find otp session: %w", err)
	}

	code, err := m.provider.Send(ctx, phone)
	if err != nil {
		metrics.OTPSessionsCreated.WithLabelValues(m.provider.Name(), "resend_failed").Inc()
		return false, sendError(err)
	}
	if code == "" {
		code = otpsessions.ProviderCode
	}

	if _, err := m.store.Reset(ctx, sess.ID, code); err != nil {
		if errors.Is(err, otpsessions.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reset otp session: %w", err)
	}

	metrics.OTPSessionsCreated.WithLabelValues(m.provider.Name(), "resent").Inc()
	return true, nil
}

func sendError(err error) error {
	if errors.Is(err, ErrProviderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

// maskPhone keeps the last four digits for logs.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
