// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	businessstore "github.com/dalemusser/mukhalis/internal/app/store/businesses"
	notificationstore "github.com/dalemusser/mukhalis/internal/app/store/notifications"
	"github.com/dalemusser/mukhalis/internal/app/store/otpsessions"
	userstore "github.com/dalemusser/mukhalis/internal/app/store/users"
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/notify"
	"github.com/dalemusser/mukhalis/internal/app/system/otp"
	"github.com/dalemusser/mukhalis/internal/app/system/push"
	"github.com/dalemusser/mukhalis/internal/app/system/sms"
	"github.com/dalemusser/mukhalis/internal/app/system/tasks"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"github.com/dalemusser/mukhalis/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services is the object graph shared by the handlers and background work.
type services struct {
	users         *userstore.Store
	notifications *notificationstore.Store
	businesses    *businessstore.Store
	otpSessions   *otpsessions.Store

	otp    *otp.Manager
	notify *notify.Service
	tokens *auth.Issuer
	pruner *workers.TokenPruner
}

// background owns what Startup starts so Shutdown can stop it.
type background struct {
	mu        sync.Mutex
	svc       *services
	scheduler *tasks.Scheduler
	stoppers  []func()
}

func (b *background) onStop(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stoppers = append(b.stoppers, fn)
}

// Startup builds the service graph, then starts the push-token pruner and
// the cleanup scheduler. It runs after EnsureSchema and before BuildHandler.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
		Push:   appCfg.TimeoutPush,
	})

	svc, err := buildServices(ctx, coreCfg, appCfg, deps, logger)
	if err != nil {
		return err
	}

	svc.pruner.Start()

	sched := tasks.NewScheduler(logger)
	if err := sched.Add(tasks.OTPCleanupJob(svc.otpSessions, logger)); err != nil {
		return fmt.Errorf("schedule otp cleanup: %w", err)
	}
	if appCfg.NotificationRetention > 0 {
		if err := sched.Add(tasks.NotificationRetentionJob(svc.notifications, appCfg.NotificationRetention, logger)); err != nil {
			return fmt.Errorf("schedule notification retention: %w", err)
		}
	}
	sched.Start()
	logger.Info("background jobs started", zap.Int("jobs", sched.Len()))

	deps.background.mu.Lock()
	deps.background.svc = svc
	deps.background.scheduler = sched
	deps.background.mu.Unlock()
	return nil
}

func buildServices(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	db := deps.MongoDatabase
	svc := &services{
		users:         userstore.New(db),
		notifications: notificationstore.New(db),
		businesses:    businessstore.New(db),
		otpSessions:   otpsessions.New(db, appCfg.OTPExpiry),
	}

	tokens, err := auth.NewIssuer(appCfg.JWTAccessSecret, appCfg.JWTRefreshSecret, appCfg.JWTAccessTTL, appCfg.JWTRefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	svc.tokens = tokens

	provider, err := buildOTPProvider(ctx, appCfg, logger)
	if err != nil {
		return nil, err
	}
	svc.otp = otp.NewManager(svc.otpSessions, provider, otp.Config{
		BypassEnabled: appCfg.OTPBypassEnabled,
		BypassCode:    appCfg.OTPBypassCode,
		ExposeCode:    coreCfg.Env == "dev",
	}, logger.Named("otp"))
	logger.Info("otp provider ready", zap.String("provider", provider.Name()))

	svc.pruner = workers.NewTokenPruner(svc.users, logger, 0)
	svc.notify = notify.NewService(svc.users, svc.notifications, svc.businesses, buildGateway(appCfg, logger), svc.pruner, logger.Named("notify"))
	return svc, nil
}

func buildOTPProvider(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (otp.Provider, error) {
	if appCfg.OTPProvider == "twilio" {
		p, err := otp.NewTwilioProvider(appCfg.TwilioAccountSID, appCfg.TwilioAuthToken, appCfg.TwilioVerifySID, logger)
		if err != nil {
			return nil, fmt.Errorf("twilio verify: %w", err)
		}
		return p, nil
	}

	var sender otp.SMSSender
	switch appCfg.SMSProvider {
	case "sns":
		s, err := sms.NewSNSSender(ctx, appCfg.SNSRegion, appCfg.SNSSenderID, logger)
		if err != nil {
			return nil, fmt.Errorf("sns sms: %w", err)
		}
		sender = s
	case "twilio":
		s, err := sms.NewTwilioSender(appCfg.TwilioAccountSID, appCfg.TwilioAuthToken, appCfg.TwilioFrom)
		if err != nil {
			return nil, fmt.Errorf("twilio sms: %w", err)
		}
		sender = s
	default:
		logger.Warn("no sms provider configured; OTP codes are only logged")
	}
	return otp.NewLocalProvider(sender, logger), nil
}

func buildGateway(appCfg AppConfig, logger *zap.Logger) push.Gateway {
	if !appCfg.PushEnabled {
		logger.Warn("push delivery disabled; notifications are logged only")
		return push.LogGateway{Log: logger.Named("push")}
	}
	return push.NewExpoGateway(appCfg.ExpoPushURL, appCfg.ExpoAccessToken, timeouts.Push(), logger.Named("push"))
}
