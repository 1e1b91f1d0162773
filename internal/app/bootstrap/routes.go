// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"time"

	adminauthfeature "github.com/dalemusser/mukhalis/internal/app/features/adminauth"
	adminnotificationsfeature "github.com/dalemusser/mukhalis/internal/app/features/adminnotifications"
	errorsfeature "github.com/dalemusser/mukhalis/internal/app/features/errors"
	healthfeature "github.com/dalemusser/mukhalis/internal/app/features/health"
	notificationsfeature "github.com/dalemusser/mukhalis/internal/app/features/notifications"
	otpauthfeature "github.com/dalemusser/mukhalis/internal/app/features/otpauth"
	usersfeature "github.com/dalemusser/mukhalis/internal/app/features/users"
	userstore "github.com/dalemusser/mukhalis/internal/app/store/users"
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/metrics"
	"github.com/dalemusser/mukhalis/internal/app/system/ratelimit"
	"github.com/dalemusser/mukhalis/internal/app/system/reqlog"
	"github.com/dalemusser/mukhalis/internal/app/system/urlrewrite"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	authLimitMessage = "محاولات تسجيل دخول كثيرة جداً. يرجى المحاولة لاحقاً."
	apiLimitMessage  = "Too many requests. Please try again later."
)

// limiters hands out Redis-backed windows when Redis is up and in-process
// windows otherwise.
type limiters struct {
	rdb *redis.Client
	bg  *background
}

func (l limiters) window(name string, limit int, d time.Duration) ratelimit.Allower {
	if l.rdb != nil {
		return ratelimit.NewRedis(l.rdb, "mukhalis:rl:"+name, limit, d)
	}
	lim := ratelimit.New(limit, d)
	l.bg.onStop(lim.Stop)
	return lim
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. Every API response passes through the URL
// rewriter; /api is rate limited per client IP and the auth endpoints
// carry a tighter window.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.background == nil || deps.background.svc == nil {
		return nil, errors.New("startup did not build services")
	}
	svc := deps.background.svc
	lims := limiters{rdb: deps.Redis, bg: deps.background}

	creds := adminauthfeature.Credentials{}
	if appCfg.AdminCredentials != "" {
		parsed, err := adminauthfeature.ParseCredentials(appCfg.AdminCredentials)
		if err != nil {
			return nil, err
		}
		creds = parsed
	} else {
		logger.Warn("admin_credentials not set; staff login is disabled")
	}

	// Authenticate re-reads the account on every request so suspensions and
	// role changes apply immediately.
	mw := auth.NewMiddleware(svc.tokens, userstore.NewFetcher(deps.MongoDatabase), logger)
	rw := urlrewrite.New(appCfg.BaseURL, appCfg.LocalPort)
	errs := errorsfeature.NewHandler(logger)

	r := chi.NewRouter()
	r.Use(reqlog.RequestID)
	r.Use(reqlog.Logger(logger))
	r.Use(errs.Recoverer)
	r.Use(metrics.Instrument)
	r.Use(rw.Middleware(logger))
	r.NotFound(errs.NotFound)
	r.MethodNotAllowed(errs.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	authLimit := ratelimit.Middleware(lims.window("auth", 20, 15*time.Minute), authLimitMessage, logger)
	apiLimit := ratelimit.Middleware(lims.window("api", 1000, time.Hour), apiLimitMessage, logger)

	// Phone numbers get their own window on send/verify so one client
	// cannot spray codes at a single number from many addresses.
	otpLimiter := ratelimit.NewLoginLimiter(nil, lims.window("otp-phone", 5, 15*time.Minute), logger)
	adminLimiter := ratelimit.NewLoginLimiter(
		lims.window("admin-ip", 5, 15*time.Minute),
		lims.window("admin-email", 5, 15*time.Minute),
		logger,
	)

	r.Route("/api", func(api chi.Router) {
		api.Use(apiLimit)

		otpHandler := otpauthfeature.NewHandler(svc.otp, svc.users, svc.businesses, svc.tokens, svc.notify, otpLimiter, logger)
		api.With(authLimit).Mount("/auth", otpauthfeature.Routes(otpHandler, mw))

		adminAuthHandler := adminauthfeature.NewHandler(creds, svc.users, svc.tokens, adminLimiter, logger)
		api.Mount("/admin/auth", adminauthfeature.Routes(adminAuthHandler, mw))

		usersHandler := usersfeature.NewHandler(svc.users, logger)
		api.Mount("/users", usersfeature.Routes(usersHandler, mw))

		notificationsHandler := notificationsfeature.NewHandler(svc.notifications, logger)
		api.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, mw))

		adminNotificationsHandler := adminnotificationsfeature.NewHandler(svc.notify, svc.notifications, svc.users, svc.businesses, deps.MongoDatabase, logger)
		api.Mount("/admin/notifications", adminnotificationsfeature.Routes(adminNotificationsHandler, mw))
	})

	return r, nil
}
