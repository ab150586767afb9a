// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	activitiesfeature "github.com/asigbo/portal/internal/app/features/activities"
	areasfeature "github.com/asigbo/portal/internal/app/features/areas"
	assignmentsfeature "github.com/asigbo/portal/internal/app/features/assignments"
	healthfeature "github.com/asigbo/portal/internal/app/features/health"
	paymentsfeature "github.com/asigbo/portal/internal/app/features/payments"
	promotionsfeature "github.com/asigbo/portal/internal/app/features/promotions"
	sessionfeature "github.com/asigbo/portal/internal/app/features/session"
	usersfeature "github.com/asigbo/portal/internal/app/features/users"
	sessionstore "github.com/asigbo/portal/internal/app/store/sessions"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/mailer"
	"github.com/asigbo/portal/internal/app/system/storage"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. The portal is a JSON API: every feature
// router mounted here decodes/encodes JSON and relies on the auth.Manager
// middleware for bearer-token authentication.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Token manager backed by the sessions collection so refresh tokens can
	// be revoked server-side. Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	authMgr, err := auth.NewManager(
		appCfg.JWTSecret,
		sessionstore.New(db),
		appCfg.AccessTTL,
		appCfg.RefreshTTL,
		appCfg.RegisterTTL,
		appCfg.RecoverTTL,
		logger,
	)
	if err != nil {
		logger.Error("auth manager init failed", zap.Error(err))
		return nil, err
	}

	// Outgoing email; nil when SMTP is not configured, which disables
	// registration and recovery messages but keeps the endpoints working.
	mail := mailer.New(
		appCfg.MailSMTPHost,
		appCfg.MailSMTPPort,
		appCfg.MailSMTPUser,
		appCfg.MailSMTPPass,
		appCfg.MailFrom,
		logger,
	)

	// Local disk storage for profile images and payment vouchers.
	store, err := storage.NewLocal(appCfg.StoragePath)
	if err != nil {
		logger.Error("storage init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Login, refresh, and logout.
	sessionHandler := sessionfeature.NewHandler(db, authMgr, appCfg.CookieDomain, secure, logger)
	r.Mount("/session", sessionfeature.Routes(sessionHandler, authMgr))

	// Member accounts, registration, recovery, reports, and admin role grants.
	usersHandler := usersfeature.NewHandler(db, authMgr, mail, store, appCfg.SiteName, appCfg.BaseURL, logger)
	r.Mount("/user", usersfeature.Routes(usersHandler, authMgr))

	// Service areas.
	areasHandler := areasfeature.NewHandler(db, logger)
	r.Mount("/area", areasfeature.Routes(areasHandler, authMgr))

	// Activities, with the per-activity assignment subrouter mounted inside.
	assignmentsHandler := assignmentsfeature.NewHandler(db, logger)
	activitiesHandler := activitiesfeature.NewHandler(db, logger)
	r.Mount("/activity", activitiesfeature.Routes(activitiesHandler, assignmentsHandler, authMgr))

	// Payments and per-user payment assignments.
	paymentsHandler := paymentsfeature.NewHandler(db, store, logger)
	r.Mount("/payment", paymentsfeature.Routes(paymentsHandler, authMgr))

	// Promotion year bounds used for student/graduate grouping.
	promotionsHandler := promotionsfeature.NewHandler(db, logger)
	r.Mount("/promotion", promotionsfeature.Routes(promotionsHandler, authMgr))

	return r, nil
}
