// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the ASIGBO portal.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: ASIGBO_MONGO_URI, ASIGBO_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "asigbo", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	// Tokens
	{Name: "jwt_secret", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "JWT signing secret (at least 32 bytes; must be strong in production)"},
	{Name: "access_token_ttl", Default: "15m", Desc: "Access token lifetime"},
	{Name: "refresh_token_ttl", Default: "720h", Desc: "Refresh token lifetime"},
	{Name: "register_token_ttl", Default: "168h", Desc: "Registration link lifetime"},
	{Name: "recover_token_ttl", Default: "1h", Desc: "Password recovery link lifetime"},
	{Name: "cookie_domain", Default: "", Desc: "Refresh cookie domain (blank means current host)"},

	// File storage
	{Name: "storage_path", Default: "./uploads", Desc: "Local storage path for profile images and vouchers"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (empty disables outgoing mail)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@asigbo.org", Desc: "From email address"},

	// Email links
	{Name: "site_name", Default: "ASIGBO", Desc: "Display name used in outgoing email"},
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for registration and recovery links"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, ASIGBO_* for app), and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "ASIGBO", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:    appValues.String("jwt_secret"),
		AccessTTL:    appValues.Duration("access_token_ttl", 15*time.Minute),
		RefreshTTL:   appValues.Duration("refresh_token_ttl", 30*24*time.Hour),
		RegisterTTL:  appValues.Duration("register_token_ttl", 7*24*time.Hour),
		RecoverTTL:   appValues.Duration("recover_token_ttl", time.Hour),
		CookieDomain: appValues.String("cookie_domain"),

		StoragePath: appValues.String("storage_path"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),

		SiteName: appValues.String("site_name"),
		BaseURL:  appValues.String("base_url"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation before any backend
// is touched.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if len(appCfg.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 bytes")
	}
	if appCfg.AccessTTL <= 0 || appCfg.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if appCfg.StoragePath == "" {
		return fmt.Errorf("storage_path is required")
	}
	return nil
}
