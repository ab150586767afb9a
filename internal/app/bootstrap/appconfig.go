// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging, CORS); AppConfig is everything specific to the ASIGBO portal:
// database connection, token signing and lifetimes, SMTP, file storage, and
// the values that shape outgoing email links.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// JWT signing and token lifetimes. Access tokens are short-lived;
	// register and recover tokens are single-purpose email links.
	JWTSecret   string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RegisterTTL time.Duration
	RecoverTTL  time.Duration

	// Refresh-token cookie attributes.
	CookieDomain string

	// File storage for profile images and payment vouchers.
	StoragePath string

	// Email/SMTP configuration. An empty host disables outgoing mail.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string

	// SiteName and BaseURL shape registration and recovery email links.
	SiteName string
	BaseURL  string
}
