// internal/app/system/mailer/mailer.go

// Package mailer sends transactional email over SMTP: registration
// invitations and password-recovery links.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Email is one outgoing message. HTMLBody is optional; when present the
// message goes out as multipart/alternative with the text body as fallback.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends Email messages through a configured SMTP relay. A nil Mailer
// is valid and drops messages, so environments without SMTP still work.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	log      *zap.Logger
}

// New returns a Mailer, or nil when host is empty (email disabled).
func New(host string, port int, username, password, from string, log *zap.Logger) *Mailer {
	if host == "" {
		log.Info("smtp host not configured, outgoing email disabled")
		return nil
	}
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		log:      log,
	}
}

// Send delivers one message. On a nil Mailer it logs and succeeds.
func (m *Mailer) Send(e Email) error {
	if m == nil {
		zap.L().Info("email disabled, dropping message", zap.String("subject", e.Subject))
		return nil
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := smtp.SendMail(addr, auth, m.from, []string{e.To}, m.build(e)); err != nil {
		return fmt.Errorf("sending email to %s: %w", e.To, err)
	}
	m.log.Info("email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}

const mimeBoundary = "asigbo-mail-boundary"

func (m *Mailer) build(e Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	if e.HTMLBody == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(e.TextBody)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", mimeBoundary, e.TextBody)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", mimeBoundary, e.HTMLBody)
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}
