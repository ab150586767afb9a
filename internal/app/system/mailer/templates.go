// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// LinkEmailData holds data for the register/recover link templates.
type LinkEmailData struct {
	SiteName  string
	Name      string
	Link      string
	ExpiresIn string // e.g., "24 hours"
}

// BuildRegisterEmail creates the registration-invitation email with both
// HTML and text bodies.
func BuildRegisterEmail(data LinkEmailData) Email {
	return Email{
		Subject: fmt.Sprintf("Complete your %s registration", data.SiteName),
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nAn account has been created for you at %s. "+
				"Open this link to choose your password and finish registration:\n\n%s\n\n"+
				"The link expires in %s.\n",
			data.Name, data.SiteName, data.Link, data.ExpiresIn),
		HTMLBody: buildLinkHTML(data, "Complete registration",
			"An account has been created for you. Click the button below to choose your password and finish registration."),
	}
}

// BuildRecoverEmail creates the password-recovery email.
func BuildRecoverEmail(data LinkEmailData) Email {
	return Email{
		Subject: fmt.Sprintf("Reset your %s password", data.SiteName),
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nA password reset was requested for your %s account. "+
				"Open this link to choose a new password:\n\n%s\n\n"+
				"The link expires in %s. If you did not request this, you can safely ignore this email.\n",
			data.Name, data.SiteName, data.Link, data.ExpiresIn),
		HTMLBody: buildLinkHTML(data, "Reset password",
			"A password reset was requested for your account. Click the button below to choose a new password. If you did not request this, you can safely ignore this email."),
	}
}

func buildLinkHTML(data LinkEmailData, action, intro string) string {
	tmpl := template.Must(template.New("link").Parse(linkHTMLTemplate))
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, struct {
		LinkEmailData
		Action string
		Intro  string
	}{data, action, intro})
	return buf.String()
}

const linkHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Action}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #166534;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">
                Hi {{.Name}},
              </p>
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                {{.Intro}}
              </p>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #166534; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      {{.Action}}
                    </a>
                  </td>
                </tr>
              </table>
              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This link expires in {{.ExpiresIn}}.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
