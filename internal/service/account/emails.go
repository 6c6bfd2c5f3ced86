package account

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"
)

const (
	verifyEmailPath   = "/api/auth/verify-email"
	resetPasswordPath = "/api/auth/reset-password"

	verifyEmailSubject   = "Verify Your Email - Fitness Tracker"
	resetPasswordSubject = "Reset Your Password - Fitness Tracker"
)

var verifyEmailTemplate = template.Must(template.New("verify").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Verify Your Email Address</h2>
  <p>Thank you for signing up! Please verify your email address by clicking the link below:</p>
  <p><a href="{{.Link}}">Verify Email</a></p>
  <p>Or copy and paste this link in your browser:</p>
  <p style="word-break: break-all;">{{.Link}}</p>
  <p>This link will expire in {{.TTL}}.</p>
</div>`))

var resetPasswordTemplate = template.Must(template.New("reset").Parse(`<p>Click <a href="{{.Link}}">here</a> to reset your password. This link will expire in {{.TTL}}.</p>
<p>If you did not request this, please ignore this email.</p>`))

type emailData struct {
	Link string
	TTL  string
}

// Link with token and email in query, e.g. https://host/api/auth/verify-email?email=..&token=..
func secretLink(base string, path string, email string, token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return strings.TrimRight(base, "/") + path + "?" + q.Encode()
}

func render(t *template.Template, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
