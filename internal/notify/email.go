// Package notify posts notification emails through an HTTP email relay.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"idpmon/pkg/models"
)

// Config configures the email relay. The sink is unusable until endpoint,
// api key, from and to addresses are all present.
type Config struct {
	Endpoint  string
	APIKey    string
	FromEmail string
	FromName  string
	ToEmail   string
	ToName    string
	Timeout   time.Duration
}

// Mailer sends notification emails.
type Mailer struct {
	cfg    Config
	client *http.Client
}

// NewMailer creates a mailer, or nil when the relay is not configured. A nil
// mailer disables the email fallback without failing startup.
func NewMailer(cfg Config) *Mailer {
	if cfg.Endpoint == "" || cfg.APIKey == "" || cfg.FromEmail == "" || cfg.ToEmail == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Mailer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts one email to the relay.
func (m *Mailer) Send(ctx context.Context, subject, htmlBody string) error {
	email := models.Email{
		From:        models.EmailAddress{Email: m.cfg.FromEmail, Name: m.cfg.FromName},
		To:          []models.EmailAddress{{Email: m.cfg.ToEmail, Name: m.cfg.ToName}},
		Subject:     subject,
		HTMLContent: htmlBody,
	}
	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http request failed with status %s", resp.Status)
	}
	return nil
}

// SendUnrecognizedAlert emails the details of an alert category that has no
// enrichment path, so the category can be added to monitoring.
func (m *Mailer) SendUnrecognizedAlert(ctx context.Context, alert *models.SecurityAlert) error {
	domain := ""
	if len(alert.UserStates) > 0 {
		domain = alert.UserStates[0].DomainName
	}
	raw, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	body := fmt.Sprintf("<strong>Unhandled Alert Type Found:</strong> %s", alert.Category)
	body += fmt.Sprintf("\n<strong>Title:</strong> %s \n<strong>Description:</strong> %s", alert.Title, alert.Description)
	body += fmt.Sprintf("\n<strong>From Domain:</strong> %s", domain)
	body += fmt.Sprintf("\n\n<strong>Full Alert JSON:</strong> %s", raw)
	body = strings.ReplaceAll(body, "\n", "<br />")

	subject := fmt.Sprintf("Possible New Alert Type for IDP Monitoring: %s", alert.Category)
	return m.Send(ctx, subject, body)
}
