// Package notify sends templated email payloads to the event bus. Delivery is
// best-effort: callers log failures and move on, a transition that already
// committed is never rolled back over a lost email.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Email is one templated message for the bus.
type Email struct {
	TemplateID string         `json:"templateId"`
	Sender     string         `json:"from"`
	Recipients []string       `json:"recipients"`
	Data       map[string]any `json:"data"`
}

// Mailer posts emails to the event bus endpoint.
type Mailer struct {
	BusURL string
	Sender string
	Client *http.Client
	Logger *zap.Logger
}

func NewMailer(busURL, sender string, logger *zap.Logger) *Mailer {
	return &Mailer{
		BusURL: busURL,
		Sender: sender,
		Client: &http.Client{Timeout: 5 * time.Second},
		Logger: logger,
	}
}

// Send posts one email. A non-nil error means the bus rejected or never
// received the payload; the caller decides whether that is fatal.
func (m *Mailer) Send(ctx context.Context, email Email) error {
	if email.Sender == "" {
		email.Sender = m.Sender
	}
	if len(email.Recipients) == 0 {
		return nil
	}
	payload, err := json.Marshal(email)
	if err != nil {
		return errors.Wrap(err, "marshal email payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BusURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build email request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post email to bus")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("bus rejected email: status %d", resp.StatusCode)
	}
	return nil
}
