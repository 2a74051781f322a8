package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// M2MTokenSource exchanges client credentials for a bearer token and caches
// it until shortly before expiry. This caches transport credentials only;
// role and challenge lookups are never cached.
type M2MTokenSource struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	Audience     string
	HTTPClient   *http.Client
	Now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

const expirySlack = 30 * time.Second

func (m *M2MTokenSource) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	if m.token != "" && now().Before(m.expires.Add(-expirySlack)) {
		return m.token, nil
	}
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     m.ClientID,
		"client_secret": m.ClientSecret,
		"audience":      m.Audience,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.AuthURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/json")
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request m2m token")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", errors.Errorf("m2m token endpoint returned %d", resp.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decode m2m token")
	}
	if body.AccessToken == "" {
		return "", errors.New("m2m token endpoint returned empty token")
	}
	m.token = body.AccessToken
	m.expires = now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return m.token, nil
}
