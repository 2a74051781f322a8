// Package clients holds the JSON-over-HTTP collaborators the engine calls on
// every authorization decision: the challenge service, the resource (role)
// service, the member service, and the M2M token endpoint that authenticates
// this service to them.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 5 * time.Second

// TokenSource supplies the bearer token for outbound calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, used in tests and local setups.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

type httpClient struct {
	base    string
	client  *http.Client
	tokens  TokenSource
	timeout time.Duration
}

func newHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration) httpClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return httpClient{
		base:    strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
		timeout: timeout,
	}
}

// NotFoundError marks a 404 from a collaborator so callers can surface the
// right error kind instead of a generic failure.
type NotFoundError struct {
	URL string
}

func (e NotFoundError) Error() string {
	return "remote resource not found: " + e.URL
}

// doJSON performs one request with a single retry on 5xx responses.
func (c httpClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
	}
	url := c.base + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.tokens != nil {
			token, err := c.tokens.Token(ctx)
			if err != nil {
				return errors.Wrap(err, "acquire token")
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			lastErr = errors.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, string(b))
			continue
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return NotFoundError{URL: url}
		}
		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return errors.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, string(b))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return errors.Wrap(err, "decode response")
			}
		}
		return nil
	}
	return errors.Wrapf(lastErr, "%s %s failed after retry", method, url)
}
