package clients

import (
	"context"
	"net/http"
	"time"
)

// Member talks to the member service for user contact details.
type Member struct {
	http httpClient
}

func NewMember(baseURL string, tokens TokenSource, timeout time.Duration) *Member {
	return &Member{http: newHTTPClient(baseURL, tokens, timeout)}
}

type UserEmail struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (m *Member) Emails(ctx context.Context, userIDs []string) ([]UserEmail, error) {
	var out []UserEmail
	body := map[string]any{"userIds": userIDs}
	if err := m.http.doJSON(ctx, http.MethodPost, "members/emails", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
