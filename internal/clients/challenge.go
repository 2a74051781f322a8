package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"reviewapi/internal/domain"
)

// Challenge talks to the challenge service.
type Challenge struct {
	http httpClient
}

func NewChallenge(baseURL string, tokens TokenSource, timeout time.Duration) *Challenge {
	return &Challenge{http: newHTTPClient(baseURL, tokens, timeout)}
}

func (c *Challenge) Get(ctx context.Context, challengeID string) (domain.Challenge, error) {
	var out struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		LegacyID int64  `json:"legacyId"`
	}
	path := fmt.Sprintf("challenges/%s", url.PathEscape(challengeID))
	if err := c.http.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.Challenge{}, err
	}
	return domain.Challenge{
		ID:       out.ID,
		Name:     out.Name,
		Status:   out.Status,
		LegacyID: out.LegacyID,
	}, nil
}
