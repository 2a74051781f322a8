package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Resource talks to the resource service for challenge-scoped role
// assignments.
type Resource struct {
	http httpClient
}

func NewResource(baseURL string, tokens TokenSource, timeout time.Duration) *Resource {
	return &Resource{http: newHTTPClient(baseURL, tokens, timeout)}
}

// Roles returns the member's role names on the challenge. An empty slice
// means no assignment; it is not an error.
func (r *Resource) Roles(ctx context.Context, challengeID, memberID string) ([]string, error) {
	var out []struct {
		RoleName string `json:"roleName"`
	}
	path := fmt.Sprintf("resources/roles?challengeId=%s&memberId=%s",
		url.QueryEscape(challengeID), url.QueryEscape(memberID))
	if err := r.http.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out))
	for _, entry := range out {
		names = append(names, entry.RoleName)
	}
	return names, nil
}
