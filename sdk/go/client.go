package reviewsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Review API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Submission is the API submission model.
type Submission struct {
	ID           string `json:"id"`
	MemberID     string `json:"member_id"`
	MemberHandle string `json:"member_handle,omitempty"`
	ChallengeID  string `json:"challenge_id"`
	Type         string `json:"type"`
	CreatedAt    string `json:"created_at"`
}

// Artifact is a file attached to a submission.
type Artifact struct {
	SubmissionID string `json:"submission_id"`
	Name         string `json:"name"`
	ContentType  string `json:"content_type"`
	Internal     bool   `json:"internal"`
	CreatedAt    string `json:"created_at"`
}

// ReviewOpportunity is an open review position on a challenge.
type ReviewOpportunity struct {
	ID            string `json:"id"`
	ChallengeID   string `json:"challenge_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	OpenPositions int    `json:"open_positions"`
	CreatedAt     string `json:"created_at"`
}

// ReviewApplication is a member's application for an opportunity.
type ReviewApplication struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Handle        string `json:"handle,omitempty"`
	OpportunityID string `json:"opportunity_id"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// WorkflowRun is one AI workflow execution.
type WorkflowRun struct {
	ID           string `json:"id"`
	WorkflowID   string `json:"workflow_id"`
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// RunItem is one finding inside a run.
type RunItem struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Seq       int    `json:"seq"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// RunDetail is a run with its items.
type RunDetail struct {
	Run   WorkflowRun `json:"run"`
	Items []RunItem   `json:"items"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListArtifacts returns the artifacts visible to the caller.
func (c *Client) ListArtifacts(ctx context.Context, submissionID string) ([]Artifact, error) {
	var resp []Artifact
	endpoint := fmt.Sprintf("v1/submissions/%s/artifacts", url.PathEscape(submissionID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// FetchArtifact streams one artifact body. The caller closes the reader.
func (c *Client) FetchArtifact(ctx context.Context, submissionID, name string) (io.ReadCloser, error) {
	endpoint := fmt.Sprintf("v1/submissions/%s/artifacts/%s", url.PathEscape(submissionID), url.PathEscape(name))
	return c.stream(ctx, endpoint)
}

// DownloadSubmission streams the submission's primary file.
func (c *Client) DownloadSubmission(ctx context.Context, submissionID string) (io.ReadCloser, error) {
	endpoint := fmt.Sprintf("v1/submissions/%s/download", url.PathEscape(submissionID))
	return c.stream(ctx, endpoint)
}

// Apply creates a review application for an opportunity.
func (c *Client) Apply(ctx context.Context, opportunityID, role string) (ReviewApplication, error) {
	body := map[string]any{
		"opportunity_id": opportunityID,
		"role":           role,
	}
	var resp ReviewApplication
	err := c.do(ctx, http.MethodPost, "v1/review-applications", body, &resp)
	return resp, err
}

// ApproveApplication approves a pending application.
func (c *Client) ApproveApplication(ctx context.Context, id string) (ReviewApplication, error) {
	var resp ReviewApplication
	endpoint := fmt.Sprintf("v1/review-applications/%s/approve", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// RejectApplication rejects a pending application.
func (c *Client) RejectApplication(ctx context.Context, id string) (ReviewApplication, error) {
	var resp ReviewApplication
	endpoint := fmt.Sprintf("v1/review-applications/%s/reject", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ListOpportunities returns review opportunities, optionally per challenge.
func (c *Client) ListOpportunities(ctx context.Context, challengeID string) ([]ReviewOpportunity, error) {
	endpoint := "v1/review-opportunities"
	if challengeID != "" {
		endpoint += "?challenge_id=" + url.QueryEscape(challengeID)
	}
	var resp []ReviewOpportunity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetRun fetches a workflow run with its items.
func (c *Client) GetRun(ctx context.Context, id string) (RunDetail, error) {
	var resp RunDetail
	endpoint := fmt.Sprintf("v1/runs/%s", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	resp, err := c.send(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) stream(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	resp, err := c.send(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return resp.Body, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	return c.HTTPClient.Do(req)
}
