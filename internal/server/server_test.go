package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"reviewapi/internal/artifacts"
	"reviewapi/internal/authz"
	"reviewapi/internal/clients"
	"reviewapi/internal/config"
	"reviewapi/internal/db"
	"reviewapi/internal/domain"
	"reviewapi/internal/engine"
	"reviewapi/internal/migrate"
	"reviewapi/internal/notify"
)

const testSecret = "test-secret"

type stubChallenges struct{ status map[string]string }

func (s stubChallenges) Get(_ context.Context, id string) (domain.Challenge, error) {
	st, ok := s.status[id]
	if !ok {
		return domain.Challenge{}, clients.NotFoundError{URL: id}
	}
	return domain.Challenge{ID: id, Status: st}, nil
}

type stubRoles struct{ roles map[string][]string }

func (s stubRoles) Roles(_ context.Context, challengeID, memberID string) ([]string, error) {
	return s.roles[challengeID+"|"+memberID], nil
}

type stubMembers struct{}

func (stubMembers) Emails(_ context.Context, userIDs []string) ([]clients.UserEmail, error) {
	var out []clients.UserEmail
	for _, id := range userIDs {
		out = append(out, clients.UserEmail{UserID: id, Email: id + "@example.com"})
	}
	return out, nil
}

type stubMailer struct{}

func (stubMailer) Send(context.Context, notify.Email) error { return nil }

type testServer struct {
	URL      string
	client   *http.Client
	close    func()
	statuses map[string]string
	roles    map[string][]string
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := artifacts.NewStore(dir + "/artifacts")
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	statuses := map[string]string{"chal-1": domain.ChallengeActive}
	roles := map[string][]string{}
	e := engine.New(conn, config.Default(), nil)
	e.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	e.Challenges = stubChallenges{status: statuses}
	e.Roles = stubRoles{roles: roles}
	e.Members = stubMembers{}
	e.Mailer = stubMailer{}
	e.Store = store

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, M2MSubjects: []string{"pipeline"}},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:      "http://" + ln.Addr().String(),
		client:   &http.Client{},
		statuses: statuses,
		roles:    roles,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

// token mints a test JWT through the dev login endpoint.
func (s *testServer) token(t *testing.T, ident authz.Identity) string {
	t.Helper()
	res, data := doJSON(t, s.client, http.MethodPost, s.URL+"/v1/auth/dev/login", map[string]any{
		"sub":     ident.UserID,
		"handle":  ident.Handle,
		"roles":   ident.Roles,
		"machine": ident.IsMachine,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	return body.Token
}

func auth(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func doRaw(t *testing.T, client *http.Client, method, url string, body []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/submissions", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", envelope.Error.Code)
	}
}

func TestArtifactVisibilityOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	machineTok := srv.token(t, authz.Identity{UserID: "pipeline", IsMachine: true})

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/submissions", map[string]any{
		"member_id":    "member-1",
		"challenge_id": "chal-1",
	}, auth(machineTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create submission: %d %s", res.StatusCode, string(data))
	}
	var sub domain.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		t.Fatalf("unmarshal submission: %v", err)
	}

	res, data = doRaw(t, client, http.MethodPut, srv.URL+"/v1/submissions/"+sub.ID+"/artifacts/report.pdf", []byte("pdf"),
		auth(machineTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload artifact: %d %s", res.StatusCode, string(data))
	}
	res, data = doRaw(t, client, http.MethodPut, srv.URL+"/v1/submissions/"+sub.ID+"/artifacts/scan.json?internal=true", []byte("{}"),
		auth(machineTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload internal artifact: %d %s", res.StatusCode, string(data))
	}

	ownerTok := srv.token(t, authz.Identity{UserID: "member-1"})
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/submissions/"+sub.ID+"/artifacts", nil, auth(ownerTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list artifacts: %d %s", res.StatusCode, string(data))
	}
	var listed []domain.Artifact
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal artifacts: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "report.pdf" {
		t.Fatalf("owner should see only the non-internal artifact, got %+v", listed)
	}

	// Fetching the internal artifact by name is forbidden for the owner.
	res, data = doRaw(t, client, http.MethodGet, srv.URL+"/v1/submissions/"+sub.ID+"/artifacts/scan.json", nil, auth(ownerTok))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 on internal artifact, got %d %s", res.StatusCode, string(data))
	}

	res, body := doRaw(t, client, http.MethodGet, srv.URL+"/v1/submissions/"+sub.ID+"/artifacts/report.pdf", nil, auth(ownerTok))
	if res.StatusCode != http.StatusOK || string(body) != "pdf" {
		t.Fatalf("fetch artifact: %d %q", res.StatusCode, string(body))
	}
}

func TestSubmissionDownloadRules(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	machineTok := srv.token(t, authz.Identity{UserID: "pipeline", IsMachine: true})

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/submissions", map[string]any{
		"member_id":    "member-1",
		"challenge_id": "chal-1",
	}, auth(machineTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create submission: %d %s", res.StatusCode, string(data))
	}
	var sub domain.Submission
	_ = json.Unmarshal(data, &sub)
	res, data = doRaw(t, client, http.MethodPut, srv.URL+"/v1/submissions/"+sub.ID+"/file", []byte("zipbytes"), auth(machineTok))
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("upload file: %d %s", res.StatusCode, string(data))
	}

	srv.roles["chal-1|screener-1"] = []string{"Screener"}
	screenerTok := srv.token(t, authz.Identity{UserID: "screener-1"})
	res, body := doRaw(t, client, http.MethodGet, srv.URL+"/v1/submissions/"+sub.ID+"/download", nil, auth(screenerTok))
	if res.StatusCode != http.StatusOK || string(body) != "zipbytes" {
		t.Fatalf("screener download: %d %q", res.StatusCode, string(body))
	}
	if cd := res.Header.Get("Content-Disposition"); cd != `attachment; filename="submission-`+sub.ID+`.zip"` {
		t.Fatalf("unexpected disposition %q", cd)
	}

	// A near-miss role name must not be treated as Submitter or Screener.
	srv.roles["chal-1|cosub-1"] = []string{"Co-Submitter"}
	cosubTok := srv.token(t, authz.Identity{UserID: "cosub-1"})
	res, body = doRaw(t, client, http.MethodGet, srv.URL+"/v1/submissions/"+sub.ID+"/download", nil, auth(cosubTok))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for Co-Submitter, got %d %s", res.StatusCode, string(body))
	}
}

func TestApplicationFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	adminTok := srv.token(t, authz.Identity{UserID: "admin-1", Roles: []string{"administrator"}})

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/review-opportunities", map[string]any{
		"challenge_id": "chal-1",
		"type":         "REVIEW",
	}, auth(adminTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create opportunity: %d %s", res.StatusCode, string(data))
	}
	var opp domain.ReviewOpportunity
	_ = json.Unmarshal(data, &opp)

	userTok := srv.token(t, authz.Identity{UserID: "user-1", Handle: "user-one"})
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/review-applications", map[string]any{
		"opportunity_id": opp.ID,
		"role":           "Reviewer",
	}, auth(userTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("apply: %d %s", res.StatusCode, string(data))
	}
	var app domain.ReviewApplication
	_ = json.Unmarshal(data, &app)

	// Role mismatch is a 400.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/review-applications", map[string]any{
		"opportunity_id": opp.ID,
		"role":           "Checkpoint Screener",
	}, auth(userTok))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on role mismatch, got %d %s", res.StatusCode, string(data))
	}

	// Applicants cannot decide applications.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/review-applications/"+app.ID+"/approve", nil, auth(userTok))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin approve, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/review-applications/"+app.ID+"/approve", nil, auth(adminTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d %s", res.StatusCode, string(data))
	}

	// Terminal: the second decision conflicts.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/review-applications/"+app.ID+"/reject", nil, auth(adminTok))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on terminal transition, got %d %s", res.StatusCode, string(data))
	}

	// Missing application is a 404.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/review-applications/nope/approve", nil, auth(adminTok))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on missing application, got %d %s", res.StatusCode, string(data))
	}

	// Bulk reject with no pending rows: 200 and an empty list.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/review-opportunities/"+opp.ID+"/reject-pending", nil, auth(adminTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject-pending: %d %s", res.StatusCode, string(data))
	}
	var rejected []domain.ReviewApplication
	if err := json.Unmarshal(data, &rejected); err != nil {
		t.Fatalf("unmarshal rejected: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("expected empty rejection list, got %d", len(rejected))
	}
}

func TestCommentOwnershipOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	machineTok := srv.token(t, authz.Identity{UserID: "pipeline", IsMachine: true})

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/submissions", map[string]any{
		"member_id":    "member-1",
		"challenge_id": "chal-1",
	}, auth(machineTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create submission: %d %s", res.StatusCode, string(data))
	}
	var sub domain.Submission
	_ = json.Unmarshal(data, &sub)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/workflows", map[string]any{
		"challenge_id": "chal-1",
		"name":         "ai-review",
	}, auth(machineTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create workflow: %d %s", res.StatusCode, string(data))
	}
	var wf domain.Workflow
	_ = json.Unmarshal(data, &wf)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/runs", map[string]any{
		"workflow_id":   wf.ID,
		"submission_id": sub.ID,
	}, auth(machineTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create run: %d %s", res.StatusCode, string(data))
	}
	var run domain.WorkflowRun
	_ = json.Unmarshal(data, &run)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/runs/"+run.ID+"/items", map[string]any{
		"seq":   1,
		"title": "finding",
	}, auth(machineTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add item: %d %s", res.StatusCode, string(data))
	}
	var item domain.RunItem
	_ = json.Unmarshal(data, &item)

	srv.roles["chal-1|reviewer-1"] = []string{"Reviewer"}
	reviewerTok := srv.token(t, authz.Identity{UserID: "reviewer-1"})
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/run-items/"+item.ID+"/comments", map[string]any{
		"content": "needs work",
	}, auth(reviewerTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create comment: %d %s", res.StatusCode, string(data))
	}
	var comment domain.RunItemComment
	_ = json.Unmarshal(data, &comment)

	adminTok := srv.token(t, authz.Identity{UserID: "admin-1", Roles: []string{"administrator"}})
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/comments/"+comment.ID, map[string]any{
		"content": "overridden",
	}, auth(adminTok))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for admin comment edit, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/comments/"+comment.ID, map[string]any{
		"content": "resolved",
	}, auth(reviewerTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("creator edit: %d %s", res.StatusCode, string(data))
	}
}
