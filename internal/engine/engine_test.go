package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reviewapi/internal/artifacts"
	"reviewapi/internal/authz"
	"reviewapi/internal/clients"
	"reviewapi/internal/config"
	"reviewapi/internal/db"
	"reviewapi/internal/domain"
	"reviewapi/internal/engine"
	"reviewapi/internal/migrate"
	"reviewapi/internal/notify"
	"reviewapi/internal/repo"
)

type fakeChallenges struct {
	status map[string]string
	calls  int
}

func (f *fakeChallenges) Get(_ context.Context, id string) (domain.Challenge, error) {
	f.calls++
	status, ok := f.status[id]
	if !ok {
		return domain.Challenge{}, clients.NotFoundError{URL: id}
	}
	return domain.Challenge{ID: id, Status: status}, nil
}

type fakeRoles struct {
	roles map[string][]string // "challengeID|memberID"
	calls int
}

func (f *fakeRoles) Roles(_ context.Context, challengeID, memberID string) ([]string, error) {
	f.calls++
	return f.roles[challengeID+"|"+memberID], nil
}

type fakeMembers struct {
	emails map[string]string
	calls  int
}

func (f *fakeMembers) Emails(_ context.Context, userIDs []string) ([]clients.UserEmail, error) {
	f.calls++
	var out []clients.UserEmail
	for _, id := range userIDs {
		if addr, ok := f.emails[id]; ok {
			out = append(out, clients.UserEmail{UserID: id, Email: addr})
		}
	}
	return out, nil
}

type fakeMailer struct {
	sent []notify.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, email notify.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

type testEnv struct {
	Engine     engine.Engine
	Ctx        context.Context
	Challenges *fakeChallenges
	Roles      *fakeRoles
	Members    *fakeMembers
	Mailer     *fakeMailer
}

var (
	machine = authz.Identity{UserID: "pipeline", IsMachine: true}
	admin   = authz.Identity{UserID: "admin-1", Roles: []string{"administrator"}}
)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{DataDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	store, err := artifacts.NewStore(dir + "/artifacts")
	require.NoError(t, err)

	env := testEnv{
		Ctx:        context.Background(),
		Challenges: &fakeChallenges{status: map[string]string{}},
		Roles:      &fakeRoles{roles: map[string][]string{}},
		Members:    &fakeMembers{emails: map[string]string{}},
		Mailer:     &fakeMailer{},
	}
	eng := engine.New(conn, config.Default(), nil)
	eng.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	eng.Challenges = env.Challenges
	eng.Roles = env.Roles
	eng.Members = env.Members
	eng.Mailer = env.Mailer
	eng.Store = store
	env.Engine = eng
	return env
}

func (env testEnv) seedSubmission(t *testing.T, memberID, challengeID, subType string) domain.Submission {
	t.Helper()
	sub, err := env.Engine.CreateSubmission(env.Ctx, machine, engine.SubmissionCreateOptions{
		MemberID:    memberID,
		ChallengeID: challengeID,
		Type:        subType,
	})
	require.NoError(t, err)
	return sub
}

func TestOwnerArtifactListingSkipsRoleLookup(t *testing.T) {
	env := newTestEnv(t)
	sub := env.seedSubmission(t, "member-1", "chal-1", domain.ContestSubmission)
	_, err := env.Engine.AddArtifact(env.Ctx, machine, sub.ID, "report.pdf", "application/pdf", false, strings.NewReader("report"))
	require.NoError(t, err)
	_, err = env.Engine.AddArtifact(env.Ctx, machine, sub.ID, "scan.json", "application/json", true, strings.NewReader("{}"))
	require.NoError(t, err)

	owner := authz.Identity{UserID: "member-1", Handle: "member-one"}
	visible, err := env.Engine.ListArtifacts(env.Ctx, owner, sub.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, "report.pdf", visible[0].Name)
	require.Zero(t, env.Roles.calls, "owner listing must not consult the resource service")
}

func TestCopilotSeesInternalArtifacts(t *testing.T) {
	env := newTestEnv(t)
	sub := env.seedSubmission(t, "member-1", "chal-1", domain.ContestSubmission)
	_, err := env.Engine.AddArtifact(env.Ctx, machine, sub.ID, "scan.json", "application/json", true, strings.NewReader("{}"))
	require.NoError(t, err)

	env.Roles.roles["chal-1|copilot-1"] = []string{"Copilot"}
	copilot := authz.Identity{UserID: "copilot-1"}
	visible, err := env.Engine.ListArtifacts(env.Ctx, copilot, sub.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)

	stranger := authz.Identity{UserID: "stranger-1"}
	_, err = env.Engine.ListArtifacts(env.Ctx, stranger, sub.ID)
	var forbidden authz.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestOwnerCannotFetchInternalArtifact(t *testing.T) {
	env := newTestEnv(t)
	sub := env.seedSubmission(t, "member-1", "chal-1", domain.ContestSubmission)
	_, err := env.Engine.AddArtifact(env.Ctx, machine, sub.ID, "scan.json", "application/json", true, strings.NewReader("{}"))
	require.NoError(t, err)

	owner := authz.Identity{UserID: "member-1"}
	_, _, err = env.Engine.FetchArtifact(env.Ctx, owner, sub.ID, "scan.json")
	var forbidden authz.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	_, obj, err := env.Engine.FetchArtifact(env.Ctx, machine, sub.ID, "scan.json")
	require.NoError(t, err)
	obj.Body.Close()
}

func TestDownloadPrecedence(t *testing.T) {
	env := newTestEnv(t)
	env.Challenges.status["chal-1"] = domain.ChallengeActive
	sub := env.seedSubmission(t, "member-1", "chal-1", domain.ContestSubmission)
	require.NoError(t, env.Engine.PutPrimaryFile(env.Ctx, machine, sub.ID, strings.NewReader("zipbytes")))

	env.Roles.roles["chal-1|screener-1"] = []string{"Screener"}
	obj, name, err := env.Engine.DownloadSubmission(env.Ctx, authz.Identity{UserID: "screener-1"}, sub.ID)
	require.NoError(t, err)
	obj.Body.Close()
	require.Equal(t, "submission-"+sub.ID+".zip", name)

	// A submitter cannot pull someone else's file while the challenge runs.
	env.Roles.roles["chal-1|member-1"] = []string{"Submitter"}
	_, _, err = env.Engine.DownloadSubmission(env.Ctx, authz.Identity{UserID: "member-1"}, sub.ID)
	var forbidden authz.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	// After completion a submitter with a passing submission of their own
	// gets through.
	env.Challenges.status["chal-1"] = domain.ChallengeCompleted
	other := env.seedSubmission(t, "member-1", "chal-1", domain.ContestSubmission)
	_, err = env.Engine.RecordSummation(env.Ctx, machine, other.ID, 92.5, true)
	require.NoError(t, err)
	obj, _, err = env.Engine.DownloadSubmission(env.Ctx, authz.Identity{UserID: "member-1"}, sub.ID)
	require.NoError(t, err)
	obj.Body.Close()

	evts, err := env.Engine.Repo.LatestEventsFrom(env.Ctx, 10, 0, "submission.downloaded", "", "")
	require.NoError(t, err)
	require.Len(t, evts, 2)
}

func TestCheckpointScreenerScope(t *testing.T) {
	env := newTestEnv(t)
	env.Challenges.status["chal-1"] = domain.ChallengeActive
	contest := env.seedSubmission(t, "member-1", "chal-1", domain.ContestSubmission)
	checkpoint := env.seedSubmission(t, "member-1", "chal-1", domain.CheckpointSubmission)
	require.NoError(t, env.Engine.PutPrimaryFile(env.Ctx, machine, contest.ID, strings.NewReader("a")))
	require.NoError(t, env.Engine.PutPrimaryFile(env.Ctx, machine, checkpoint.ID, strings.NewReader("b")))

	env.Roles.roles["chal-1|cs-1"] = []string{"Checkpoint Screener"}
	cs := authz.Identity{UserID: "cs-1"}
	obj, _, err := env.Engine.DownloadSubmission(env.Ctx, cs, checkpoint.ID)
	require.NoError(t, err)
	obj.Body.Close()

	_, _, err = env.Engine.DownloadSubmission(env.Ctx, cs, contest.ID)
	var forbidden authz.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestApplicationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.Members.emails["user-1"] = "user-1@example.com"
	opp, err := env.Engine.CreateOpportunity(env.Ctx, admin, engine.OpportunityCreateOptions{
		ChallengeID: "chal-1",
		Type:        domain.OpportunityReview,
	})
	require.NoError(t, err)

	applicant := authz.Identity{UserID: "user-1", Handle: "user-one"}
	app, err := env.Engine.CreateApplication(env.Ctx, applicant, opp.ID, "reviewer")
	require.NoError(t, err)
	require.Equal(t, domain.ApplicationPending, app.Status)

	// Same user, same opportunity, same role: conflict.
	_, err = env.Engine.CreateApplication(env.Ctx, applicant, opp.ID, "Reviewer")
	require.ErrorIs(t, err, repo.ErrDuplicate)

	approved, err := env.Engine.ApproveApplication(env.Ctx, admin, app.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ApplicationApproved, approved.Status)
	require.Len(t, env.Mailer.sent, 1)
	require.Equal(t, []string{"user-1@example.com"}, env.Mailer.sent[0].Recipients)

	// Terminal records refuse further transitions.
	_, err = env.Engine.ApproveApplication(env.Ctx, admin, app.ID)
	var conflict engine.ConflictError
	require.ErrorAs(t, err, &conflict)
	_, err = env.Engine.RejectApplication(env.Ctx, admin, app.ID)
	require.ErrorAs(t, err, &conflict)
	require.Len(t, env.Mailer.sent, 1, "terminal retry must not re-send email")
}

func TestApplicationRoleMustMatchOpportunityType(t *testing.T) {
	env := newTestEnv(t)
	opp, err := env.Engine.CreateOpportunity(env.Ctx, admin, engine.OpportunityCreateOptions{
		ChallengeID: "chal-1",
		Type:        domain.OpportunitySpecReview,
	})
	require.NoError(t, err)

	_, err = env.Engine.CreateApplication(env.Ctx, authz.Identity{UserID: "user-1"}, opp.ID, "Reviewer")
	var bad engine.BadRequestError
	require.ErrorAs(t, err, &bad)

	// Empty role defaults to the opportunity's required role.
	app, err := env.Engine.CreateApplication(env.Ctx, authz.Identity{UserID: "user-1"}, opp.ID, "")
	require.NoError(t, err)
	require.Equal(t, "Specification Reviewer", app.Role)
}

func TestApproveMissingApplication(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ApproveApplication(env.Ctx, admin, "nope")
	require.ErrorIs(t, err, repo.ErrNotFound)
	require.Empty(t, env.Mailer.sent)
	require.Zero(t, env.Members.calls)
}

func TestRejectAllPending(t *testing.T) {
	env := newTestEnv(t)
	env.Members.emails["user-1"] = "u1@example.com"
	env.Members.emails["user-2"] = "u2@example.com"
	opp, err := env.Engine.CreateOpportunity(env.Ctx, admin, engine.OpportunityCreateOptions{
		ChallengeID: "chal-1",
		Type:        domain.OpportunityReview,
	})
	require.NoError(t, err)

	// Zero pending applications: empty success, nothing sent.
	out, err := env.Engine.RejectAllPendingApplications(env.Ctx, admin, opp.ID)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Empty(t, env.Mailer.sent)

	app1, err := env.Engine.CreateApplication(env.Ctx, authz.Identity{UserID: "user-1"}, opp.ID, "Reviewer")
	require.NoError(t, err)
	_, err = env.Engine.CreateApplication(env.Ctx, authz.Identity{UserID: "user-2"}, opp.ID, "Reviewer")
	require.NoError(t, err)
	_, err = env.Engine.ApproveApplication(env.Ctx, admin, app1.ID)
	require.NoError(t, err)
	env.Mailer.sent = nil

	out, err = env.Engine.RejectAllPendingApplications(env.Ctx, admin, opp.ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "user-2", out[0].UserID)
	require.Equal(t, domain.ApplicationRejected, out[0].Status)
	require.Len(t, env.Mailer.sent, 1)

	// Approved application is untouched.
	got, err := env.Engine.GetApplication(env.Ctx, admin, app1.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ApplicationApproved, got.Status)
}

func TestEmailFailureDoesNotUnwindTransition(t *testing.T) {
	env := newTestEnv(t)
	env.Members.emails["user-1"] = "u1@example.com"
	env.Mailer.err = errors.New("bus down")
	opp, err := env.Engine.CreateOpportunity(env.Ctx, admin, engine.OpportunityCreateOptions{
		ChallengeID: "chal-1",
		Type:        domain.OpportunityReview,
	})
	require.NoError(t, err)
	app, err := env.Engine.CreateApplication(env.Ctx, authz.Identity{UserID: "user-1"}, opp.ID, "Reviewer")
	require.NoError(t, err)

	approved, err := env.Engine.ApproveApplication(env.Ctx, admin, app.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ApplicationApproved, approved.Status)
}

func TestRunAccess(t *testing.T) {
	env := newTestEnv(t)
	env.Challenges.status["chal-1"] = domain.ChallengeActive
	sub := env.seedSubmission(t, "member-1", "chal-1", domain.ContestSubmission)
	wf, err := env.Engine.CreateWorkflow(env.Ctx, machine, "chal-1", "ai-review")
	require.NoError(t, err)
	run, err := env.Engine.CreateRun(env.Ctx, machine, wf.ID, sub.ID)
	require.NoError(t, err)
	_, err = env.Engine.AddRunItem(env.Ctx, machine, run.ID, 1, "finding", "details")
	require.NoError(t, err)

	// The owner reads their own run even while the challenge is active.
	env.Roles.roles["chal-1|member-1"] = []string{"Submitter"}
	_, items, err := env.Engine.GetRun(env.Ctx, authz.Identity{UserID: "member-1"}, run.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// Another plain submitter is shut out until completion.
	env.Roles.roles["chal-1|member-2"] = []string{"Submitter"}
	_, _, err = env.Engine.GetRun(env.Ctx, authz.Identity{UserID: "member-2"}, run.ID)
	var forbidden authz.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	env.Challenges.status["chal-1"] = domain.ChallengeCompleted
	_, _, err = env.Engine.GetRun(env.Ctx, authz.Identity{UserID: "member-2"}, run.ID)
	require.NoError(t, err)

	// No qualifying role at all stays forbidden.
	_, _, err = env.Engine.GetRun(env.Ctx, authz.Identity{UserID: "member-3"}, run.ID)
	require.ErrorAs(t, err, &forbidden)
}

func TestCommentEditOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.Challenges.status["chal-1"] = domain.ChallengeActive
	sub := env.seedSubmission(t, "member-1", "chal-1", domain.ContestSubmission)
	wf, err := env.Engine.CreateWorkflow(env.Ctx, machine, "chal-1", "ai-review")
	require.NoError(t, err)
	run, err := env.Engine.CreateRun(env.Ctx, machine, wf.ID, sub.ID)
	require.NoError(t, err)
	item, err := env.Engine.AddRunItem(env.Ctx, machine, run.ID, 1, "finding", "")
	require.NoError(t, err)

	env.Roles.roles["chal-1|reviewer-1"] = []string{"Reviewer"}
	reviewer := authz.Identity{UserID: "reviewer-1"}
	comment, err := env.Engine.CreateComment(env.Ctx, reviewer, item.ID, "looks wrong")
	require.NoError(t, err)

	updated, err := env.Engine.UpdateComment(env.Ctx, reviewer, comment.ID, "resolved")
	require.NoError(t, err)
	require.Equal(t, "resolved", updated.Content)

	// Even an administrator cannot edit someone else's comment.
	_, err = env.Engine.UpdateComment(env.Ctx, admin, comment.ID, "overridden")
	var forbidden authz.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}
