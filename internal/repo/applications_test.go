package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"reviewapi/internal/db"
	"reviewapi/internal/domain"
	"reviewapi/internal/migrate"
	"reviewapi/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func seedApplication(t *testing.T, r repo.Repo, id, userID, oppID string) {
	t.Helper()
	_ = r.InsertOpportunity(context.Background(), domain.ReviewOpportunity{
		ID:            oppID,
		ChallengeID:   "chal-1",
		Type:          domain.OpportunityReview,
		Status:        "OPEN",
		OpenPositions: 1,
		CreatedAt:     "2026-01-01T00:00:00Z",
	})
	require.NoError(t, r.InsertApplication(context.Background(), domain.ReviewApplication{
		ID:            id,
		UserID:        userID,
		OpportunityID: oppID,
		Role:          "Reviewer",
		Status:        domain.ApplicationPending,
		CreatedAt:     "2026-01-01T00:00:00Z",
		UpdatedAt:     "2026-01-01T00:00:00Z",
	}))
}

func TestTransitionApplicationIsConditional(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedApplication(t, r, "app-1", "user-1", "opp-1")

	moved, err := r.TransitionApplication(ctx, "app-1", domain.ApplicationApproved, "2026-01-02T00:00:00Z")
	require.NoError(t, err)
	require.True(t, moved)

	// The second writer loses: the row is no longer PENDING.
	moved, err = r.TransitionApplication(ctx, "app-1", domain.ApplicationRejected, "2026-01-02T00:00:01Z")
	require.NoError(t, err)
	require.False(t, moved)

	a, err := r.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	require.Equal(t, domain.ApplicationApproved, a.Status)
	require.Equal(t, "2026-01-02T00:00:00Z", a.UpdatedAt)
}

func TestTransitionMissingApplication(t *testing.T) {
	r := newRepo(t)
	moved, err := r.TransitionApplication(context.Background(), "ghost", domain.ApplicationApproved, "2026-01-02T00:00:00Z")
	require.NoError(t, err)
	require.False(t, moved)
	_, err = r.GetApplication(context.Background(), "ghost")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDuplicateApplicationRejected(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedApplication(t, r, "app-1", "user-1", "opp-1")

	err := r.InsertApplication(ctx, domain.ReviewApplication{
		ID:            "app-2",
		UserID:        "user-1",
		OpportunityID: "opp-1",
		Role:          "Reviewer",
		Status:        domain.ApplicationPending,
		CreatedAt:     "2026-01-01T00:00:00Z",
		UpdatedAt:     "2026-01-01T00:00:00Z",
	})
	require.ErrorIs(t, err, repo.ErrDuplicate)
}

func TestRejectAllPendingSkipsTerminalRows(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedApplication(t, r, "app-1", "user-1", "opp-1")
	seedApplication(t, r, "app-2", "user-2", "opp-1")
	moved, err := r.TransitionApplication(ctx, "app-1", domain.ApplicationApproved, "2026-01-02T00:00:00Z")
	require.NoError(t, err)
	require.True(t, moved)

	rejected, err := r.RejectAllPending(ctx, "opp-1", "2026-01-03T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	require.Equal(t, "app-2", rejected[0].ID)
	require.Equal(t, domain.ApplicationRejected, rejected[0].Status)

	a, err := r.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	require.Equal(t, domain.ApplicationApproved, a.Status)
}

func TestRejectAllPendingEmptyOpportunity(t *testing.T) {
	r := newRepo(t)
	rejected, err := r.RejectAllPending(context.Background(), "opp-empty", "2026-01-03T00:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, rejected)
	require.Empty(t, rejected)
}
