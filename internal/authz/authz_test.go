package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewapi/internal/domain"
)

func TestParseRoleExactMatch(t *testing.T) {
	r, ok := ParseRole("submitter")
	require.True(t, ok)
	assert.Equal(t, RoleSubmitter, r)

	r, ok = ParseRole(" Checkpoint Screener ")
	require.True(t, ok)
	assert.Equal(t, RoleCheckpointScreener, r)

	// Substring containment must not match.
	_, ok = ParseRole("Co-Submitter")
	assert.False(t, ok)
	_, ok = ParseRole("Submitters")
	assert.False(t, ok)
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, Identity{Roles: []string{"Administrator"}}.IsAdmin())
	assert.True(t, Identity{Roles: []string{"copilot", "administrator"}}.IsAdmin())
	assert.False(t, Identity{Roles: []string{"Topcoder Talent"}}.IsAdmin())
	assert.False(t, Identity{}.IsAdmin())
}

func TestArtifactAccess(t *testing.T) {
	sub := domain.Submission{ID: "sub-1", MemberID: "100", ChallengeID: "chal-1"}

	tests := []struct {
		name       string
		id         Identity
		scope      ArtifactScope
		needsRoles bool
	}{
		{"machine caller", Identity{IsMachine: true}, ScopeAll, false},
		{"admin", Identity{UserID: "999", Roles: []string{AdminRole}}, ScopeAll, false},
		{"owner", Identity{UserID: "100"}, ScopeOwn, false},
		{"stranger", Identity{UserID: "200"}, ScopeNone, true},
		{"anonymous member id", Identity{}, ScopeNone, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scope, needsRoles := ArtifactAccess(tc.id, sub)
			assert.Equal(t, tc.scope, scope)
			assert.Equal(t, tc.needsRoles, needsRoles)
		})
	}

	assert.Equal(t, ScopeAll, ArtifactAccessWithRoles(NewRoleSet("Copilot")))
	assert.Equal(t, ScopeNone, ArtifactAccessWithRoles(NewRoleSet("Reviewer")))
	assert.Equal(t, ScopeNone, ArtifactAccessWithRoles(NewRoleSet()))
}

func TestVisibleArtifactsHidesInternal(t *testing.T) {
	arts := []domain.Artifact{
		{Name: "report.pdf"},
		{Name: "scan-notes.txt", Internal: true},
		{Name: "output.zip"},
	}

	assert.Len(t, VisibleArtifacts(ScopeAll, arts), 3)

	own := VisibleArtifacts(ScopeOwn, arts)
	require.Len(t, own, 2)
	for _, a := range own {
		assert.False(t, a.Internal)
	}

	assert.Empty(t, VisibleArtifacts(ScopeNone, arts))
}

func TestCanFetchArtifact(t *testing.T) {
	internal := domain.Artifact{Name: "scan-notes.txt", Internal: true}
	public := domain.Artifact{Name: "report.pdf"}

	assert.NoError(t, CanFetchArtifact(ScopeAll, internal))
	assert.NoError(t, CanFetchArtifact(ScopeOwn, public))

	err := CanFetchArtifact(ScopeOwn, internal)
	var fe ForbiddenError
	require.ErrorAs(t, err, &fe)

	require.ErrorAs(t, CanFetchArtifact(ScopeNone, public), &fe)
}

func TestCanDownloadSubmission(t *testing.T) {
	contest := domain.Submission{ID: "sub-1", MemberID: "100", ChallengeID: "chal-1", Type: domain.ContestSubmission}
	checkpoint := domain.Submission{ID: "sub-2", MemberID: "100", ChallengeID: "chal-1", Type: domain.CheckpointSubmission}

	tests := []struct {
		name  string
		id    Identity
		roles RoleSet
		dc    DownloadContext
		allow bool
	}{
		{
			"admin always",
			Identity{UserID: "1", Roles: []string{AdminRole}},
			NewRoleSet(),
			DownloadContext{Submission: contest, ChallengeStatus: domain.ChallengeActive},
			true,
		},
		{
			"machine always",
			Identity{IsMachine: true},
			NewRoleSet(),
			DownloadContext{Submission: contest, ChallengeStatus: domain.ChallengeActive},
			true,
		},
		{
			"screener any submission type",
			Identity{UserID: "2"},
			NewRoleSet("Screener"),
			DownloadContext{Submission: contest, ChallengeStatus: domain.ChallengeActive},
			true,
		},
		{
			"checkpoint screener on checkpoint submission",
			Identity{UserID: "3"},
			NewRoleSet("Checkpoint Screener"),
			DownloadContext{Submission: checkpoint, ChallengeStatus: domain.ChallengeActive},
			true,
		},
		{
			"checkpoint screener denied for contest submission",
			Identity{UserID: "3"},
			NewRoleSet("Checkpoint Screener"),
			DownloadContext{Submission: contest, ChallengeStatus: domain.ChallengeActive},
			false,
		},
		{
			"submitter blocked while challenge active",
			Identity{UserID: "100"},
			NewRoleSet("Submitter"),
			DownloadContext{Submission: contest, ChallengeStatus: domain.ChallengeActive, HasPassingSubmission: true},
			false,
		},
		{
			"submitter allowed after completion with passing review",
			Identity{UserID: "100"},
			NewRoleSet("Submitter"),
			DownloadContext{Submission: contest, ChallengeStatus: domain.ChallengeCompleted, HasPassingSubmission: true},
			true,
		},
		{
			"submitter without passing review stays blocked",
			Identity{UserID: "100"},
			NewRoleSet("Submitter"),
			DownloadContext{Submission: contest, ChallengeStatus: domain.ChallengeCompleted},
			false,
		},
		{
			"observer never",
			Identity{UserID: "4"},
			NewRoleSet("Observer"),
			DownloadContext{Submission: contest, ChallengeStatus: domain.ChallengeCompleted},
			false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CanDownloadSubmission(tc.id, tc.roles, tc.dc)
			if tc.allow {
				assert.NoError(t, err)
			} else {
				var fe ForbiddenError
				require.ErrorAs(t, err, &fe)
			}
		})
	}
}

func TestCanAccessRun(t *testing.T) {
	tests := []struct {
		name   string
		id     Identity
		roles  RoleSet
		owner  string
		status string
		allow  bool
	}{
		{"machine", Identity{IsMachine: true}, NewRoleSet(), "100", domain.ChallengeActive, true},
		{"admin", Identity{UserID: "1", Roles: []string{AdminRole}}, NewRoleSet(), "100", domain.ChallengeActive, true},
		{"reviewer on active challenge", Identity{UserID: "2"}, NewRoleSet("Reviewer"), "100", domain.ChallengeActive, true},
		{"copilot", Identity{UserID: "3"}, NewRoleSet("Copilot"), "100", domain.ChallengeActive, true},
		{"manager", Identity{UserID: "5"}, NewRoleSet("Manager"), "100", domain.ChallengeActive, true},
		{"no qualifying role", Identity{UserID: "4"}, NewRoleSet("Observer"), "100", domain.ChallengeCompleted, false},
		{"owner submitter before completion", Identity{UserID: "100"}, NewRoleSet("Submitter"), "100", domain.ChallengeActive, true},
		{"plain submitter other member active", Identity{UserID: "200"}, NewRoleSet("Submitter"), "100", domain.ChallengeActive, false},
		{"plain submitter other member completed", Identity{UserID: "200"}, NewRoleSet("Submitter"), "100", domain.ChallengeCompleted, true},
		{"submitter who is also reviewer", Identity{UserID: "200"}, NewRoleSet("Submitter", "Reviewer"), "100", domain.ChallengeActive, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CanAccessRun(tc.id, tc.roles, tc.owner, tc.status)
			if tc.allow {
				assert.NoError(t, err)
			} else {
				var fe ForbiddenError
				require.ErrorAs(t, err, &fe)
			}
		})
	}
}

func TestCanEditCommentOwnershipOnly(t *testing.T) {
	assert.NoError(t, CanEditComment(Identity{UserID: "100"}, "100"))

	var fe ForbiddenError
	require.ErrorAs(t, CanEditComment(Identity{UserID: "200"}, "100"), &fe)

	// Role elevation does not bypass ownership for comments.
	admin := Identity{UserID: "999", Roles: []string{AdminRole}}
	require.ErrorAs(t, CanEditComment(admin, "100"), &fe)
	machine := Identity{IsMachine: true}
	require.ErrorAs(t, CanEditComment(machine, "100"), &fe)
}
