// Package authz holds the pure decision functions that gate access to
// submissions, artifacts, workflow runs, and comments. Nothing here touches
// the network or the database: callers fetch identity, resource roles, and
// challenge state, then ask these functions for a verdict. Decisions are
// re-derived on every call; there is no role or challenge cache.
package authz

import (
	"fmt"
	"strings"

	"reviewapi/internal/domain"
)

// Identity is the resolved caller for one request.
type Identity struct {
	UserID    string
	Handle    string
	Roles     []string
	IsMachine bool
}

// AdminRole is the global role that bypasses challenge-scoped checks.
const AdminRole = "administrator"

func (id Identity) IsAdmin() bool {
	for _, r := range id.Roles {
		if strings.EqualFold(r, AdminRole) {
			return true
		}
	}
	return false
}

// elevated reports machine callers and admins, which skip role lookups.
func (id Identity) elevated() bool {
	return id.IsMachine || id.IsAdmin()
}

// ForbiddenError indicates a denied operation.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// Role is a challenge-scoped resource role.
type Role string

const (
	RoleSubmitter             Role = "Submitter"
	RoleReviewer              Role = "Reviewer"
	RoleIterativeReviewer     Role = "Iterative Reviewer"
	RoleSpecificationReviewer Role = "Specification Reviewer"
	RoleCopilot               Role = "Copilot"
	RoleScreener              Role = "Screener"
	RoleCheckpointScreener    Role = "Checkpoint Screener"
	RoleManager               Role = "Manager"
	RoleObserver              Role = "Observer"
)

var knownRoles = []Role{
	RoleSubmitter,
	RoleReviewer,
	RoleIterativeReviewer,
	RoleSpecificationReviewer,
	RoleCopilot,
	RoleScreener,
	RoleCheckpointScreener,
	RoleManager,
	RoleObserver,
}

// ParseRole matches a resource-service role name by exact, case-insensitive
// equality. Substring matching is deliberately not used: "Co-Submitter" must
// never pass as Submitter.
func ParseRole(name string) (Role, bool) {
	trimmed := strings.TrimSpace(name)
	for _, r := range knownRoles {
		if strings.EqualFold(trimmed, string(r)) {
			return r, true
		}
	}
	return "", false
}

// RoleSet is the caller's resolved roles on one challenge.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from resource-service role names. Unknown names
// are dropped.
func NewRoleSet(names ...string) RoleSet {
	set := RoleSet{}
	for _, n := range names {
		if r, ok := ParseRole(n); ok {
			set[r] = struct{}{}
		}
	}
	return set
}

func (s RoleSet) Has(roles ...Role) bool {
	for _, r := range roles {
		if _, ok := s[r]; ok {
			return true
		}
	}
	return false
}

// ArtifactScope says which of a submission's artifacts the caller may see.
type ArtifactScope int

const (
	ScopeNone ArtifactScope = iota
	// ScopeOwn grants the non-internal artifacts only.
	ScopeOwn
	ScopeAll
)

// ArtifactAccess decides artifact visibility from identity and submission
// alone. When the verdict depends on challenge roles it returns
// needsRoles=true and the caller must follow up with ArtifactAccessWithRoles.
// Owners and elevated callers resolve here, without any resource lookup.
func ArtifactAccess(id Identity, sub domain.Submission) (scope ArtifactScope, needsRoles bool) {
	if id.elevated() {
		return ScopeAll, false
	}
	if id.UserID != "" && id.UserID == sub.MemberID {
		return ScopeOwn, false
	}
	return ScopeNone, true
}

// ArtifactAccessWithRoles resolves the non-owner branch: copilots see
// everything, everyone else nothing.
func ArtifactAccessWithRoles(roles RoleSet) ArtifactScope {
	if roles.Has(RoleCopilot) {
		return ScopeAll
	}
	return ScopeNone
}

// VisibleArtifacts filters a listing down to what the scope allows.
func VisibleArtifacts(scope ArtifactScope, artifacts []domain.Artifact) []domain.Artifact {
	switch scope {
	case ScopeAll:
		return artifacts
	case ScopeOwn:
		out := make([]domain.Artifact, 0, len(artifacts))
		for _, a := range artifacts {
			if !a.Internal {
				out = append(out, a)
			}
		}
		return out
	default:
		return nil
	}
}

// CanFetchArtifact gates the fetch of a single named artifact.
func CanFetchArtifact(scope ArtifactScope, a domain.Artifact) error {
	switch scope {
	case ScopeAll:
		return nil
	case ScopeOwn:
		if a.Internal {
			return ForbiddenError{Reason: "internal artifacts are not visible to the submitter"}
		}
		return nil
	default:
		return ForbiddenError{Reason: "no access to submission artifacts"}
	}
}

// DownloadContext carries the state the download rule needs beyond identity
// and roles.
type DownloadContext struct {
	Submission      domain.Submission
	ChallengeStatus string
	// HasPassingSubmission is true when the caller has at least one other
	// submission on the same challenge with a passing review summation.
	HasPassingSubmission bool
}

// CanDownloadSubmission governs download of the primary submission file.
// Precedence order, first match wins: elevated caller; screener; checkpoint
// screener on checkpoint submissions; submitter after a completed challenge
// with a passing review of their own.
func CanDownloadSubmission(id Identity, roles RoleSet, dc DownloadContext) error {
	if id.elevated() {
		return nil
	}
	if roles.Has(RoleScreener) {
		return nil
	}
	if dc.Submission.Type == domain.CheckpointSubmission && roles.Has(RoleCheckpointScreener) {
		return nil
	}
	if roles.Has(RoleSubmitter) &&
		dc.ChallengeStatus == domain.ChallengeCompleted &&
		dc.HasPassingSubmission {
		return nil
	}
	return ForbiddenError{Reason: "not allowed to download this submission"}
}

// runRoles are the challenge roles that may touch workflow runs at all.
var runRoles = []Role{RoleReviewer, RoleManager, RoleCopilot, RoleSubmitter}

// CanAccessRun gates read/update of a workflow run and its items. ownerID is
// the member who owns the run's submission. A caller whose only qualifying
// role is Submitter may reach another member's run only once the challenge
// is completed.
func CanAccessRun(id Identity, roles RoleSet, ownerID, challengeStatus string) error {
	if id.elevated() {
		return nil
	}
	if !roles.Has(runRoles...) {
		return ForbiddenError{Reason: "no qualifying role on this challenge"}
	}
	onlySubmitter := roles.Has(RoleSubmitter) && !roles.Has(RoleReviewer, RoleManager, RoleCopilot)
	if onlySubmitter && id.UserID != ownerID && challengeStatus != domain.ChallengeCompleted {
		return ForbiddenError{Reason: "submitters may not access another member's run before the challenge completes"}
	}
	return nil
}

// CanEditComment restricts comment updates to the original creator. Admins do
// not bypass this: run-level elevation stops at comment ownership.
func CanEditComment(id Identity, creatorUserID string) error {
	if id.UserID == "" || id.UserID != creatorUserID {
		return ForbiddenError{Reason: "only the comment creator may modify it"}
	}
	return nil
}
