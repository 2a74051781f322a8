package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"reviewapi/internal/artifacts"
	"reviewapi/internal/authz"
	"reviewapi/internal/domain"
	"reviewapi/internal/events"
	"reviewapi/internal/repo"
)

// primaryObjectName is the store key suffix for the submission's main file.
const primaryObjectName = "submission.zip"

// SubmissionCreateOptions are parameters for registering a submission.
type SubmissionCreateOptions struct {
	ID           string
	MemberID     string
	MemberHandle string
	ChallengeID  string
	Type         string
}

func (e Engine) CreateSubmission(ctx context.Context, ident authz.Identity, opts SubmissionCreateOptions) (domain.Submission, error) {
	if !elevated(ident) {
		return domain.Submission{}, authz.ForbiddenError{Reason: "only the pipeline may register submissions"}
	}
	if opts.MemberID == "" || opts.ChallengeID == "" {
		return domain.Submission{}, BadRequestError{Msg: "member_id and challenge_id are required"}
	}
	if opts.Type == "" {
		opts.Type = domain.ContestSubmission
	}
	if opts.Type != domain.ContestSubmission && opts.Type != domain.CheckpointSubmission {
		return domain.Submission{}, BadRequestError{Msg: fmt.Sprintf("unknown submission type %s", opts.Type)}
	}
	s := domain.Submission{
		ID:           opts.ID,
		MemberID:     opts.MemberID,
		MemberHandle: opts.MemberHandle,
		ChallengeID:  opts.ChallengeID,
		Type:         opts.Type,
		CreatedAt:    e.nowRFC3339(),
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if err := e.Repo.InsertSubmission(ctx, s); err != nil {
		return domain.Submission{}, err
	}
	if err := e.Events.Append(ctx, nil, "submission.created", "submission", s.ID, ident.UserID, events.EventPayload{
		"challenge_id": s.ChallengeID,
		"member_id":    s.MemberID,
	}); err != nil {
		return domain.Submission{}, err
	}
	return s, nil
}

func (e Engine) GetSubmission(ctx context.Context, ident authz.Identity, id string) (domain.Submission, error) {
	sub, err := e.Repo.GetSubmission(ctx, id)
	if err != nil {
		return domain.Submission{}, err
	}
	if !elevated(ident) && ident.UserID != sub.MemberID {
		roles, err := e.roleSet(ctx, ident, sub.ChallengeID)
		if err != nil {
			return domain.Submission{}, err
		}
		if !roles.Has(authz.RoleCopilot, authz.RoleScreener, authz.RoleCheckpointScreener, authz.RoleReviewer, authz.RoleManager) {
			return domain.Submission{}, authz.ForbiddenError{Reason: "no access to this submission"}
		}
	}
	return sub, nil
}

func (e Engine) ListSubmissions(ctx context.Context, ident authz.Identity, challengeID, memberID string) ([]domain.Submission, error) {
	if !elevated(ident) {
		// Plain members only ever list their own.
		memberID = ident.UserID
	}
	return e.Repo.ListSubmissions(ctx, repo.SubmissionFilters{ChallengeID: challengeID, MemberID: memberID})
}

// AddArtifact stores an artifact body and records its metadata.
func (e Engine) AddArtifact(ctx context.Context, ident authz.Identity, submissionID, name, contentType string, internal bool, body io.Reader) (domain.Artifact, error) {
	if !elevated(ident) {
		return domain.Artifact{}, authz.ForbiddenError{Reason: "only the pipeline may attach artifacts"}
	}
	if name == "" {
		return domain.Artifact{}, BadRequestError{Msg: "artifact name is required"}
	}
	if _, err := e.Repo.GetSubmission(ctx, submissionID); err != nil {
		return domain.Artifact{}, err
	}
	if _, err := e.Store.Put(artifacts.Key(submissionID, name), body); err != nil {
		return domain.Artifact{}, err
	}
	a := domain.Artifact{
		SubmissionID: submissionID,
		Name:         name,
		ContentType:  contentType,
		Internal:     internal,
		CreatedAt:    e.nowRFC3339(),
	}
	if err := e.Repo.InsertArtifact(ctx, a); err != nil {
		return domain.Artifact{}, err
	}
	return a, nil
}

// artifactScope resolves the caller's visibility on a submission's artifacts.
// Owners and elevated callers resolve without touching the resource service.
func (e Engine) artifactScope(ctx context.Context, ident authz.Identity, sub domain.Submission) (authz.ArtifactScope, error) {
	scope, needsRoles := authz.ArtifactAccess(ident, sub)
	if !needsRoles {
		return scope, nil
	}
	roles, err := e.roleSet(ctx, ident, sub.ChallengeID)
	if err != nil {
		return authz.ScopeNone, err
	}
	return authz.ArtifactAccessWithRoles(roles), nil
}

// ListArtifacts returns the artifacts the caller may see on a submission.
func (e Engine) ListArtifacts(ctx context.Context, ident authz.Identity, submissionID string) ([]domain.Artifact, error) {
	sub, err := e.Repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	scope, err := e.artifactScope(ctx, ident, sub)
	if err != nil {
		return nil, err
	}
	if scope == authz.ScopeNone {
		return nil, authz.ForbiddenError{Reason: "no access to submission artifacts"}
	}
	all, err := e.Repo.ListArtifacts(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return authz.VisibleArtifacts(scope, all), nil
}

// FetchArtifact opens one named artifact for streaming. The caller closes the
// returned object's Body.
func (e Engine) FetchArtifact(ctx context.Context, ident authz.Identity, submissionID, name string) (domain.Artifact, artifacts.Object, error) {
	sub, err := e.Repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Artifact{}, artifacts.Object{}, err
	}
	meta, err := e.Repo.GetArtifact(ctx, submissionID, name)
	if err != nil {
		return domain.Artifact{}, artifacts.Object{}, err
	}
	scope, err := e.artifactScope(ctx, ident, sub)
	if err != nil {
		return domain.Artifact{}, artifacts.Object{}, err
	}
	if err := authz.CanFetchArtifact(scope, meta); err != nil {
		return domain.Artifact{}, artifacts.Object{}, err
	}
	obj, err := e.Store.Get(artifacts.Key(submissionID, name))
	if err != nil {
		return domain.Artifact{}, artifacts.Object{}, err
	}
	return meta, obj, nil
}

// DownloadSubmission authorizes and opens the submission's primary file, and
// appends an audit event on success. Returns the object and the download
// filename.
func (e Engine) DownloadSubmission(ctx context.Context, ident authz.Identity, submissionID string) (artifacts.Object, string, error) {
	sub, err := e.Repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return artifacts.Object{}, "", err
	}
	dc := authz.DownloadContext{Submission: sub}
	roles := authz.RoleSet{}
	if !elevated(ident) {
		dc.ChallengeStatus, err = e.challengeStatus(ctx, sub.ChallengeID)
		if err != nil {
			return artifacts.Object{}, "", err
		}
		roles, err = e.roleSet(ctx, ident, sub.ChallengeID)
		if err != nil {
			return artifacts.Object{}, "", err
		}
		// The passing-submission check excludes the file being downloaded:
		// the caller must have passed with some submission of their own.
		if roles.Has(authz.RoleSubmitter) && dc.ChallengeStatus == domain.ChallengeCompleted {
			dc.HasPassingSubmission, err = e.Repo.HasPassingSubmission(ctx, ident.UserID, sub.ChallengeID, sub.ID)
			if err != nil {
				return artifacts.Object{}, "", err
			}
		}
	}
	if err := authz.CanDownloadSubmission(ident, roles, dc); err != nil {
		return artifacts.Object{}, "", err
	}
	obj, err := e.Store.Get(artifacts.Key(sub.ID, primaryObjectName))
	if err != nil {
		return artifacts.Object{}, "", err
	}
	if err := e.Events.Append(ctx, nil, "submission.downloaded", "submission", sub.ID, ident.UserID, events.EventPayload{
		"challenge_id": sub.ChallengeID,
	}); err != nil {
		obj.Body.Close()
		return artifacts.Object{}, "", err
	}
	return obj, fmt.Sprintf("submission-%s.zip", sub.ID), nil
}

// PutPrimaryFile stores the submission's main archive.
func (e Engine) PutPrimaryFile(ctx context.Context, ident authz.Identity, submissionID string, body io.Reader) error {
	if !elevated(ident) {
		return authz.ForbiddenError{Reason: "only the pipeline may upload submission files"}
	}
	if _, err := e.Repo.GetSubmission(ctx, submissionID); err != nil {
		return err
	}
	if _, err := e.Store.Put(artifacts.Key(submissionID, primaryObjectName), body); err != nil {
		return errors.Wrap(err, "store primary file")
	}
	return nil
}

// RecordSummation stores a review summation from the pipeline.
func (e Engine) RecordSummation(ctx context.Context, ident authz.Identity, submissionID string, aggregateScore float64, isPassing bool) (domain.ReviewSummation, error) {
	if !elevated(ident) {
		return domain.ReviewSummation{}, authz.ForbiddenError{Reason: "only the pipeline may record summations"}
	}
	if _, err := e.Repo.GetSubmission(ctx, submissionID); err != nil {
		return domain.ReviewSummation{}, err
	}
	s := domain.ReviewSummation{
		ID:             uuid.NewString(),
		SubmissionID:   submissionID,
		AggregateScore: aggregateScore,
		IsPassing:      isPassing,
		CreatedAt:      e.nowRFC3339(),
	}
	if err := e.Repo.InsertSummation(ctx, s); err != nil {
		return domain.ReviewSummation{}, err
	}
	e.Logger.Info("summation recorded",
		zap.String("submission_id", submissionID),
		zap.Bool("is_passing", isPassing))
	return s, nil
}
