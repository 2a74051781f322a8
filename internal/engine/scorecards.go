package engine

import (
	"context"

	"github.com/google/uuid"

	"reviewapi/internal/authz"
	"reviewapi/internal/domain"
)

// ScorecardCreateOptions are parameters for defining a scorecard.
type ScorecardCreateOptions struct {
	Name          string
	ChallengeType string
	MinScore      float64
	MaxScore      float64
}

func (e Engine) CreateScorecard(ctx context.Context, ident authz.Identity, opts ScorecardCreateOptions) (domain.Scorecard, error) {
	if !ident.IsAdmin() {
		return domain.Scorecard{}, authz.ForbiddenError{Reason: "only administrators may manage scorecards"}
	}
	if opts.Name == "" {
		return domain.Scorecard{}, BadRequestError{Msg: "name is required"}
	}
	if opts.MaxScore <= opts.MinScore {
		return domain.Scorecard{}, BadRequestError{Msg: "max_score must exceed min_score"}
	}
	now := e.nowRFC3339()
	s := domain.Scorecard{
		ID:            uuid.NewString(),
		Name:          opts.Name,
		ChallengeType: opts.ChallengeType,
		MinScore:      opts.MinScore,
		MaxScore:      opts.MaxScore,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.Repo.InsertScorecard(ctx, s); err != nil {
		return domain.Scorecard{}, err
	}
	return s, nil
}

func (e Engine) GetScorecard(ctx context.Context, id string) (domain.Scorecard, []domain.ScorecardQuestion, error) {
	s, err := e.Repo.GetScorecard(ctx, id)
	if err != nil {
		return domain.Scorecard{}, nil, err
	}
	qs, err := e.Repo.ListScorecardQuestions(ctx, id)
	if err != nil {
		return domain.Scorecard{}, nil, err
	}
	return s, qs, nil
}

func (e Engine) ListScorecards(ctx context.Context, challengeType string) ([]domain.Scorecard, error) {
	return e.Repo.ListScorecards(ctx, challengeType)
}

// ScorecardUpdateOptions carry the mutable scorecard fields; nil leaves a
// field untouched.
type ScorecardUpdateOptions struct {
	Name     *string
	MinScore *float64
	MaxScore *float64
}

func (e Engine) UpdateScorecard(ctx context.Context, ident authz.Identity, id string, opts ScorecardUpdateOptions) (domain.Scorecard, error) {
	if !ident.IsAdmin() {
		return domain.Scorecard{}, authz.ForbiddenError{Reason: "only administrators may manage scorecards"}
	}
	s, err := e.Repo.GetScorecard(ctx, id)
	if err != nil {
		return domain.Scorecard{}, err
	}
	if opts.Name != nil {
		s.Name = *opts.Name
	}
	if opts.MinScore != nil {
		s.MinScore = *opts.MinScore
	}
	if opts.MaxScore != nil {
		s.MaxScore = *opts.MaxScore
	}
	if s.MaxScore <= s.MinScore {
		return domain.Scorecard{}, BadRequestError{Msg: "max_score must exceed min_score"}
	}
	s.UpdatedAt = e.nowRFC3339()
	if err := e.Repo.UpdateScorecard(ctx, id, opts.Name, opts.MinScore, opts.MaxScore, s.UpdatedAt); err != nil {
		return domain.Scorecard{}, err
	}
	return s, nil
}

func (e Engine) DeleteScorecard(ctx context.Context, ident authz.Identity, id string) error {
	if !ident.IsAdmin() {
		return authz.ForbiddenError{Reason: "only administrators may manage scorecards"}
	}
	return e.Repo.DeleteScorecard(ctx, id)
}

func (e Engine) AddScorecardQuestion(ctx context.Context, ident authz.Identity, scorecardID string, seq int, description string, weight float64) (domain.ScorecardQuestion, error) {
	if !ident.IsAdmin() {
		return domain.ScorecardQuestion{}, authz.ForbiddenError{Reason: "only administrators may manage scorecards"}
	}
	if description == "" {
		return domain.ScorecardQuestion{}, BadRequestError{Msg: "description is required"}
	}
	if _, err := e.Repo.GetScorecard(ctx, scorecardID); err != nil {
		return domain.ScorecardQuestion{}, err
	}
	q := domain.ScorecardQuestion{
		ID:          uuid.NewString(),
		ScorecardID: scorecardID,
		Seq:         seq,
		Description: description,
		Weight:      weight,
	}
	if err := e.Repo.InsertScorecardQuestion(ctx, q); err != nil {
		return domain.ScorecardQuestion{}, err
	}
	return q, nil
}

// CreateContactRequest records a support request from the caller.
func (e Engine) CreateContactRequest(ctx context.Context, ident authz.Identity, subject, message string) (domain.ContactRequest, error) {
	if subject == "" || message == "" {
		return domain.ContactRequest{}, BadRequestError{Msg: "subject and message are required"}
	}
	c := domain.ContactRequest{
		ID:        uuid.NewString(),
		UserID:    ident.UserID,
		Handle:    ident.Handle,
		Subject:   subject,
		Message:   message,
		CreatedAt: e.nowRFC3339(),
	}
	if err := e.Repo.InsertContactRequest(ctx, c); err != nil {
		return domain.ContactRequest{}, err
	}
	return c, nil
}

func (e Engine) ListContactRequests(ctx context.Context, ident authz.Identity, limit int) ([]domain.ContactRequest, error) {
	if !ident.IsAdmin() {
		return nil, authz.ForbiddenError{Reason: "only administrators may read contact requests"}
	}
	return e.Repo.ListContactRequests(ctx, limit)
}

// ListEvents exposes the audit log to administrators.
func (e Engine) ListEvents(ctx context.Context, ident authz.Identity, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if !ident.IsAdmin() {
		return nil, authz.ForbiddenError{Reason: "only administrators may read the audit log"}
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return e.Repo.LatestEventsFrom(ctx, limit, cursor, evtType, entityKind, entityID)
}
