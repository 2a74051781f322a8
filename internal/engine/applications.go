package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reviewapi/internal/authz"
	"reviewapi/internal/domain"
	"reviewapi/internal/events"
	"reviewapi/internal/notify"
	"reviewapi/internal/repo"
)

// OpportunityCreateOptions are parameters for posting a review opportunity.
type OpportunityCreateOptions struct {
	ChallengeID   string
	Type          string
	OpenPositions int
}

func (e Engine) CreateOpportunity(ctx context.Context, ident authz.Identity, opts OpportunityCreateOptions) (domain.ReviewOpportunity, error) {
	if !elevated(ident) {
		return domain.ReviewOpportunity{}, authz.ForbiddenError{Reason: "only administrators may post review opportunities"}
	}
	if opts.ChallengeID == "" {
		return domain.ReviewOpportunity{}, BadRequestError{Msg: "challenge_id is required"}
	}
	if _, ok := roleForOpportunity[opts.Type]; !ok {
		return domain.ReviewOpportunity{}, BadRequestError{Msg: fmt.Sprintf("unknown opportunity type %s", opts.Type)}
	}
	if opts.OpenPositions <= 0 {
		opts.OpenPositions = 1
	}
	o := domain.ReviewOpportunity{
		ID:            uuid.NewString(),
		ChallengeID:   opts.ChallengeID,
		Type:          opts.Type,
		Status:        "OPEN",
		OpenPositions: opts.OpenPositions,
		CreatedAt:     e.nowRFC3339(),
	}
	if err := e.Repo.InsertOpportunity(ctx, o); err != nil {
		return domain.ReviewOpportunity{}, err
	}
	if err := e.Events.Append(ctx, nil, "opportunity.created", "opportunity", o.ID, ident.UserID, events.EventPayload{
		"challenge_id": o.ChallengeID,
		"type":         o.Type,
	}); err != nil {
		return domain.ReviewOpportunity{}, err
	}
	return o, nil
}

func (e Engine) GetOpportunity(ctx context.Context, id string) (domain.ReviewOpportunity, error) {
	return e.Repo.GetOpportunity(ctx, id)
}

func (e Engine) ListOpportunities(ctx context.Context, challengeID string) ([]domain.ReviewOpportunity, error) {
	return e.Repo.ListOpportunities(ctx, challengeID)
}

// roleForOpportunity maps an opportunity type to the single role an
// application for it must carry.
var roleForOpportunity = map[string]authz.Role{
	domain.OpportunityReview:           authz.RoleReviewer,
	domain.OpportunitySpecReview:       authz.RoleSpecificationReviewer,
	domain.OpportunityCheckpointReview: authz.RoleCheckpointScreener,
}

// CreateApplication applies the caller to a review opportunity. The
// application starts PENDING; a second application for the same opportunity
// and role is a conflict.
func (e Engine) CreateApplication(ctx context.Context, ident authz.Identity, opportunityID, roleName string) (domain.ReviewApplication, error) {
	opp, err := e.Repo.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return domain.ReviewApplication{}, err
	}
	expected := roleForOpportunity[opp.Type]
	if roleName == "" {
		roleName = string(expected)
	}
	role, ok := authz.ParseRole(roleName)
	if !ok || role != expected {
		return domain.ReviewApplication{}, BadRequestError{
			Msg: fmt.Sprintf("role %q does not match opportunity type %s (want %s)", roleName, opp.Type, expected),
		}
	}
	now := e.nowRFC3339()
	a := domain.ReviewApplication{
		ID:            uuid.NewString(),
		UserID:        ident.UserID,
		Handle:        ident.Handle,
		OpportunityID: opp.ID,
		Role:          string(role),
		Status:        domain.ApplicationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.Repo.InsertApplication(ctx, a); err != nil {
		return domain.ReviewApplication{}, err
	}
	if err := e.Events.Append(ctx, nil, "application.created", "application", a.ID, ident.UserID, events.EventPayload{
		"opportunity_id": a.OpportunityID,
		"role":           a.Role,
	}); err != nil {
		return domain.ReviewApplication{}, err
	}
	return a, nil
}

func (e Engine) GetApplication(ctx context.Context, ident authz.Identity, id string) (domain.ReviewApplication, error) {
	a, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		return domain.ReviewApplication{}, err
	}
	if !elevated(ident) && a.UserID != ident.UserID {
		return domain.ReviewApplication{}, authz.ForbiddenError{Reason: "not your application"}
	}
	return a, nil
}

func (e Engine) ListApplications(ctx context.Context, ident authz.Identity, f repo.ApplicationFilters) ([]domain.ReviewApplication, error) {
	if !elevated(ident) {
		f.UserID = ident.UserID
	}
	return e.Repo.ListApplications(ctx, f)
}

// ApproveApplication moves a PENDING application to APPROVED. Terminal
// records conflict; absent records are not found. The approval email goes out
// after the write lands and its failure never unwinds the transition.
func (e Engine) ApproveApplication(ctx context.Context, ident authz.Identity, id string) (domain.ReviewApplication, error) {
	return e.transitionApplication(ctx, ident, id, domain.ApplicationApproved)
}

// RejectApplication is the REJECTED counterpart of ApproveApplication.
func (e Engine) RejectApplication(ctx context.Context, ident authz.Identity, id string) (domain.ReviewApplication, error) {
	return e.transitionApplication(ctx, ident, id, domain.ApplicationRejected)
}

func (e Engine) transitionApplication(ctx context.Context, ident authz.Identity, id, toStatus string) (domain.ReviewApplication, error) {
	if !elevated(ident) {
		return domain.ReviewApplication{}, authz.ForbiddenError{Reason: "only administrators may decide applications"}
	}
	moved, err := e.Repo.TransitionApplication(ctx, id, toStatus, e.nowRFC3339())
	if err != nil {
		return domain.ReviewApplication{}, err
	}
	a, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		// Includes the absent case: conditional update matched nothing and
		// the follow-up read reports NotFound.
		return domain.ReviewApplication{}, err
	}
	if !moved {
		return domain.ReviewApplication{}, ConflictError{
			Msg: fmt.Sprintf("application %s is already %s", id, a.Status),
		}
	}
	evtType := "application.approved"
	if toStatus == domain.ApplicationRejected {
		evtType = "application.rejected"
	}
	if err := e.Events.Append(ctx, nil, evtType, "application", a.ID, ident.UserID, events.EventPayload{
		"opportunity_id": a.OpportunityID,
		"status":         a.Status,
	}); err != nil {
		return domain.ReviewApplication{}, err
	}
	e.sendDecisionEmails(ctx, []domain.ReviewApplication{a}, toStatus)
	return a, nil
}

// RejectAllPendingApplications bulk-rejects every pending application on an
// opportunity. Zero pending applications is an empty success, with no events
// and no emails.
func (e Engine) RejectAllPendingApplications(ctx context.Context, ident authz.Identity, opportunityID string) ([]domain.ReviewApplication, error) {
	if !elevated(ident) {
		return nil, authz.ForbiddenError{Reason: "only administrators may decide applications"}
	}
	if _, err := e.Repo.GetOpportunity(ctx, opportunityID); err != nil {
		return nil, err
	}
	rejected, err := e.Repo.RejectAllPending(ctx, opportunityID, e.nowRFC3339())
	if err != nil {
		return nil, err
	}
	for _, a := range rejected {
		if err := e.Events.Append(ctx, nil, "application.rejected", "application", a.ID, ident.UserID, events.EventPayload{
			"opportunity_id": a.OpportunityID,
			"status":         a.Status,
		}); err != nil {
			return nil, err
		}
	}
	e.sendDecisionEmails(ctx, rejected, domain.ApplicationRejected)
	return rejected, nil
}

// sendDecisionEmails notifies applicants of a terminal decision. Lookup or
// delivery failures are logged and swallowed: the transition already
// committed.
func (e Engine) sendDecisionEmails(ctx context.Context, apps []domain.ReviewApplication, toStatus string) {
	if len(apps) == 0 || e.Mailer == nil || e.Members == nil || e.Config == nil {
		return
	}
	templateID := e.Config.Email.ApprovedTemplate
	if toStatus == domain.ApplicationRejected {
		templateID = e.Config.Email.RejectedTemplate
	}
	userIDs := make([]string, 0, len(apps))
	for _, a := range apps {
		userIDs = append(userIDs, a.UserID)
	}
	found, err := e.Members.Emails(ctx, userIDs)
	if err != nil {
		e.Logger.Warn("application decision email lookup failed",
			zap.String("status", toStatus), zap.Error(err))
		return
	}
	byUser := make(map[string]string, len(found))
	for _, u := range found {
		byUser[u.UserID] = u.Email
	}
	for _, a := range apps {
		addr, ok := byUser[a.UserID]
		if !ok || addr == "" {
			e.Logger.Warn("no email address for applicant",
				zap.String("user_id", a.UserID), zap.String("application_id", a.ID))
			continue
		}
		err := e.Mailer.Send(ctx, notify.Email{
			TemplateID: templateID,
			Recipients: []string{addr},
			Data: map[string]any{
				"handle":        a.Handle,
				"applicationId": a.ID,
				"opportunityId": a.OpportunityID,
				"role":          a.Role,
				"status":        a.Status,
			},
		})
		if err != nil {
			e.Logger.Warn("application decision email failed",
				zap.String("application_id", a.ID), zap.Error(err))
		}
	}
}
