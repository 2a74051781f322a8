package engine

import (
	"context"

	"github.com/google/uuid"

	"reviewapi/internal/authz"
	"reviewapi/internal/domain"
	"reviewapi/internal/events"
)

func (e Engine) CreateWorkflow(ctx context.Context, ident authz.Identity, challengeID, name string) (domain.Workflow, error) {
	if !elevated(ident) {
		return domain.Workflow{}, authz.ForbiddenError{Reason: "only the pipeline may create workflows"}
	}
	if challengeID == "" || name == "" {
		return domain.Workflow{}, BadRequestError{Msg: "challenge_id and name are required"}
	}
	w := domain.Workflow{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		Name:        name,
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertWorkflow(ctx, w); err != nil {
		return domain.Workflow{}, err
	}
	return w, nil
}

func (e Engine) CreateRun(ctx context.Context, ident authz.Identity, workflowID, submissionID string) (domain.WorkflowRun, error) {
	if !elevated(ident) {
		return domain.WorkflowRun{}, authz.ForbiddenError{Reason: "only the pipeline may start runs"}
	}
	if _, err := e.Repo.GetWorkflow(ctx, workflowID); err != nil {
		return domain.WorkflowRun{}, err
	}
	if _, err := e.Repo.GetSubmission(ctx, submissionID); err != nil {
		return domain.WorkflowRun{}, err
	}
	run := domain.WorkflowRun{
		ID:           uuid.NewString(),
		WorkflowID:   workflowID,
		SubmissionID: submissionID,
		Status:       "QUEUED",
		CreatedAt:    e.nowRFC3339(),
	}
	if err := e.Repo.InsertRun(ctx, run); err != nil {
		return domain.WorkflowRun{}, err
	}
	if err := e.Events.Append(ctx, nil, "run.created", "run", run.ID, ident.UserID, events.EventPayload{
		"workflow_id":   workflowID,
		"submission_id": submissionID,
	}); err != nil {
		return domain.WorkflowRun{}, err
	}
	return run, nil
}

// authorizeRun loads a run and applies the run-access rule: the caller needs
// a qualifying challenge role, and a caller whose only qualifying role is
// Submitter may reach another member's run only after the challenge
// completes.
func (e Engine) authorizeRun(ctx context.Context, ident authz.Identity, runID string) (domain.WorkflowRun, error) {
	run, err := e.Repo.GetRun(ctx, runID)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	sub, err := e.Repo.GetSubmission(ctx, run.SubmissionID)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	roles := authz.RoleSet{}
	status := ""
	if !elevated(ident) {
		roles, err = e.roleSet(ctx, ident, sub.ChallengeID)
		if err != nil {
			return domain.WorkflowRun{}, err
		}
		status, err = e.challengeStatus(ctx, sub.ChallengeID)
		if err != nil {
			return domain.WorkflowRun{}, err
		}
	}
	if err := authz.CanAccessRun(ident, roles, sub.MemberID, status); err != nil {
		return domain.WorkflowRun{}, err
	}
	return run, nil
}

// GetRun returns a run with its items, access-checked.
func (e Engine) GetRun(ctx context.Context, ident authz.Identity, runID string) (domain.WorkflowRun, []domain.RunItem, error) {
	run, err := e.authorizeRun(ctx, ident, runID)
	if err != nil {
		return domain.WorkflowRun{}, nil, err
	}
	items, err := e.Repo.ListRunItems(ctx, run.ID)
	if err != nil {
		return domain.WorkflowRun{}, nil, err
	}
	return run, items, nil
}

// RunItemUpdateOptions carry the mutable item fields.
type RunItemUpdateOptions struct {
	Title   *string
	Content *string
	Status  *string
}

func (e Engine) AddRunItem(ctx context.Context, ident authz.Identity, runID string, seq int, title, content string) (domain.RunItem, error) {
	if !elevated(ident) {
		return domain.RunItem{}, authz.ForbiddenError{Reason: "only the pipeline may append run items"}
	}
	if _, err := e.Repo.GetRun(ctx, runID); err != nil {
		return domain.RunItem{}, err
	}
	now := e.nowRFC3339()
	it := domain.RunItem{
		ID:        uuid.NewString(),
		RunID:     runID,
		Seq:       seq,
		Title:     title,
		Content:   content,
		Status:    "OPEN",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertRunItem(ctx, it); err != nil {
		return domain.RunItem{}, err
	}
	return it, nil
}

func (e Engine) UpdateRunItem(ctx context.Context, ident authz.Identity, itemID string, opts RunItemUpdateOptions) (domain.RunItem, error) {
	it, err := e.Repo.GetRunItem(ctx, itemID)
	if err != nil {
		return domain.RunItem{}, err
	}
	if _, err := e.authorizeRun(ctx, ident, it.RunID); err != nil {
		return domain.RunItem{}, err
	}
	if opts.Title != nil {
		it.Title = *opts.Title
	}
	if opts.Content != nil {
		it.Content = *opts.Content
	}
	if opts.Status != nil {
		it.Status = *opts.Status
	}
	it.UpdatedAt = e.nowRFC3339()
	if err := e.Repo.UpdateRunItem(ctx, it); err != nil {
		return domain.RunItem{}, err
	}
	if err := e.Events.Append(ctx, nil, "run.item.updated", "run_item", it.ID, ident.UserID, events.EventPayload{
		"run_id": it.RunID,
		"status": it.Status,
	}); err != nil {
		return domain.RunItem{}, err
	}
	return it, nil
}

func (e Engine) ListComments(ctx context.Context, ident authz.Identity, itemID string) ([]domain.RunItemComment, error) {
	it, err := e.Repo.GetRunItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := e.authorizeRun(ctx, ident, it.RunID); err != nil {
		return nil, err
	}
	return e.Repo.ListComments(ctx, itemID)
}

func (e Engine) CreateComment(ctx context.Context, ident authz.Identity, itemID, content string) (domain.RunItemComment, error) {
	if content == "" {
		return domain.RunItemComment{}, BadRequestError{Msg: "content is required"}
	}
	it, err := e.Repo.GetRunItem(ctx, itemID)
	if err != nil {
		return domain.RunItemComment{}, err
	}
	if _, err := e.authorizeRun(ctx, ident, it.RunID); err != nil {
		return domain.RunItemComment{}, err
	}
	now := e.nowRFC3339()
	c := domain.RunItemComment{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		UserID:    ident.UserID,
		Handle:    ident.Handle,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertComment(ctx, c); err != nil {
		return domain.RunItemComment{}, err
	}
	return c, nil
}

// UpdateComment rewrites a comment's content. Only the creator may edit;
// run-level access does not extend to editing someone else's comment, and
// neither does admin.
func (e Engine) UpdateComment(ctx context.Context, ident authz.Identity, commentID, content string) (domain.RunItemComment, error) {
	if content == "" {
		return domain.RunItemComment{}, BadRequestError{Msg: "content is required"}
	}
	c, err := e.Repo.GetComment(ctx, commentID)
	if err != nil {
		return domain.RunItemComment{}, err
	}
	if err := authz.CanEditComment(ident, c.UserID); err != nil {
		return domain.RunItemComment{}, err
	}
	now := e.nowRFC3339()
	if err := e.Repo.UpdateComment(ctx, commentID, content, now); err != nil {
		return domain.RunItemComment{}, err
	}
	c.Content = content
	c.UpdatedAt = now
	if err := e.Events.Append(ctx, nil, "run.comment.updated", "run_comment", c.ID, ident.UserID, events.EventPayload{
		"item_id": c.ItemID,
	}); err != nil {
		return domain.RunItemComment{}, err
	}
	return c, nil
}
