package server

import "reviewapi/internal/domain"

type CreateSubmissionRequest struct {
	ID           string `json:"id,omitempty"`
	MemberID     string `json:"member_id"`
	MemberHandle string `json:"member_handle,omitempty"`
	ChallengeID  string `json:"challenge_id"`
	Type         string `json:"type,omitempty" enum:"CONTEST_SUBMISSION,CHECKPOINT_SUBMISSION"`
}

type CreateSummationRequest struct {
	AggregateScore float64 `json:"aggregate_score"`
	IsPassing      bool    `json:"is_passing"`
}

type CreateApplicationRequest struct {
	OpportunityID string `json:"opportunity_id"`
	Role          string `json:"role,omitempty"`
}

type CreateOpportunityRequest struct {
	ChallengeID   string `json:"challenge_id"`
	Type          string `json:"type" enum:"REVIEW,SPEC_REVIEW,CHECKPOINT_REVIEW"`
	OpenPositions int    `json:"open_positions,omitempty"`
}

type CreateWorkflowRequest struct {
	ChallengeID string `json:"challenge_id"`
	Name        string `json:"name"`
}

type CreateRunRequest struct {
	WorkflowID   string `json:"workflow_id"`
	SubmissionID string `json:"submission_id"`
}

type AddRunItemRequest struct {
	Seq     int    `json:"seq"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

type UpdateRunItemRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Status  *string `json:"status,omitempty"`
}

type CommentRequest struct {
	Content string `json:"content"`
}

type CreateScorecardRequest struct {
	Name          string  `json:"name"`
	ChallengeType string  `json:"challenge_type,omitempty"`
	MinScore      float64 `json:"min_score"`
	MaxScore      float64 `json:"max_score"`
}

type UpdateScorecardRequest struct {
	Name     *string  `json:"name,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
	MaxScore *float64 `json:"max_score,omitempty"`
}

type AddQuestionRequest struct {
	Seq         int     `json:"seq"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

type ContactRequestBody struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type DevLoginRequest struct {
	Sub     string   `json:"sub"`
	Handle  string   `json:"handle,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	Machine bool     `json:"machine,omitempty"`
}

type RunResponse struct {
	Run   domain.WorkflowRun `json:"run"`
	Items []domain.RunItem   `json:"items"`
}

type ScorecardResponse struct {
	Scorecard domain.Scorecard           `json:"scorecard"`
	Questions []domain.ScorecardQuestion `json:"questions"`
}
