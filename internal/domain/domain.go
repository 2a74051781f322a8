package domain

// Statuses shared across the review workflow.
const (
	ChallengeActive    = "ACTIVE"
	ChallengeCompleted = "COMPLETED"
	ChallengeDraft     = "DRAFT"
	ChallengeCancelled = "CANCELLED"

	ApplicationPending  = "PENDING"
	ApplicationApproved = "APPROVED"
	ApplicationRejected = "REJECTED"

	ContestSubmission    = "CONTEST_SUBMISSION"
	CheckpointSubmission = "CHECKPOINT_SUBMISSION"

	OpportunityReview           = "REVIEW"
	OpportunitySpecReview       = "SPEC_REVIEW"
	OpportunityCheckpointReview = "CHECKPOINT_REVIEW"
)

// Challenge is the challenge service's view of a challenge. Never stored.
type Challenge struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status" enum:"ACTIVE,COMPLETED,DRAFT,CANCELLED"`
	LegacyID int64  `json:"legacy_id,omitempty"`
}

type Submission struct {
	ID           string `json:"id"`
	MemberID     string `json:"member_id"`
	MemberHandle string `json:"member_handle,omitempty"`
	ChallengeID  string `json:"challenge_id"`
	Type         string `json:"type" enum:"CONTEST_SUBMISSION,CHECKPOINT_SUBMISSION"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Artifact is a file attached to a submission. Internal artifacts are
// review-side files the submitter must never see.
type Artifact struct {
	SubmissionID string `json:"submission_id"`
	Name         string `json:"name"`
	ContentType  string `json:"content_type"`
	Internal     bool   `json:"internal"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type ReviewSummation struct {
	ID             string  `json:"id"`
	SubmissionID   string  `json:"submission_id"`
	AggregateScore float64 `json:"aggregate_score"`
	IsPassing      bool    `json:"is_passing"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type ReviewOpportunity struct {
	ID            string `json:"id"`
	ChallengeID   string `json:"challenge_id"`
	Type          string `json:"type" enum:"REVIEW,SPEC_REVIEW,CHECKPOINT_REVIEW"`
	Status        string `json:"status"`
	OpenPositions int    `json:"open_positions"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type ReviewApplication struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Handle        string `json:"handle,omitempty"`
	OpportunityID string `json:"opportunity_id"`
	Role          string `json:"role"`
	Status        string `json:"status" enum:"PENDING,APPROVED,REJECTED"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

type Workflow struct {
	ID          string `json:"id"`
	ChallengeID string `json:"challenge_id"`
	Name        string `json:"name"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// WorkflowRun is one execution of an AI review workflow against a submission.
type WorkflowRun struct {
	ID           string `json:"id"`
	WorkflowID   string `json:"workflow_id"`
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status" enum:"QUEUED,RUNNING,COMPLETED,FAILED"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type RunItem struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Seq       int    `json:"seq"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type RunItemComment struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	UserID    string `json:"user_id"`
	Handle    string `json:"handle,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Scorecard struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ChallengeType string  `json:"challenge_type,omitempty"`
	MinScore      float64 `json:"min_score"`
	MaxScore      float64 `json:"max_score"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type ScorecardQuestion struct {
	ID          string  `json:"id"`
	ScorecardID string  `json:"scorecard_id"`
	Seq         int     `json:"seq"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

type ContactRequest struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Handle    string `json:"handle,omitempty"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Event is an append-only audit record. Submission downloads, application
// transitions, and run edits land here.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
