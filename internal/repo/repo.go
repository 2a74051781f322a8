package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reviewapi/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is the translated form of a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate")
)

// translateConstraint maps driver constraint violations onto repo sentinels
// so callers never have to parse driver messages themselves.
func translateConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("referential integrity: %w", err)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (r Repo) InsertSubmission(ctx context.Context, s domain.Submission) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO submissions(id,member_id,member_handle,challenge_id,type,created_at) VALUES (?,?,?,?,?,?)`,
		s.ID, s.MemberID, nullable(s.MemberHandle), s.ChallengeID, s.Type, s.CreatedAt)
	return translateConstraint(err)
}

func (r Repo) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	var s domain.Submission
	var handle sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,member_id,member_handle,challenge_id,type,created_at FROM submissions WHERE id=?`, id).
		Scan(&s.ID, &s.MemberID, &handle, &s.ChallengeID, &s.Type, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if handle.Valid {
		s.MemberHandle = handle.String
	}
	return s, err
}

type SubmissionFilters struct {
	ChallengeID string
	MemberID    string
	Limit       int
}

func (r Repo) ListSubmissions(ctx context.Context, f SubmissionFilters) ([]domain.Submission, error) {
	var clauses []string
	var args []any
	if f.ChallengeID != "" {
		clauses = append(clauses, "challenge_id=?")
		args = append(args, f.ChallengeID)
	}
	if f.MemberID != "" {
		clauses = append(clauses, "member_id=?")
		args = append(args, f.MemberID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,member_id,member_handle,challenge_id,type,created_at FROM submissions ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Submission
	for rows.Next() {
		var s domain.Submission
		var handle sql.NullString
		if err := rows.Scan(&s.ID, &s.MemberID, &handle, &s.ChallengeID, &s.Type, &s.CreatedAt); err != nil {
			return nil, err
		}
		if handle.Valid {
			s.MemberHandle = handle.String
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) InsertArtifact(ctx context.Context, a domain.Artifact) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO submission_artifacts(submission_id,name,content_type,internal,created_at) VALUES (?,?,?,?,?)`,
		a.SubmissionID, a.Name, a.ContentType, boolToInt(a.Internal), a.CreatedAt)
	return translateConstraint(err)
}

func (r Repo) ListArtifacts(ctx context.Context, submissionID string) ([]domain.Artifact, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT submission_id,name,content_type,internal,created_at FROM submission_artifacts WHERE submission_id=? ORDER BY name`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		var internal int
		if err := rows.Scan(&a.SubmissionID, &a.Name, &a.ContentType, &internal, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Internal = internal != 0
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) GetArtifact(ctx context.Context, submissionID, name string) (domain.Artifact, error) {
	var a domain.Artifact
	var internal int
	err := r.DB.QueryRowContext(ctx, `SELECT submission_id,name,content_type,internal,created_at FROM submission_artifacts WHERE submission_id=? AND name=?`, submissionID, name).
		Scan(&a.SubmissionID, &a.Name, &a.ContentType, &internal, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.Internal = internal != 0
	return a, err
}

func (r Repo) InsertSummation(ctx context.Context, s domain.ReviewSummation) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO review_summations(id,submission_id,aggregate_score,is_passing,created_at) VALUES (?,?,?,?,?)`,
		s.ID, s.SubmissionID, s.AggregateScore, boolToInt(s.IsPassing), s.CreatedAt)
	return translateConstraint(err)
}

// HasPassingSubmission reports whether the member has another submission on
// the challenge with a passing review summation. The submission being
// downloaded is excluded so a member cannot qualify via the file itself.
func (r Repo) HasPassingSubmission(ctx context.Context, memberID, challengeID, excludeSubmissionID string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `
SELECT 1 FROM review_summations rs
JOIN submissions s ON s.id=rs.submission_id
WHERE s.member_id=? AND s.challenge_id=? AND s.id != ? AND rs.is_passing=1 LIMIT 1`,
		memberID, challengeID, excludeSubmissionID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entity, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entity, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entity.Valid {
			e.EntityID = entity.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
