package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"reviewapi/internal/domain"
)

func (r Repo) InsertScorecard(ctx context.Context, s domain.Scorecard) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO scorecards(id,name,challenge_type,min_score,max_score,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.Name, nullable(s.ChallengeType), s.MinScore, s.MaxScore, s.CreatedAt, s.UpdatedAt)
	return translateConstraint(err)
}

func (r Repo) GetScorecard(ctx context.Context, id string) (domain.Scorecard, error) {
	var s domain.Scorecard
	var challengeType sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,challenge_type,min_score,max_score,created_at,updated_at FROM scorecards WHERE id=?`, id).
		Scan(&s.ID, &s.Name, &challengeType, &s.MinScore, &s.MaxScore, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if challengeType.Valid {
		s.ChallengeType = challengeType.String
	}
	return s, err
}

func (r Repo) ListScorecards(ctx context.Context, challengeType string) ([]domain.Scorecard, error) {
	var clauses []string
	var args []any
	if challengeType != "" {
		clauses = append(clauses, "challenge_type=?")
		args = append(args, challengeType)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,challenge_type,min_score,max_score,created_at,updated_at FROM scorecards `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Scorecard
	for rows.Next() {
		var s domain.Scorecard
		var challengeType sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &challengeType, &s.MinScore, &s.MaxScore, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if challengeType.Valid {
			s.ChallengeType = challengeType.String
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateScorecard(ctx context.Context, id string, name *string, minScore, maxScore *float64, updatedAt string) error {
	var fields []string
	var args []any
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if minScore != nil {
		fields = append(fields, "min_score=?")
		args = append(args, *minScore)
	}
	if maxScore != nil {
		fields = append(fields, "max_score=?")
		args = append(args, *maxScore)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE scorecards SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteScorecard(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM scorecards WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertScorecardQuestion(ctx context.Context, q domain.ScorecardQuestion) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO scorecard_questions(id,scorecard_id,seq,description,weight) VALUES (?,?,?,?,?)`,
		q.ID, q.ScorecardID, q.Seq, q.Description, q.Weight)
	return translateConstraint(err)
}

func (r Repo) ListScorecardQuestions(ctx context.Context, scorecardID string) ([]domain.ScorecardQuestion, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,scorecard_id,seq,description,weight FROM scorecard_questions WHERE scorecard_id=? ORDER BY seq, id`, scorecardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScorecardQuestion
	for rows.Next() {
		var q domain.ScorecardQuestion
		if err := rows.Scan(&q.ID, &q.ScorecardID, &q.Seq, &q.Description, &q.Weight); err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, rows.Err()
}

func (r Repo) InsertContactRequest(ctx context.Context, c domain.ContactRequest) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO contact_requests(id,user_id,handle,subject,message,created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.UserID, nullable(c.Handle), c.Subject, c.Message, c.CreatedAt)
	return translateConstraint(err)
}

func (r Repo) ListContactRequests(ctx context.Context, limit int) ([]domain.ContactRequest, error) {
	query := `SELECT id,user_id,handle,subject,message,created_at FROM contact_requests ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ContactRequest
	for rows.Next() {
		var c domain.ContactRequest
		var handle sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &handle, &c.Subject, &c.Message, &c.CreatedAt); err != nil {
			return nil, err
		}
		if handle.Valid {
			c.Handle = handle.String
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
