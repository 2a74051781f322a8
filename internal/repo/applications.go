package repo

import (
	"context"
	"database/sql"
	"strings"

	"reviewapi/internal/domain"
)

func (r Repo) InsertOpportunity(ctx context.Context, o domain.ReviewOpportunity) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO review_opportunities(id,challenge_id,type,status,open_positions,created_at) VALUES (?,?,?,?,?,?)`,
		o.ID, o.ChallengeID, o.Type, o.Status, o.OpenPositions, o.CreatedAt)
	return translateConstraint(err)
}

func (r Repo) GetOpportunity(ctx context.Context, id string) (domain.ReviewOpportunity, error) {
	var o domain.ReviewOpportunity
	err := r.DB.QueryRowContext(ctx, `SELECT id,challenge_id,type,status,open_positions,created_at FROM review_opportunities WHERE id=?`, id).
		Scan(&o.ID, &o.ChallengeID, &o.Type, &o.Status, &o.OpenPositions, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) ListOpportunities(ctx context.Context, challengeID string) ([]domain.ReviewOpportunity, error) {
	var clauses []string
	var args []any
	if challengeID != "" {
		clauses = append(clauses, "challenge_id=?")
		args = append(args, challengeID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,challenge_id,type,status,open_positions,created_at FROM review_opportunities `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReviewOpportunity
	for rows.Next() {
		var o domain.ReviewOpportunity
		if err := rows.Scan(&o.ID, &o.ChallengeID, &o.Type, &o.Status, &o.OpenPositions, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) InsertApplication(ctx context.Context, a domain.ReviewApplication) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO review_applications(id,user_id,handle,opportunity_id,role,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.UserID, nullable(a.Handle), a.OpportunityID, a.Role, a.Status, a.CreatedAt, a.UpdatedAt)
	return translateConstraint(err)
}

func scanApplication(row interface{ Scan(...any) error }) (domain.ReviewApplication, error) {
	var a domain.ReviewApplication
	var handle sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &handle, &a.OpportunityID, &a.Role, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if handle.Valid {
		a.Handle = handle.String
	}
	return a, err
}

func (r Repo) GetApplication(ctx context.Context, id string) (domain.ReviewApplication, error) {
	return scanApplication(r.DB.QueryRowContext(ctx, `SELECT id,user_id,handle,opportunity_id,role,status,created_at,updated_at FROM review_applications WHERE id=?`, id))
}

type ApplicationFilters struct {
	OpportunityID string
	UserID        string
	Status        string
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilters) ([]domain.ReviewApplication, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.OpportunityID != "" {
		clauses = append(clauses, "opportunity_id=?")
		args = append(args, f.OpportunityID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,handle,opportunity_id,role,status,created_at,updated_at FROM review_applications `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReviewApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// TransitionApplication moves a PENDING application to the target status.
// The WHERE clause makes the write conditional, so two concurrent
// approve/reject calls resolve to exactly one winner. Returns false when no
// row was in PENDING (absent or already terminal).
func (r Repo) TransitionApplication(ctx context.Context, id, toStatus, updatedAt string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE review_applications SET status=?, updated_at=? WHERE id=? AND status=?`,
		toStatus, updatedAt, id, domain.ApplicationPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RejectAllPending bulk-rejects every PENDING application under the
// opportunity and returns the affected rows. Zero pending rows is an empty
// success.
func (r Repo) RejectAllPending(ctx context.Context, opportunityID, updatedAt string) ([]domain.ReviewApplication, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id,user_id,handle,opportunity_id,role,status,created_at,updated_at FROM review_applications WHERE opportunity_id=? AND status=?`,
		opportunityID, domain.ApplicationPending)
	if err != nil {
		return nil, err
	}
	var pending []domain.ReviewApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pending = append(pending, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(pending) == 0 {
		return []domain.ReviewApplication{}, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `UPDATE review_applications SET status=?, updated_at=? WHERE opportunity_id=? AND status=?`,
		domain.ApplicationRejected, updatedAt, opportunityID, domain.ApplicationPending); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	for i := range pending {
		pending[i].Status = domain.ApplicationRejected
		pending[i].UpdatedAt = updatedAt
	}
	return pending, nil
}
