package repo

import (
	"context"
	"database/sql"

	"reviewapi/internal/domain"
)

func (r Repo) InsertWorkflow(ctx context.Context, w domain.Workflow) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO workflows(id,challenge_id,name,created_at) VALUES (?,?,?,?)`,
		w.ID, w.ChallengeID, w.Name, w.CreatedAt)
	return translateConstraint(err)
}

func (r Repo) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	var w domain.Workflow
	err := r.DB.QueryRowContext(ctx, `SELECT id,challenge_id,name,created_at FROM workflows WHERE id=?`, id).
		Scan(&w.ID, &w.ChallengeID, &w.Name, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) InsertRun(ctx context.Context, run domain.WorkflowRun) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO workflow_runs(id,workflow_id,submission_id,status,created_at) VALUES (?,?,?,?,?)`,
		run.ID, run.WorkflowID, run.SubmissionID, run.Status, run.CreatedAt)
	return translateConstraint(err)
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	err := r.DB.QueryRowContext(ctx, `SELECT id,workflow_id,submission_id,status,created_at FROM workflow_runs WHERE id=?`, id).
		Scan(&run.ID, &run.WorkflowID, &run.SubmissionID, &run.Status, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	return run, err
}

func (r Repo) InsertRunItem(ctx context.Context, it domain.RunItem) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO run_items(id,run_id,seq,title,content,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		it.ID, it.RunID, it.Seq, it.Title, nullable(it.Content), it.Status, it.CreatedAt, it.UpdatedAt)
	return translateConstraint(err)
}

func (r Repo) GetRunItem(ctx context.Context, id string) (domain.RunItem, error) {
	var it domain.RunItem
	var content sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,run_id,seq,title,content,status,created_at,updated_at FROM run_items WHERE id=?`, id).
		Scan(&it.ID, &it.RunID, &it.Seq, &it.Title, &content, &it.Status, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	if content.Valid {
		it.Content = content.String
	}
	return it, err
}

func (r Repo) ListRunItems(ctx context.Context, runID string) ([]domain.RunItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,run_id,seq,title,content,status,created_at,updated_at FROM run_items WHERE run_id=? ORDER BY seq, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RunItem
	for rows.Next() {
		var it domain.RunItem
		var content sql.NullString
		if err := rows.Scan(&it.ID, &it.RunID, &it.Seq, &it.Title, &content, &it.Status, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		if content.Valid {
			it.Content = content.String
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func (r Repo) UpdateRunItem(ctx context.Context, it domain.RunItem) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE run_items SET title=?, content=?, status=?, updated_at=? WHERE id=?`,
		it.Title, nullable(it.Content), it.Status, it.UpdatedAt, it.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertComment(ctx context.Context, c domain.RunItemComment) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO run_item_comments(id,item_id,user_id,handle,content,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.ItemID, c.UserID, nullable(c.Handle), c.Content, c.CreatedAt, c.UpdatedAt)
	return translateConstraint(err)
}

func (r Repo) GetComment(ctx context.Context, id string) (domain.RunItemComment, error) {
	var c domain.RunItemComment
	var handle sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,item_id,user_id,handle,content,created_at,updated_at FROM run_item_comments WHERE id=?`, id).
		Scan(&c.ID, &c.ItemID, &c.UserID, &handle, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if handle.Valid {
		c.Handle = handle.String
	}
	return c, err
}

func (r Repo) ListComments(ctx context.Context, itemID string) ([]domain.RunItemComment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,item_id,user_id,handle,content,created_at,updated_at FROM run_item_comments WHERE item_id=? ORDER BY created_at, id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RunItemComment
	for rows.Next() {
		var c domain.RunItemComment
		var handle sql.NullString
		if err := rows.Scan(&c.ID, &c.ItemID, &c.UserID, &handle, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if handle.Valid {
			c.Handle = handle.String
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateComment(ctx context.Context, id, content, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE run_item_comments SET content=?, updated_at=? WHERE id=?`, content, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
