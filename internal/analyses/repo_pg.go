package analyses

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo persists analysis jobs in Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, resume_id, user_id, provider, model, prompt_version, status,
  error_code, error_message, created_at, started_at, completed_at`

func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	const query = `
INSERT INTO analysis_jobs (id, resume_id, user_id, provider, model, prompt_version, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		a.ID,
		a.ResumeID,
		a.UserID,
		a.Provider,
		nullableString(a.Model),
		a.PromptVersion,
		a.Status,
		a.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analysis_jobs WHERE id = $1`, analysisID))
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

func (r *PGRepo) UpdateStatus(ctx context.Context, analysisID string, u StatusUpdate) error {
	const query = `
UPDATE analysis_jobs
SET status = $1,
    error_code = $2,
    error_message = $3,
    started_at = COALESCE($4, started_at),
    completed_at = COALESCE($5, completed_at)
WHERE id = $6`
	result, err := r.DB.ExecContext(ctx, query,
		u.Status,
		nullableString(u.ErrorCode),
		nullableString(u.ErrorMessage),
		nullableTime(u.StartedAt),
		nullableTime(u.CompletedAt),
		analysisID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) ListByResume(ctx context.Context, resumeID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+analysisColumns+`
FROM analysis_jobs
WHERE resume_id = $1
ORDER BY created_at DESC
LIMIT $2`, resumeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PGRepo) ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int, error) {
	result, err := r.DB.ExecContext(ctx, `UPDATE analysis_jobs SET user_id = $1 WHERE user_id = $2`, toUserID, fromUserID)
	if err != nil {
		return 0, err
	}
	moved, err := result.RowsAffected()
	return int(moved), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a           Analysis
		model       sql.NullString
		errorCode   sql.NullString
		errorMsg    sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.ResumeID, &a.UserID, &a.Provider, &model, &a.PromptVersion, &a.Status,
		&errorCode, &errorMsg, &a.CreatedAt, &startedAt, &completedAt); err != nil {
		return Analysis{}, err
	}
	a.Model = model.String
	a.ErrorCode = errorCode.String
	a.ErrorMessage = errorMsg.String
	if startedAt.Valid {
		t := startedAt.Time
		a.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
