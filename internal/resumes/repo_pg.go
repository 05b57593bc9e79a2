package resumes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Bill1907/prepup/internal/feedback"
)

type PGRepo struct {
	DB *sql.DB
}

const resumeColumns = `id, user_id, title, content, version, is_active,
  file_key, file_name, file_mime_type, file_size_bytes,
  feedback_summary, feedback_strengths, feedback_improvements, score,
  created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) Create(ctx context.Context, res Resume) error {
	const query = `
INSERT INTO resumes (id, user_id, title, content, version, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		res.ID,
		res.UserID,
		res.Title,
		nullableStringPtr(res.Content),
		res.Version,
		res.IsActive,
		res.CreatedAt,
		res.UpdatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	query := `SELECT ` + resumeColumns + ` FROM resumes WHERE id = $1`
	res, err := scanResume(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	return res, err
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	query := `SELECT ` + resumeColumns + `
FROM resumes
WHERE user_id = $1 AND is_active = TRUE
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Resume{}
	for rows.Next() {
		res, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, res Resume, entry HistoryEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	strengths, improvements, summary := feedbackColumns(entry.Feedback)
	const insertHistory = `
INSERT INTO resume_history (id, resume_id, user_id, title, content, version, file_key,
  feedback_summary, feedback_strengths, feedback_improvements, score, change_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := tx.ExecContext(ctx, insertHistory,
		entry.ID,
		entry.ResumeID,
		entry.UserID,
		entry.Title,
		nullableStringPtr(entry.Content),
		entry.Version,
		nullableString(entry.FileKey),
		summary,
		strengths,
		improvements,
		nullableIntPtr(entry.Score),
		nullableString(entry.ChangeReason),
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	const updateResume = `
UPDATE resumes
SET title = $1, content = $2, version = $3, updated_at = $4
WHERE id = $5 AND version = $6`
	result, err := tx.ExecContext(ctx, updateResume,
		res.Title,
		nullableStringPtr(res.Content),
		res.Version,
		res.UpdatedAt,
		res.ID,
		entry.Version,
	)
	if err != nil {
		return fmt.Errorf("update resume: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return tx.Commit()
}

func (r *PGRepo) SetFile(ctx context.Context, id string, file FileRef) error {
	const query = `
UPDATE resumes
SET file_key = $1, file_name = $2, file_mime_type = $3, file_size_bytes = $4, updated_at = now()
WHERE id = $5`
	return r.execOne(ctx, query, file.Key, file.Name, file.MimeType, file.SizeBytes, id)
}

func (r *PGRepo) SetFeedback(ctx context.Context, id string, fb feedback.Feedback) error {
	strengths, improvements, summary := feedbackColumns(&fb)
	const query = `
UPDATE resumes
SET feedback_summary = $1, feedback_strengths = $2, feedback_improvements = $3, score = $4, updated_at = now()
WHERE id = $5`
	return r.execOne(ctx, query, summary, strengths, improvements, fb.Score, id)
}

func (r *PGRepo) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE resumes SET is_active = FALSE, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *PGRepo) ListHistory(ctx context.Context, resumeID string) ([]HistoryEntry, error) {
	const query = `
SELECT id, resume_id, user_id, title, content, version, file_key,
  feedback_summary, feedback_strengths, feedback_improvements, score, change_reason, created_at
FROM resume_history
WHERE resume_id = $1
ORDER BY created_at ASC, version ASC`
	rows, err := r.DB.QueryContext(ctx, query, resumeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var (
			e            HistoryEntry
			content      sql.NullString
			fileKey      sql.NullString
			summary      sql.NullString
			strengths    []byte
			improvements []byte
			score        sql.NullInt64
			reason       sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ResumeID, &e.UserID, &e.Title, &content, &e.Version, &fileKey,
			&summary, &strengths, &improvements, &score, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Content = stringPtr(content)
		e.FileKey = fileKey.String
		e.Score = intPtr(score)
		e.ChangeReason = reason.String
		fb, err := decodeFeedback(summary, strengths, improvements, score)
		if err != nil {
			return nil, err
		}
		e.Feedback = fb
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PGRepo) ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE resumes SET user_id = $1, updated_at = now() WHERE user_id = $2`, toUserID, fromUserID)
	if err != nil {
		return 0, err
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE resume_history SET user_id = $1 WHERE user_id = $2`, toUserID, fromUserID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(moved), nil
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
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

func scanResume(row rowScanner) (Resume, error) {
	var (
		res          Resume
		content      sql.NullString
		fileKey      sql.NullString
		fileName     sql.NullString
		fileMime     sql.NullString
		fileSize     sql.NullInt64
		summary      sql.NullString
		strengths    []byte
		improvements []byte
		score        sql.NullInt64
	)
	if err := row.Scan(
		&res.ID, &res.UserID, &res.Title, &content, &res.Version, &res.IsActive,
		&fileKey, &fileName, &fileMime, &fileSize,
		&summary, &strengths, &improvements, &score,
		&res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return Resume{}, err
	}
	res.Content = stringPtr(content)
	res.Score = intPtr(score)
	if fileKey.Valid && fileKey.String != "" {
		res.File = &FileRef{
			Key:       fileKey.String,
			Name:      fileName.String,
			MimeType:  fileMime.String,
			SizeBytes: fileSize.Int64,
		}
	}
	fb, err := decodeFeedback(summary, strengths, improvements, score)
	if err != nil {
		return Resume{}, err
	}
	res.Feedback = fb
	return res, nil
}

func decodeFeedback(summary sql.NullString, strengths, improvements []byte, score sql.NullInt64) (*feedback.Feedback, error) {
	if !summary.Valid {
		return nil, nil
	}
	fb := &feedback.Feedback{Summary: summary.String, Score: int(score.Int64)}
	if len(strengths) > 0 {
		if err := json.Unmarshal(strengths, &fb.Strengths); err != nil {
			return nil, fmt.Errorf("decode strengths: %w", err)
		}
	}
	if len(improvements) > 0 {
		if err := json.Unmarshal(improvements, &fb.Improvements); err != nil {
			return nil, fmt.Errorf("decode improvements: %w", err)
		}
	}
	return fb, nil
}

func feedbackColumns(fb *feedback.Feedback) (strengths, improvements, summary any) {
	if fb == nil {
		return nil, nil, nil
	}
	s, _ := json.Marshal(fb.Strengths)
	i, _ := json.Marshal(fb.Improvements)
	return string(s), string(i), fb.Summary
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableStringPtr(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableIntPtr(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
