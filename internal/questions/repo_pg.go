package questions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type PGRepo struct {
	DB *sql.DB
}

const questionColumns = `id, user_id, resume_id, question, category, difficulty, suggested_answer, tips, is_bookmarked, created_at`

func (r *PGRepo) CreateBatch(ctx context.Context, qs []Question) error {
	if len(qs) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO interview_questions (`+questionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range qs {
		tips, err := json.Marshal(nonNilTips(q.Tips))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			q.ID,
			q.UserID,
			q.ResumeID,
			q.Question,
			nullable(q.Category),
			nullable(q.Difficulty),
			nullable(q.SuggestedAnswer),
			string(tips),
			q.IsBookmarked,
			q.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Question, error) {
	q, err := scanQuestion(r.DB.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM interview_questions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	return q, err
}

func (r *PGRepo) List(ctx context.Context, userID string, f Filter) ([]Question, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ResumeID != "" {
		add("resume_id = $%d", f.ResumeID)
	}
	if f.Bookmarked != nil {
		add("is_bookmarked = $%d", *f.Bookmarked)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	query := `SELECT ` + questionColumns + ` FROM interview_questions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + strconv.Itoa(f.Offset)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *PGRepo) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	var bookmarked bool
	err := r.DB.QueryRowContext(ctx, `
UPDATE interview_questions SET is_bookmarked = NOT is_bookmarked
WHERE id = $1
RETURNING is_bookmarked`, id).Scan(&bookmarked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	return bookmarked, err
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM interview_questions WHERE id = $1`, id)
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

func (r *PGRepo) ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int, error) {
	result, err := r.DB.ExecContext(ctx, `UPDATE interview_questions SET user_id = $1 WHERE user_id = $2`, toUserID, fromUserID)
	if err != nil {
		return 0, err
	}
	moved, err := result.RowsAffected()
	return int(moved), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (Question, error) {
	var (
		q          Question
		category   sql.NullString
		difficulty sql.NullString
		answer     sql.NullString
		tips       []byte
	)
	if err := row.Scan(&q.ID, &q.UserID, &q.ResumeID, &q.Question, &category, &difficulty, &answer, &tips, &q.IsBookmarked, &q.CreatedAt); err != nil {
		return Question{}, err
	}
	q.Category = category.String
	q.Difficulty = difficulty.String
	q.SuggestedAnswer = answer.String
	q.Tips = []string{}
	if len(tips) > 0 {
		if err := json.Unmarshal(tips, &q.Tips); err != nil {
			return Question{}, fmt.Errorf("decode tips: %w", err)
		}
	}
	return q, nil
}

func nonNilTips(tips []string) []string {
	if tips == nil {
		return []string{}
	}
	return tips
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
