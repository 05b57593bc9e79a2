package resumes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var resumeRowColumns = []string{
	"id", "user_id", "title", "content", "version", "is_active",
	"file_key", "file_name", "file_mime_type", "file_size_bytes",
	"feedback_summary", "feedback_strengths", "feedback_improvements", "score",
	"created_at", "updated_at",
}

func TestPGRepoGetByIDDecodesFeedback(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, user_id, title").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(resumeRowColumns).AddRow(
			"r1", "alice", "Backend", "Go", 3, true,
			"k/1_cv.pdf", "cv.pdf", "application/pdf", int64(2048),
			"Solid", []byte(`["depth"]`), []byte(`["metrics"]`), int64(82),
			now, now,
		))

	repo := &PGRepo{DB: db}
	res, err := repo.GetByID(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if res.Version != 3 || res.Content == nil || *res.Content != "Go" {
		t.Fatalf("unexpected resume %+v", res)
	}
	if !res.HasFile() || res.File.SizeBytes != 2048 {
		t.Fatalf("unexpected file %+v", res.File)
	}
	if !res.AnalysisAvailable() || res.Feedback.Strengths[0] != "depth" || *res.Score != 82 {
		t.Fatalf("unexpected feedback %+v", res.Feedback)
	}

	mock.ExpectQuery("SELECT id, user_id, title").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(resumeRowColumns))
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpdateWritesHistoryInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	content := "new"
	res := Resume{ID: "r1", UserID: "alice", Title: "New", Content: &content, Version: 2, UpdatedAt: now}
	entry := HistoryEntry{ID: "h1", ResumeID: "r1", UserID: "alice", Title: "Old", Version: 1, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resume_history").
		WithArgs("h1", "r1", "alice", "Old", nil, 1, nil, nil, nil, nil, nil, nil, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE resumes").
		WithArgs("New", "new", 2, now, "r1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := &PGRepo{DB: db}
	if err := repo.Update(context.Background(), res, entry); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpdateConflictRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resume_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE resumes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := &PGRepo{DB: db}
	err = repo.Update(context.Background(),
		Resume{ID: "r1", Title: "New", Version: 2, UpdatedAt: now},
		HistoryEntry{ID: "h1", ResumeID: "r1", Version: 1, CreatedAt: now})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoSoftDeleteMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE resumes SET is_active = FALSE").
		WithArgs("r9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := &PGRepo{DB: db}
	if err := repo.SoftDelete(context.Background(), "r9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
