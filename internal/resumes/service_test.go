package resumes

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Bill1907/prepup/internal/cache"
	"github.com/Bill1907/prepup/internal/feedback"
	"github.com/Bill1907/prepup/internal/shared/storage/object/local"
	"github.com/Bill1907/prepup/internal/shared/util"
)

func newTestService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := NewService(repo, local.New(t.TempDir()), cache.NewMemory(64, time.Minute))
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, repo
}

func strPtr(s string) *string { return &s }

func TestUpdateSnapshotsPriorState(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, "alice", CreateInput{Title: "Backend Engineer", Content: strPtr("Go, Postgres")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.SetFeedback(ctx, res.ID, feedback.Feedback{Summary: "ok", Score: 71, Strengths: []string{"a"}, Improvements: []string{"b"}}); err != nil {
		t.Fatalf("set feedback: %v", err)
	}

	updated, err := svc.Update(ctx, "alice", res.ID, UpdateInput{Title: strPtr("Staff Engineer"), ChangeReason: "promotion"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || updated.Title != "Staff Engineer" {
		t.Fatalf("unexpected updated resume %+v", updated)
	}

	history, err := svc.History(ctx, "alice", res.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	h := history[0]
	if h.Title != "Backend Engineer" || h.Version != 1 || h.Content == nil || *h.Content != "Go, Postgres" {
		t.Fatalf("history does not reproduce prior state: %+v", h)
	}
	if h.Score == nil || *h.Score != 71 {
		t.Fatalf("expected prior score 71, got %v", h.Score)
	}
	if h.ChangeReason != "promotion" {
		t.Fatalf("unexpected change reason %q", h.ChangeReason)
	}

	if _, err := svc.Update(ctx, "alice", res.ID, UpdateInput{Content: strPtr("Go, Postgres, Kafka")}); err != nil {
		t.Fatalf("second update: %v", err)
	}
	history, _ = svc.History(ctx, "alice", res.ID)
	if len(history) != 2 || history[0].Version != 1 || history[1].Version != 2 {
		t.Fatalf("expected history ordered oldest first, got %+v", history)
	}
	if !history[0].CreatedAt.Before(history[1].CreatedAt) {
		t.Fatalf("expected increasing timestamps")
	}
}

func TestNoOpUpdateKeepsVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	res, _ := svc.Create(ctx, "alice", CreateInput{Title: "Resume"})

	same, err := svc.Update(ctx, "alice", res.ID, UpdateInput{Title: strPtr("  Resume ")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if same.Version != 1 {
		t.Fatalf("expected version 1, got %d", same.Version)
	}
	history, _ := svc.History(ctx, "alice", res.ID)
	if len(history) != 0 {
		t.Fatalf("expected no history, got %d", len(history))
	}
}

func TestCrossUserAccessIsForbidden(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	res, _ := svc.Create(ctx, "bob", CreateInput{Title: "Bob's resume"})

	if _, err := svc.Get(ctx, "alice", res.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on get, got %v", err)
	}
	if _, err := svc.Update(ctx, "alice", res.ID, UpdateInput{Title: strPtr("hijacked")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on update, got %v", err)
	}
	if err := svc.Delete(ctx, "alice", res.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
	if _, err := svc.History(ctx, "alice", res.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on history, got %v", err)
	}

	stored, err := repo.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Title != "Bob's resume" || stored.Version != 1 || !stored.IsActive {
		t.Fatalf("bob's resume changed: %+v", stored)
	}
}

func TestDeleteIsSoft(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	res, _ := svc.Create(ctx, "alice", CreateInput{Title: "Resume"})

	// warm the cache so the delete must invalidate it
	if _, err := svc.Get(ctx, "alice", res.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := svc.Delete(ctx, "alice", res.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, "alice", res.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	list, _ := svc.List(ctx, "alice", 10, 0)
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	stored, err := repo.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("expected row to remain: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("expected is_active=false")
	}
}

func TestListIsNewestFirstAndCached(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	first, _ := svc.Create(ctx, "alice", CreateInput{Title: "First"})
	second, _ := svc.Create(ctx, "alice", CreateInput{Title: "Second"})
	_, _ = svc.Create(ctx, "bob", CreateInput{Title: "Other"})

	list, err := svc.List(ctx, "alice", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", list)
	}

	third, _ := svc.Create(ctx, "alice", CreateInput{Title: "Third"})
	list, _ = svc.List(ctx, "alice", 10, 0)
	if len(list) != 3 || list[0].ID != third.ID {
		t.Fatalf("expected cache invalidated on create, got %+v", list)
	}
}

func TestCreateValidatesTitle(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Create(context.Background(), "alice", CreateInput{Title: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "alice", CreateInput{Title: strings.Repeat("x", 201)}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for long title, got %v", err)
	}
}

func TestUploadAndOpenFile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	res, _ := svc.Create(ctx, "alice", CreateInput{Title: "Resume"})

	if _, _, err := svc.OpenFile(ctx, "alice", res.ID); !errors.Is(err, ErrFileNotUploaded) {
		t.Fatalf("expected ErrFileNotUploaded, got %v", err)
	}

	updated, err := svc.UploadFile(ctx, "alice", res.ID, "cv.txt", strings.NewReader("Experienced Go developer"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !updated.HasFile() || updated.File.MimeType != util.MimeText {
		t.Fatalf("unexpected file %+v", updated.File)
	}

	rc, file, err := svc.OpenFile(ctx, "alice", res.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "Experienced Go developer" || file.Name != "cv.txt" {
		t.Fatalf("unexpected file content %q / %+v", data, file)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	res, _ := svc.Create(ctx, "alice", CreateInput{Title: "Resume"})

	png := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"
	if _, err := svc.UploadFile(ctx, "alice", res.ID, "photo.png", strings.NewReader(png)); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
}

func TestAttachUploadedFileChecksNamespace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	res, _ := svc.Create(ctx, "alice", CreateInput{Title: "Resume"})

	if _, err := svc.AttachUploadedFile(ctx, "alice", res.ID, util.HashUserKey("bob")+"/x_cv.pdf", "cv.pdf"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign key, got %v", err)
	}
	if _, err := svc.AttachUploadedFile(ctx, "alice", res.ID, util.HashUserKey("alice")+"/missing.pdf", "cv.pdf"); !errors.Is(err, ErrFileNotUploaded) {
		t.Fatalf("expected ErrFileNotUploaded for missing object, got %v", err)
	}

	obj, err := svc.Store.Save(ctx, "alice", "cv.pdf", strings.NewReader("%PDF-1.4 data"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	attached, err := svc.AttachUploadedFile(ctx, "alice", res.ID, obj.Key, "")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if attached.File.Key != obj.Key || attached.File.MimeType != util.MimePDF {
		t.Fatalf("unexpected attached file %+v", attached.File)
	}
}

func TestClaimGuestMovesResumes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	res, _ := svc.Create(ctx, "guest:abc", CreateInput{Title: "Guest resume"})

	moved, err := svc.ClaimGuest(ctx, "guest:abc", "google:1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 moved, got %d", moved)
	}
	if _, err := svc.Get(ctx, "google:1", res.ID); err != nil {
		t.Fatalf("expected new owner access: %v", err)
	}
	if _, err := svc.Get(ctx, "guest:abc", res.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected guest to lose access, got %v", err)
	}
}
