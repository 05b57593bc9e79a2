package resumes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Bill1907/prepup/internal/cache"
	"github.com/Bill1907/prepup/internal/feedback"
	"github.com/Bill1907/prepup/internal/shared/storage/object"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
	"github.com/Bill1907/prepup/internal/shared/util"
)

const cacheEntity = "resume"

// Service owns resume CRUD. Every caller-facing method checks ownership.
type Service struct {
	Repo  Repo
	Store object.Store
	Cache cache.Cache
	Now   func() time.Time
}

func NewService(repo Repo, store object.Store, c cache.Cache) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{Repo: repo, Store: store, Cache: c, Now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Resume, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return Resume{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return Resume{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := s.now()
	res := Resume{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   normalizeContent(in.Content),
		Version:   1,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, res); err != nil {
		return Resume{}, err
	}
	s.Cache.InvalidateOwner(cacheEntity, userID)
	return res, nil
}

// Get returns an active resume owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (Resume, error) {
	key := cache.Key{Entity: cacheEntity, Owner: userID, ID: id}
	var cached Resume
	if ok, err := s.Cache.Get(key, &cached); err == nil && ok {
		return cached, nil
	}

	res, err := s.load(ctx, userID, id)
	if err != nil {
		return Resume{}, err
	}
	if err := s.Cache.Set(key, res); err != nil {
		telemetry.Warn("cache.set.failed", map[string]any{"key": key.String(), "error": err})
	}
	return res, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	key := cache.Key{Entity: cacheEntity, Owner: userID, ID: fmt.Sprintf("list:%d:%d", limit, offset)}
	var cached []Resume
	if ok, err := s.Cache.Get(key, &cached); err == nil && ok {
		return cached, nil
	}
	list, err := s.Repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.Set(key, list)
	return list, nil
}

// Update snapshots the current state into history, applies the edit and bumps the version.
// An edit that changes nothing returns the resume untouched.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (Resume, error) {
	current, err := s.load(ctx, userID, id)
	if err != nil {
		return Resume{}, err
	}

	next := clone(current)
	if in.Title != nil {
		title, err := normalizeTitle(*in.Title)
		if err != nil {
			return Resume{}, err
		}
		next.Title = title
	}
	if in.Content != nil {
		next.Content = normalizeContent(in.Content)
	}
	if next.Title == current.Title && equalStringPtr(next.Content, current.Content) {
		return current, nil
	}

	now := s.now()
	entry := snapshot(current, uuid.NewString(), strings.TrimSpace(in.ChangeReason), now)
	next.Version = current.Version + 1
	next.UpdatedAt = now
	if err := s.Repo.Update(ctx, next, entry); err != nil {
		return Resume{}, err
	}
	s.Cache.InvalidateOwner(cacheEntity, userID)
	telemetry.Info("resume.updated", map[string]any{"resume_id": id, "user_id": userID, "version": next.Version})
	return next, nil
}

// Delete soft-deletes the resume. The row and its history stay in storage.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	if err := s.Repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.Cache.InvalidateOwner(cacheEntity, userID)
	return nil
}

// History returns snapshots oldest first.
func (s *Service) History(ctx context.Context, userID, id string) ([]HistoryEntry, error) {
	if _, err := s.load(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.Repo.ListHistory(ctx, id)
}

// UploadFile stores the document and attaches it to the resume.
func (s *Service) UploadFile(ctx context.Context, userID, id, fileName string, r io.Reader) (Resume, error) {
	if s.Store == nil {
		return Resume{}, errors.New("object store not configured")
	}
	res, err := s.load(ctx, userID, id)
	if err != nil {
		return Resume{}, err
	}
	if strings.TrimSpace(fileName) == "" {
		return Resume{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	obj, err := s.Store.Save(ctx, userID, fileName, r)
	if err != nil {
		return Resume{}, err
	}
	if !util.AllowedResumeMime(obj.MimeType) {
		if delErr := s.Store.Delete(ctx, obj.Key); delErr != nil {
			telemetry.Warn("resume.file.cleanup_failed", map[string]any{"key": obj.Key, "error": delErr})
		}
		return Resume{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, obj.MimeType)
	}
	return s.attach(ctx, res, FileRef{Key: obj.Key, Name: fileName, MimeType: obj.MimeType, SizeBytes: obj.Size})
}

// AttachUploadedFile links an object uploaded through a presigned URL. The key
// must live under the caller's storage namespace.
func (s *Service) AttachUploadedFile(ctx context.Context, userID, id, key, fileName string) (Resume, error) {
	if s.Store == nil {
		return Resume{}, errors.New("object store not configured")
	}
	res, err := s.load(ctx, userID, id)
	if err != nil {
		return Resume{}, err
	}
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, util.HashUserKey(userID)+"/") {
		return Resume{}, ErrForbidden
	}
	obj, err := s.Store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Resume{}, ErrFileNotUploaded
		}
		return Resume{}, err
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = key[strings.LastIndex(key, "/")+1:]
	}
	if !util.AllowedResumeMime(obj.MimeType) {
		return Resume{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, obj.MimeType)
	}
	return s.attach(ctx, res, FileRef{Key: key, Name: fileName, MimeType: obj.MimeType, SizeBytes: obj.Size})
}

// OpenFile streams the attached document of an owned resume.
func (s *Service) OpenFile(ctx context.Context, userID, id string) (io.ReadCloser, FileRef, error) {
	res, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, FileRef{}, err
	}
	return s.openFile(ctx, res)
}

// Lookup fetches a resume without an ownership check, for background jobs.
func (s *Service) Lookup(ctx context.Context, id string) (Resume, error) {
	res, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Resume{}, err
	}
	if !res.IsActive {
		return Resume{}, ErrNotFound
	}
	return res, nil
}

// ReadFile returns the attached document of res, for background jobs.
func (s *Service) ReadFile(ctx context.Context, res Resume) (io.ReadCloser, FileRef, error) {
	return s.openFile(ctx, res)
}

// SetFeedback stores a completed analysis on the resume.
func (s *Service) SetFeedback(ctx context.Context, id string, fb feedback.Feedback) error {
	if err := feedback.Validate(fb); err != nil {
		return err
	}
	res, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.SetFeedback(ctx, id, fb); err != nil {
		return err
	}
	s.Cache.InvalidateOwner(cacheEntity, res.UserID)
	return nil
}

// ClaimGuest moves guest-owned resumes to userID.
func (s *Service) ClaimGuest(ctx context.Context, guestID, userID string) (int, error) {
	moved, err := s.Repo.ReassignOwner(ctx, guestID, userID)
	if err != nil {
		return 0, err
	}
	s.Cache.InvalidateOwner(cacheEntity, guestID)
	s.Cache.InvalidateOwner(cacheEntity, userID)
	return moved, nil
}

func (s *Service) load(ctx context.Context, userID, id string) (Resume, error) {
	if strings.TrimSpace(id) == "" {
		return Resume{}, ErrNotFound
	}
	res, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Resume{}, err
	}
	if !res.IsActive {
		return Resume{}, ErrNotFound
	}
	if res.UserID != userID {
		return Resume{}, ErrForbidden
	}
	return res, nil
}

func (s *Service) attach(ctx context.Context, res Resume, file FileRef) (Resume, error) {
	if err := s.Repo.SetFile(ctx, res.ID, file); err != nil {
		return Resume{}, err
	}
	s.Cache.InvalidateOwner(cacheEntity, res.UserID)
	res.File = &file
	telemetry.Info("resume.file.attached", map[string]any{
		"resume_id":  res.ID,
		"user_id":    res.UserID,
		"mime_type":  file.MimeType,
		"size_bytes": file.SizeBytes,
	})
	return res, nil
}

func (s *Service) openFile(ctx context.Context, res Resume) (io.ReadCloser, FileRef, error) {
	if !res.HasFile() {
		return nil, FileRef{}, ErrFileNotUploaded
	}
	if s.Store == nil {
		return nil, FileRef{}, errors.New("object store not configured")
	}
	rc, err := s.Store.Open(ctx, res.File.Key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, FileRef{}, ErrFileNotUploaded
		}
		return nil, FileRef{}, err
	}
	return rc, *res.File, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", fmt.Errorf("%w: title must be at most %d characters", ErrInvalidInput, maxTitleLen)
	}
	return title, nil
}

func normalizeContent(content *string) *string {
	if content == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*content)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
