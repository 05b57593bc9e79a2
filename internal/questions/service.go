package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Bill1907/prepup/internal/cache"
	"github.com/Bill1907/prepup/internal/extract"
	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/metrics"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
	"github.com/Bill1907/prepup/internal/usage"
)

const (
	cacheEntity   = "question"
	maxListLimit  = 100
	promptVersion = "questions_v1"
)

// ResumeReader is the slice of the resume service that question generation needs.
type ResumeReader interface {
	Get(ctx context.Context, userID, id string) (resumes.Resume, error)
	ReadFile(ctx context.Context, res resumes.Resume) (io.ReadCloser, resumes.FileRef, error)
}

type Service struct {
	Repo    Repo
	Resumes ResumeReader
	LLM     llm.Client
	Usage   *usage.Service
	Cache   cache.Cache
	Now     func() time.Time

	validate *validator.Validate
}

func NewService(repo Repo, resumeReader ResumeReader, client llm.Client, usageSvc *usage.Service, c cache.Cache) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		Repo:     repo,
		Resumes:  resumeReader,
		LLM:      client,
		Usage:    usageSvc,
		Cache:    c,
		Now:      time.Now,
		validate: validator.New(),
	}
}

// Get returns a question owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (Question, error) {
	key := cache.Key{Entity: cacheEntity, Owner: userID, ID: id}
	var cached Question
	if ok, err := s.Cache.Get(key, &cached); err == nil && ok {
		return cached, nil
	}
	q, err := s.load(ctx, userID, id)
	if err != nil {
		return Question{}, err
	}
	_ = s.Cache.Set(key, q)
	return q, nil
}

func (s *Service) List(ctx context.Context, userID string, f Filter) ([]Question, error) {
	if f.Category != "" {
		f.Category = NormalizeCategory(f.Category)
		if !validCategory(f.Category) {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, f.Category)
		}
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	key := cache.Key{Entity: cacheEntity, Owner: userID, ID: f.cacheID()}
	var cached []Question
	if ok, err := s.Cache.Get(key, &cached); err == nil && ok {
		return cached, nil
	}
	list, err := s.Repo.List(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.Set(key, list)
	return list, nil
}

// ToggleBookmark flips the bookmark flag and returns the updated question.
func (s *Service) ToggleBookmark(ctx context.Context, userID, id string) (Question, error) {
	q, err := s.load(ctx, userID, id)
	if err != nil {
		return Question{}, err
	}
	bookmarked, err := s.Repo.ToggleBookmark(ctx, id)
	if err != nil {
		return Question{}, err
	}
	s.Cache.InvalidateOwner(cacheEntity, userID)
	q.IsBookmarked = bookmarked
	return q, nil
}

// Delete removes the question permanently.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Cache.InvalidateOwner(cacheEntity, userID)
	return nil
}

// ClaimGuest moves guest-owned questions to userID.
func (s *Service) ClaimGuest(ctx context.Context, guestID, userID string) (int, error) {
	moved, err := s.Repo.ReassignOwner(ctx, guestID, userID)
	if err != nil {
		return 0, err
	}
	s.Cache.InvalidateOwner(cacheEntity, guestID)
	s.Cache.InvalidateOwner(cacheEntity, userID)
	return moved, nil
}

// Generate asks the model for interview questions about an owned resume and
// stores the valid ones. A resume without an uploaded file fails with
// resumes.ErrFileNotUploaded before any model call.
func (s *Service) Generate(ctx context.Context, userID, resumeID string, in GenerateInput) ([]Question, error) {
	res, err := s.Resumes.Get(ctx, userID, resumeID)
	if err != nil {
		return nil, err
	}
	if !res.HasFile() {
		return nil, resumes.ErrFileNotUploaded
	}

	categories, err := normalizeCategories(in.Categories)
	if err != nil {
		return nil, err
	}
	if in.Count < 0 || in.Count > llm.MaxQuestionCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, llm.MaxQuestionCount)
	}
	if s.LLM == nil {
		return nil, llm.ErrNotConfigured
	}
	if s.Usage != nil {
		if _, err := s.Usage.Consume(ctx, userID, usage.KindQuestionGeneration, 1); err != nil {
			return nil, err
		}
	}

	text, err := s.resumeText(ctx, res)
	if err != nil {
		return nil, err
	}

	input := llm.QuestionInput{
		ResumeTitle:   res.Title,
		ResumeText:    text,
		Count:         in.Count,
		Categories:    categories,
		PromptVersion: promptVersion,
	}
	if res.Feedback != nil {
		input.FeedbackSummary = res.Feedback.Summary
	}

	start := time.Now()
	raw, err := s.LLM.GenerateQuestions(ctx, input)
	if err != nil {
		telemetry.Error("questions.generate.failed", map[string]any{"resume_id": resumeID, "user_id": userID, "error": err})
		return nil, err
	}

	now := s.now()
	generated, dropped, err := s.parseGenerated(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(generated))
	for i, g := range generated {
		out = append(out, Question{
			ID:              uuid.NewString(),
			UserID:          userID,
			ResumeID:        resumeID,
			Question:        g.Question,
			Category:        g.Category,
			Difficulty:      g.Difficulty,
			SuggestedAnswer: g.SuggestedAnswer,
			Tips:            nonNilTips(g.Tips),
			// keep model order stable under created_at DESC sorting
			CreatedAt: now.Add(-time.Duration(i) * time.Microsecond),
		})
	}
	if err := s.Repo.CreateBatch(ctx, out); err != nil {
		return nil, err
	}
	s.Cache.InvalidateOwner(cacheEntity, userID)
	metrics.AddQuestionsGenerated(len(out))
	telemetry.Info("questions.generated", map[string]any{
		"resume_id":   resumeID,
		"user_id":     userID,
		"count":       len(out),
		"dropped":     dropped,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return out, nil
}

type generatedQuestion struct {
	Question        string   `json:"question" validate:"required"`
	Category        string   `json:"category" validate:"omitempty,oneof=behavioral technical system_design leadership problem_solving company_specific"`
	Difficulty      string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	SuggestedAnswer string   `json:"suggestedAnswer"`
	Tips            []string `json:"tips" validate:"omitempty,dive,required"`
}

type generatedPayload struct {
	Questions []generatedQuestion `json:"questions"`
}

// parseGenerated drops items that fail validation and fails only when none survive.
func (s *Service) parseGenerated(raw json.RawMessage) ([]generatedQuestion, int, error) {
	var payload generatedPayload
	if err := json.Unmarshal([]byte(llm.StripCodeFences(string(raw))), &payload); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", llm.ErrInvalidJSON, err)
	}
	valid := make([]generatedQuestion, 0, len(payload.Questions))
	dropped := 0
	for _, g := range payload.Questions {
		g.Question = strings.TrimSpace(g.Question)
		g.Category = NormalizeCategory(g.Category)
		g.Difficulty = strings.ToLower(strings.TrimSpace(g.Difficulty))
		g.SuggestedAnswer = strings.TrimSpace(g.SuggestedAnswer)
		for i := range g.Tips {
			g.Tips[i] = strings.TrimSpace(g.Tips[i])
		}
		if err := s.validator().Struct(g); err != nil {
			dropped++
			telemetry.Warn("questions.item.invalid", map[string]any{"error": err.Error()})
			continue
		}
		valid = append(valid, g)
	}
	if len(valid) == 0 {
		return nil, dropped, ErrGenerationFailed
	}
	return valid, dropped, nil
}

func (s *Service) resumeText(ctx context.Context, res resumes.Resume) (string, error) {
	rc, file, err := s.Resumes.ReadFile(ctx, res)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	text, err := extract.Text(ctx, rc, file.MimeType, file.Name)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrResumeUnreadable, err)
	}
	return text, nil
}

func (s *Service) load(ctx context.Context, userID, id string) (Question, error) {
	if strings.TrimSpace(id) == "" {
		return Question{}, ErrNotFound
	}
	q, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Question{}, err
	}
	if q.UserID != userID {
		return Question{}, ErrForbidden
	}
	return q, nil
}

func (s *Service) validator() *validator.Validate {
	if s.validate == nil {
		s.validate = validator.New()
	}
	return s.validate
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func normalizeCategories(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := map[string]bool{}
	for _, c := range raw {
		c = NormalizeCategory(c)
		if c == "" || seen[c] {
			continue
		}
		if !validCategory(c) {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, c)
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
