package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Bill1907/prepup/internal/extract"
	"github.com/Bill1907/prepup/internal/feedback"
	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/queue"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/metrics"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

const defaultPromptVersion = "analyze_v1"

// ResumeStore is what the analysis pipeline needs from the resume service.
type ResumeStore interface {
	Get(ctx context.Context, userID, id string) (resumes.Resume, error)
	Lookup(ctx context.Context, id string) (resumes.Resume, error)
	ReadFile(ctx context.Context, res resumes.Resume) (io.ReadCloser, resumes.FileRef, error)
	SetFeedback(ctx context.Context, id string, fb feedback.Feedback) error
}

// Service contains business logic for analyses.
type Service struct {
	Repo     Repo
	Resumes  ResumeStore
	LLM      llm.Client
	Queue    queue.Client
	Provider string
	Model    string

	RetryDelay time.Duration
	Now        func() time.Time
}

// Start queues an analysis of an owned resume. An analysis already in flight
// for the resume is returned instead of starting a second one.
func (s *Service) Start(ctx context.Context, userID, resumeID string) (Analysis, bool, error) {
	res, err := s.Resumes.Get(ctx, userID, resumeID)
	if err != nil {
		return Analysis{}, false, err
	}
	if !res.HasFile() && (res.Content == nil || strings.TrimSpace(*res.Content) == "") {
		return Analysis{}, false, ErrNothingToAnalyze
	}
	if s.Queue == nil && s.LLM == nil {
		return Analysis{}, false, llm.ErrNotConfigured
	}

	if existing, err := s.Repo.ListByResume(ctx, resumeID, 1); err != nil {
		return Analysis{}, false, err
	} else if len(existing) == 1 && existing[0].InFlight() {
		return existing[0], false, nil
	}

	analysis := Analysis{
		ID:            uuid.NewString(),
		ResumeID:      resumeID,
		UserID:        userID,
		Provider:      normalizeProvider(s.Provider),
		Model:         s.Model,
		PromptVersion: defaultPromptVersion,
		Status:        StatusQueued,
		CreatedAt:     s.now(),
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, false, err
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"user_id":     userID,
		"resume_id":   resumeID,
		"analysis_id": analysis.ID,
		"status":      StatusQueued,
	})

	if s.Queue != nil {
		msg := queue.Message{
			AnalysisID: analysis.ID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: analysis.CreatedAt.Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			s.fail(ctx, analysis, storageErr(fmt.Errorf("enqueue: %w", err)), nil)
			return Analysis{}, false, fmt.Errorf("enqueue analysis: %w", err)
		}
		return analysis, true, nil
	}

	go s.completeAsync(backgroundWithRequestID(ctx), analysis.ID)
	return analysis, true, nil
}

// Get returns an analysis owned by userID.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if strings.TrimSpace(analysisID) == "" {
		return Analysis{}, ErrNotFound
	}
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.UserID != userID {
		return Analysis{}, ErrForbidden
	}
	return a, nil
}

// ListForResume returns the analysis history of an owned resume, newest first.
func (s *Service) ListForResume(ctx context.Context, userID, resumeID string, limit int) ([]Analysis, error) {
	if _, err := s.Resumes.Get(ctx, userID, resumeID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.Repo.ListByResume(ctx, resumeID, limit)
}

// ClaimGuest moves guest-owned analysis jobs to userID.
func (s *Service) ClaimGuest(ctx context.Context, guestID, userID string) (int, error) {
	return s.Repo.ReassignOwner(ctx, guestID, userID)
}

func (s *Service) completeAsync(ctx context.Context, analysisID string) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, Analysis{ID: analysisID}, fmt.Errorf("panic: %v", r), nil)
		}
	}()
	_ = s.ProcessAnalysis(ctx, analysisID)
}

// ProcessAnalysis runs a queued job to completion: text extraction, the model
// call, feedback validation and storage. Failures are recorded on the job and
// returned. Completed jobs are left alone so redelivered messages are harmless.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) error {
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("analysis lookup: %w", err)
	}
	if analysis.Status == StatusCompleted {
		return nil
	}

	startedAt := s.now()
	if err := s.Repo.UpdateStatus(ctx, analysisID, StatusUpdate{Status: StatusProcessing, StartedAt: &startedAt}); err != nil {
		return s.fail(ctx, analysis, storageErr(fmt.Errorf("set processing: %w", err)), &startedAt)
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"resume_id":         analysis.ResumeID,
		"analysis_id":       analysis.ID,
		"status":            StatusProcessing,
		"status_transition": analysis.Status + "->processing",
	})

	if s.LLM == nil {
		return s.fail(ctx, analysis, llm.ErrNotConfigured, &startedAt)
	}

	res, err := s.Resumes.Lookup(ctx, analysis.ResumeID)
	if err != nil {
		return s.fail(ctx, analysis, storageErr(fmt.Errorf("resume lookup id=%s: %w", analysis.ResumeID, err)), &startedAt)
	}
	text, err := s.resumeText(ctx, res)
	if err != nil {
		return s.fail(ctx, analysis, err, &startedAt)
	}

	client := newRetryingLLM(s.LLM, s.RetryDelay, analysisID, requestIDFromContext(ctx))
	raw, err := client.AnalyzeResume(ctx, llm.AnalyzeInput{
		ResumeTitle:   res.Title,
		ResumeText:    text,
		PromptVersion: analysis.PromptVersion,
	})
	if err != nil {
		return s.fail(ctx, analysis, fmt.Errorf("llm analyze: %w", err), &startedAt)
	}

	fb, err := feedback.Parse([]byte(llm.StripCodeFences(string(raw))))
	if err != nil {
		return s.fail(ctx, analysis, fmt.Errorf("llm output invalid: %w", err), &startedAt)
	}
	if err := s.Resumes.SetFeedback(ctx, res.ID, fb); err != nil {
		return s.fail(ctx, analysis, storageErr(fmt.Errorf("store feedback: %w", err)), &startedAt)
	}

	completedAt := s.now()
	if err := s.Repo.UpdateStatus(ctx, analysisID, StatusUpdate{Status: StatusCompleted, CompletedAt: &completedAt}); err != nil {
		return s.fail(ctx, analysis, storageErr(fmt.Errorf("set completed: %w", err)), &startedAt)
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"resume_id":         analysis.ResumeID,
		"analysis_id":       analysis.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"score":             fb.Score,
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return nil
}

func (s *Service) resumeText(ctx context.Context, res resumes.Resume) (string, error) {
	if res.HasFile() {
		rc, file, err := s.Resumes.ReadFile(ctx, res)
		if err != nil {
			return "", storageErr(fmt.Errorf("open resume file: %w", err))
		}
		defer rc.Close()
		text, err := extract.Text(ctx, rc, file.MimeType, file.Name)
		if err != nil {
			return "", validationErr(err)
		}
		return text, nil
	}
	if res.Content != nil && strings.TrimSpace(*res.Content) != "" {
		return strings.TrimSpace(*res.Content), nil
	}
	return "", ErrNothingToAnalyze
}

func (s *Service) fail(ctx context.Context, analysis Analysis, err error, startedAt *time.Time) error {
	code := classifyFailure(err)
	msg := sanitizeError(err)
	completedAt := s.now()
	// the job must be marked even when the caller's context is already done
	update := StatusUpdate{Status: StatusFailed, ErrorCode: code, ErrorMessage: msg, CompletedAt: &completedAt}
	if updateErr := s.Repo.UpdateStatus(context.WithoutCancel(ctx), analysis.ID, update); updateErr != nil {
		telemetry.Error("analysis.fail.update_failed", map[string]any{
			"analysis_id": analysis.ID,
			"error":       updateErr.Error(),
			"cause":       msg,
		})
	}
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Error("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"resume_id":         analysis.ResumeID,
		"analysis_id":       analysis.ID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"error":             msg,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
	if err == nil {
		err = errors.New("analysis failed")
	}
	return err
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func normalizeProvider(provider string) string {
	if strings.TrimSpace(provider) == "" {
		return "openai"
	}
	return provider
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
