package voicesession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/questions"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/metrics"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
	"github.com/Bill1907/prepup/internal/usage"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrAnalysisNotAvailable = errors.New("analysis not available")
	ErrNotConfigured        = errors.New("voice sessions are not configured")
)

// QuestionLookup returns a question owned by userID.
type QuestionLookup interface {
	Get(ctx context.Context, userID, id string) (questions.Question, error)
}

// ResumeLookup returns an active resume owned by userID.
type ResumeLookup interface {
	Get(ctx context.Context, userID, id string) (resumes.Resume, error)
}

// Session is the issued credential plus the interview context.
type Session struct {
	ClientSecret string             `json:"client_secret"`
	SessionID    string             `json:"session_id"`
	ExpiresAt    time.Time          `json:"expires_at"`
	Model        string             `json:"model"`
	Question     questions.Question `json:"question"`
	Resume       resumes.Resume     `json:"resume"`
	Tools        []llm.Tool         `json:"tools"`
}

// Service issues ephemeral realtime credentials for mock interviews. It never
// mutates persisted state apart from the daily usage counter.
type Service struct {
	Questions QuestionLookup
	Resumes   ResumeLookup
	Minter    llm.RealtimeMinter
	Usage     *usage.Service
	Voice     VoiceConfig
}

func NewService(q QuestionLookup, r ResumeLookup, minter llm.RealtimeMinter, usageSvc *usage.Service, voice VoiceConfig) *Service {
	defaults := DefaultVoiceConfig()
	if voice.Model == "" {
		voice.Model = defaults.Model
	}
	if voice.Voice == "" {
		voice.Voice = defaults.Voice
	}
	if len(voice.Modalities) == 0 {
		voice.Modalities = defaults.Modalities
	}
	if voice.InputTranscriptionModel == "" {
		voice.InputTranscriptionModel = defaults.InputTranscriptionModel
	}
	if voice.TurnDetection.Type == "" {
		voice.TurnDetection = defaults.TurnDetection
	}
	return &Service{Questions: q, Resumes: r, Minter: minter, Usage: usageSvc, Voice: voice}
}

// Issue validates ownership of the question and resume, requires a completed
// analysis, then mints a credential with the interview instructions.
func (s *Service) Issue(ctx context.Context, userID, questionID, resumeID string) (Session, error) {
	if strings.TrimSpace(userID) == "" {
		return Session{}, ErrUnauthorized
	}

	q, err := s.Questions.Get(ctx, userID, questionID)
	if err != nil {
		return Session{}, mapLookupError(err)
	}
	res, err := s.Resumes.Get(ctx, userID, resumeID)
	if err != nil {
		return Session{}, mapLookupError(err)
	}
	if !res.AnalysisAvailable() {
		return Session{}, ErrAnalysisNotAvailable
	}
	if s.Minter == nil {
		return Session{}, ErrNotConfigured
	}
	if s.Usage != nil {
		if _, err := s.Usage.Consume(ctx, userID, usage.KindVoiceSession, 1); err != nil {
			return Session{}, err
		}
	}

	minted, err := s.Minter.CreateRealtimeSession(ctx, llm.RealtimeSessionRequest{
		Model:                   s.Voice.Model,
		Voice:                   s.Voice.Voice,
		Instructions:            BuildInstructions(q, res),
		Modalities:              s.Voice.Modalities,
		InputTranscriptionModel: s.Voice.InputTranscriptionModel,
		TurnDetection:           s.Voice.TurnDetection,
		Tools:                   Tools(),
	})
	if err != nil {
		metrics.IncVoiceSession("failed")
		telemetry.Error("voice.session.mint_failed", map[string]any{
			"user_id":     userID,
			"question_id": questionID,
			"resume_id":   resumeID,
			"error":       err.Error(),
		})
		return Session{}, fmt.Errorf("mint realtime session: %w", err)
	}

	metrics.IncVoiceSession("issued")
	telemetry.Info("voice.session.issued", map[string]any{
		"user_id":     userID,
		"question_id": questionID,
		"resume_id":   resumeID,
		"session_id":  minted.ID,
		"model":       minted.Model,
	})
	return Session{
		ClientSecret: minted.ClientSecret,
		SessionID:    minted.ID,
		ExpiresAt:    minted.ExpiresAt,
		Model:        minted.Model,
		Question:     q,
		Resume:       res,
		Tools:        Tools(),
	}, nil
}

func mapLookupError(err error) error {
	switch {
	case errors.Is(err, questions.ErrNotFound), errors.Is(err, resumes.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, questions.ErrForbidden), errors.Is(err, resumes.ErrForbidden):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	return err
}
