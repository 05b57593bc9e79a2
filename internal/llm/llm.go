package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client abstracts text LLM providers used for resume feedback and question generation.
type Client interface {
	AnalyzeResume(ctx context.Context, input AnalyzeInput) (json.RawMessage, error)
	GenerateQuestions(ctx context.Context, input QuestionInput) (json.RawMessage, error)
}

// AnalyzeInput captures the inputs needed for resume analysis.
type AnalyzeInput struct {
	ResumeTitle   string
	ResumeText    string
	PromptVersion string
}

// QuestionInput captures the inputs needed for interview question generation.
type QuestionInput struct {
	ResumeTitle     string
	ResumeText      string
	FeedbackSummary string
	Count           int
	Categories      []string
	PromptVersion   string
}

var (
	// ErrTimeout marks provider calls that ran out of time.
	ErrTimeout = errors.New("llm request timeout")

	// ErrInvalidJSON is returned when a provider keeps answering with non-JSON text.
	ErrInvalidJSON = errors.New("llm returned invalid JSON")

	ErrNotConfigured = errors.New("llm provider not configured")
)

// HTTPError is a non-2xx response from a vendor API. Handlers pass StatusCode
// and Body through to callers.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s http status %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// Temporary reports whether retrying the same request may succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsTransient reports whether err is worth one more attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return false
}

// RealtimeMinter creates short-lived credentials for the realtime speech API.
type RealtimeMinter interface {
	CreateRealtimeSession(ctx context.Context, req RealtimeSessionRequest) (RealtimeSession, error)
}

type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

// Tool is a function the realtime model may call during the interview.
type Tool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type RealtimeSessionRequest struct {
	Model                   string
	Voice                   string
	Instructions            string
	Modalities              []string
	InputTranscriptionModel string
	TurnDetection           TurnDetection
	Tools                   []Tool
}

type RealtimeSession struct {
	ID           string    `json:"session_id"`
	Model        string    `json:"model"`
	ClientSecret string    `json:"client_secret"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// StripCodeFences removes markdown fences some models wrap around JSON.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
