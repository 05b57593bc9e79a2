package voicesession

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bill1907/prepup/internal/feedback"
	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/questions"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/storage/object/local"
	"github.com/Bill1907/prepup/internal/usage"
)

type fakeMinter struct {
	calls []llm.RealtimeSessionRequest
	err   error
}

func (f *fakeMinter) CreateRealtimeSession(_ context.Context, req llm.RealtimeSessionRequest) (llm.RealtimeSession, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return llm.RealtimeSession{}, f.err
	}
	return llm.RealtimeSession{
		ID:           "sess_123",
		Model:        req.Model,
		ClientSecret: "ek_abc",
		ExpiresAt:    time.Date(2026, 10, 16, 12, 1, 0, 0, time.UTC),
	}, nil
}

type fixture struct {
	svc      *Service
	minter   *fakeMinter
	resumes  *resumes.Service
	question questions.Question
	resume   resumes.Resume
}

func newFixture(t *testing.T, analyzed bool, limit int) fixture {
	t.Helper()
	ctx := context.Background()

	resumeSvc := resumes.NewService(resumes.NewMemoryRepo(), local.New(t.TempDir()), nil)
	res, err := resumeSvc.Create(ctx, "alice", resumes.CreateInput{Title: "Backend Engineer"})
	require.NoError(t, err)
	if analyzed {
		require.NoError(t, resumeSvc.SetFeedback(ctx, res.ID, feedback.Feedback{
			Summary:      "Solid distributed systems background.",
			Score:        81,
			Strengths:    []string{"Kafka pipelines"},
			Improvements: []string{"Quantify impact"},
		}))
		res, err = resumeSvc.Get(ctx, "alice", res.ID)
		require.NoError(t, err)
	}

	questionRepo := questions.NewMemoryRepo()
	q := questions.Question{
		ID:              "q-1",
		UserID:          "alice",
		ResumeID:        res.ID,
		Question:        "Tell me about a time you scaled a service.",
		Category:        "system_design",
		Difficulty:      "medium",
		SuggestedAnswer: "Describe the bottleneck, the fix and the measured result.",
		Tips:            []string{"Use numbers"},
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, questionRepo.CreateBatch(ctx, []questions.Question{q}))
	questionSvc := questions.NewService(questionRepo, resumeSvc, nil, nil, nil)

	var usageSvc *usage.Service
	if limit > 0 {
		usageSvc = usage.NewService(usage.Limits{usage.KindVoiceSession: limit})
	}
	minter := &fakeMinter{}
	svc := NewService(questionSvc, resumeSvc, minter, usageSvc, VoiceConfig{})
	return fixture{svc: svc, minter: minter, resumes: resumeSvc, question: q, resume: res}
}

func TestIssueMintsWithStaticConfig(t *testing.T) {
	f := newFixture(t, true, 0)

	session, err := f.svc.Issue(context.Background(), "alice", f.question.ID, f.resume.ID)
	require.NoError(t, err)

	assert.Equal(t, "ek_abc", session.ClientSecret)
	assert.Equal(t, "sess_123", session.SessionID)
	assert.Equal(t, f.question.ID, session.Question.ID)
	assert.Equal(t, f.resume.ID, session.Resume.ID)
	require.Len(t, session.Tools, 3)

	require.Len(t, f.minter.calls, 1)
	req := f.minter.calls[0]
	assert.Equal(t, "gpt-4o-realtime-preview-2024-12-17", req.Model)
	assert.Equal(t, "alloy", req.Voice)
	assert.Equal(t, "whisper-1", req.InputTranscriptionModel)
	assert.Equal(t, llm.TurnDetection{Type: "server_vad", Threshold: 0.5, PrefixPaddingMs: 300, SilenceDurationMs: 500}, req.TurnDetection)
	assert.Equal(t, BuildInstructions(f.question, f.resume), req.Instructions)
}

func TestIssueRequiresCompletedAnalysis(t *testing.T) {
	f := newFixture(t, false, 0)

	_, err := f.svc.Issue(context.Background(), "alice", f.question.ID, f.resume.ID)
	assert.ErrorIs(t, err, ErrAnalysisNotAvailable)
	assert.Empty(t, f.minter.calls)
}

func TestIssueOwnershipAndLookupErrors(t *testing.T) {
	f := newFixture(t, true, 0)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "", f.question.ID, f.resume.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Issue(ctx, "mallory", f.question.ID, f.resume.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Issue(ctx, "alice", "missing", f.resume.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.resumes.Delete(ctx, "alice", f.resume.ID))
	_, err = f.svc.Issue(ctx, "alice", f.question.ID, f.resume.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, f.minter.calls)
}

func TestIssueDailyQuota(t *testing.T) {
	f := newFixture(t, true, 1)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "alice", f.question.ID, f.resume.ID)
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, "alice", f.question.ID, f.resume.ID)
	assert.ErrorIs(t, err, usage.ErrLimitReached)
	assert.Len(t, f.minter.calls, 1)
}

func TestBuildInstructionsIsDeterministic(t *testing.T) {
	f := newFixture(t, true, 0)

	first := BuildInstructions(f.question, f.resume)
	assert.Equal(t, first, BuildInstructions(f.question, f.resume))
	assert.Contains(t, first, f.question.Question)
	assert.Contains(t, first, "Category: system design")
	assert.Contains(t, first, "Resume score: 81/100")
	assert.Contains(t, first, "- Quantify impact")
	assert.Contains(t, first, ToolEndInterview)
}

func TestToolsReturnsCopy(t *testing.T) {
	tools := Tools()
	tools[0].Name = "changed"
	assert.Equal(t, ToolRecordAnswerEvaluation, Tools()[0].Name)

	for _, tool := range Tools() {
		assert.True(t, json.Valid(tool.Parameters), tool.Name)
	}
}

func issueRequestTo(t *testing.T, f fixture, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if user != "" {
			c.Set("userId", user)
		}
		c.Next()
	})
	NewHandler(f.svc).RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/voice/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHandlerIssuesSession(t *testing.T) {
	f := newFixture(t, true, 0)

	resp := issueRequestTo(t, f, "alice", `{"questionId":"q-1","resumeId":"`+f.resume.ID+`"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	for _, key := range []string{"client_secret", "session_id", "expires_at", "model", "question", "resume", "tools"} {
		assert.Contains(t, body, key)
	}
}

func TestHandlerErrorStatuses(t *testing.T) {
	f := newFixture(t, false, 0)
	valid := `{"questionId":"q-1","resumeId":"` + f.resume.ID + `"}`

	assert.Equal(t, http.StatusBadRequest, issueRequestTo(t, f, "alice", `{"questionId":"q-1"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, issueRequestTo(t, f, "", valid).Code)
	assert.Equal(t, http.StatusForbidden, issueRequestTo(t, f, "mallory", valid).Code)

	resp := issueRequestTo(t, f, "alice", valid)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.JSONEq(t, `{"error":"analysis not available","code":"analysis_not_available"}`, resp.Body.String())
}

func TestHandlerPassesUpstreamStatus(t *testing.T) {
	f := newFixture(t, true, 0)
	f.minter.err = &llm.HTTPError{Provider: "openai", StatusCode: http.StatusTooManyRequests, Body: `{"error":{"message":"rate limited"}}`}

	resp := issueRequestTo(t, f, "alice", `{"questionId":"q-1","resumeId":"`+f.resume.ID+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.JSONEq(t, `{"error":"failed to create realtime session","code":"upstream_error","details":{"error":{"message":"rate limited"}}}`, resp.Body.String())
}
