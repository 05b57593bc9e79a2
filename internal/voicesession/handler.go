package voicesession

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/shared/server/middleware"
	"github.com/Bill1907/prepup/internal/shared/server/respond"
	"github.com/Bill1907/prepup/internal/usage"
)

type Handler struct {
	Svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/voice/session", h.issue)
}

type issueRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	ResumeID   string `json:"resumeId" validate:"required"`
}

func (h *Handler) issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.QuestionID = strings.TrimSpace(req.QuestionID)
	req.ResumeID = strings.TrimSpace(req.ResumeID)
	if err := h.validate.Struct(req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "questionId and resumeId are required", fieldErrors(err))
		return
	}
	c.Set("questionId", req.QuestionID)
	c.Set("resumeId", req.ResumeID)

	session, err := h.Svc.Issue(c.Request.Context(), middleware.UserIDFromContext(c), req.QuestionID, req.ResumeID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, session)
}

func writeError(c *gin.Context, err error) {
	var httpErr *llm.HTTPError
	switch {
	case errors.Is(err, ErrUnauthorized):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Unauthorized", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "question or resume not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "access to this question or resume is not allowed", nil)
	case errors.Is(err, ErrAnalysisNotAvailable):
		respond.Error(c, http.StatusBadRequest, "analysis_not_available", "analysis not available", nil)
	case errors.Is(err, usage.ErrLimitReached):
		usage.WriteLimitError(c, usage.KindVoiceSession)
	case errors.Is(err, ErrNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "voice_unavailable", "voice sessions are not configured", nil)
	case errors.As(err, &httpErr) && httpErr.StatusCode >= 400:
		respond.Error(c, httpErr.StatusCode, "upstream_error", "failed to create realtime session", upstreamDetails(httpErr.Body))
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create realtime session", nil)
	}
}

// upstreamDetails keeps JSON vendor bodies structured in the error response.
func upstreamDetails(body string) any {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	return body
}

func fieldErrors(err error) []map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, map[string]string{"field": fe.Field(), "issue": fe.Tag()})
	}
	return out
}
