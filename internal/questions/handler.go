package questions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/server/middleware"
	"github.com/Bill1907/prepup/internal/shared/server/respond"
	"github.com/Bill1907/prepup/internal/usage"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/questions", h.list)
	rg.GET("/questions/:id", h.get)
	rg.POST("/questions/:id/bookmark", h.toggleBookmark)
	rg.DELETE("/questions/:id", h.delete)
	rg.POST("/resumes/:id/questions/generate", h.generate)
}

type generateRequest struct {
	Count      int      `json:"count" binding:"omitempty,min=1,max=20"`
	Categories []string `json:"categories" binding:"omitempty,max=6"`
}

func (h *Handler) list(c *gin.Context) {
	f := Filter{
		ResumeID: c.Query("resumeId"),
		Category: c.Query("category"),
	}
	if v := c.Query("bookmarked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "bookmarked must be true or false", nil)
			return
		}
		f.Bookmarked = &b
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}
	list, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"questions": list})
}

func (h *Handler) get(c *gin.Context) {
	c.Set("questionId", c.Param("id"))
	q, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, q)
}

func (h *Handler) toggleBookmark(c *gin.Context) {
	c.Set("questionId", c.Param("id"))
	q, err := h.Svc.ToggleBookmark(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, q)
}

func (h *Handler) delete(c *gin.Context) {
	c.Set("questionId", c.Param("id"))
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	respond.NoContent(c)
}

func (h *Handler) generate(c *gin.Context) {
	c.Set("resumeId", c.Param("id"))
	var req generateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "count must be between 1 and 20", nil)
			return
		}
	}
	list, err := h.Svc.Generate(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), GenerateInput{
		Count:      req.Count,
		Categories: req.Categories,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, gin.H{"resumeId": c.Param("id"), "questions": list})
}

func writeError(c *gin.Context, err error) {
	var httpErr *llm.HTTPError
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "question not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "access to this question is not allowed", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrResumeUnreadable):
		respond.Error(c, http.StatusUnprocessableEntity, "resume_unreadable", err.Error(), nil)
	case errors.Is(err, usage.ErrLimitReached):
		usage.WriteLimitError(c, usage.KindQuestionGeneration)
	case errors.Is(err, llm.ErrNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "llm_unavailable", "question generation is not configured", nil)
	case errors.Is(err, llm.ErrTimeout):
		respond.Error(c, http.StatusGatewayTimeout, "llm_timeout", "question generation timed out", nil)
	case errors.Is(err, llm.ErrInvalidJSON), errors.Is(err, ErrGenerationFailed):
		respond.Error(c, http.StatusBadGateway, "llm_schema_mismatch", "question generation returned an unusable response", nil)
	case errors.As(err, &httpErr):
		respond.Error(c, http.StatusBadGateway, "llm_upstream_error", "question generation failed upstream", gin.H{"status": httpErr.StatusCode})
	case errors.Is(err, resumes.ErrNotFound), errors.Is(err, resumes.ErrForbidden), errors.Is(err, resumes.ErrFileNotUploaded):
		resumes.WriteError(c, err)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "question request failed", nil)
	}
}
