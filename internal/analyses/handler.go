package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/server/middleware"
	"github.com/Bill1907/prepup/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes/:id/analysis", h.startAnalysis)
	rg.GET("/resumes/:id/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

func (h *Handler) startAnalysis(c *gin.Context) {
	resumeID := c.Param("id")
	c.Set("resumeId", resumeID)
	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))

	analysis, created, err := h.Svc.Start(ctx, middleware.UserIDFromContext(c), resumeID)
	if err != nil {
		switch {
		case errors.Is(err, resumes.ErrNotFound), errors.Is(err, resumes.ErrForbidden):
			resumes.WriteError(c, err)
		case errors.Is(err, ErrNothingToAnalyze):
			respond.Error(c, http.StatusBadRequest, "validation_error", "upload a resume file or add content before requesting an analysis", nil)
		case errors.Is(err, llm.ErrNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "llm_unavailable", "analysis is not configured", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
		"created":    created,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysis, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "access to this analysis is not allowed", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	c.Set("resumeId", analysis.ResumeID)
	respond.OK(c, analysis)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	resumeID := c.Param("id")
	c.Set("resumeId", resumeID)

	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	list, err := h.Svc.ListForResume(c.Request.Context(), middleware.UserIDFromContext(c), resumeID, limit)
	if err != nil {
		switch {
		case errors.Is(err, resumes.ErrNotFound), errors.Is(err, resumes.ErrForbidden):
			resumes.WriteError(c, err)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		}
		return
	}
	respond.OK(c, gin.H{"analyses": list})
}
