package uploads

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Bill1907/prepup/internal/shared/server/middleware"
	"github.com/Bill1907/prepup/internal/shared/server/respond"
	"github.com/Bill1907/prepup/internal/shared/storage/object"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
	"github.com/Bill1907/prepup/internal/shared/util"
)

const (
	maxUploadBytes = 5 << 20
	presignExpires = 15 * time.Minute
)

// Handler issues presigned URLs for direct resume uploads. The returned key
// is attached afterwards through POST /resumes/:id/file/from-s3.
type Handler struct {
	presigner object.Presigner
}

// NewHandler returns a handler; a nil presigner answers 501.
func NewHandler(p object.Presigner) *Handler {
	return &Handler{presigner: p}
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	Key              string `json:"key"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if !util.AllowedResumeMime(req.ContentType) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}
	if h.presigner == nil {
		respond.Error(c, http.StatusNotImplemented, "uploads_not_configured", "direct uploads are not configured", nil)
		return
	}

	up, err := h.presigner.PresignPut(c.Request.Context(), middleware.UserIDFromContext(c), req.FileName, presignExpires)
	if err != nil {
		if errors.Is(err, object.ErrPresignUnsupported) {
			respond.Error(c, http.StatusNotImplemented, "uploads_not_configured", "direct uploads are not configured", nil)
			return
		}
		telemetry.Error("uploads.presign.failed", map[string]any{
			"err":         err.Error(),
			"contentType": req.ContentType,
			"sizeBytes":   req.SizeBytes,
			"request_id":  c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.OK(c, presignResponse{
		UploadURL:        up.URL,
		Key:              up.Key,
		ExpiresInSeconds: int64(up.ExpiresIn.Seconds()),
	})
}
