package resumes

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Bill1907/prepup/internal/feedback"
	"github.com/Bill1907/prepup/internal/shared/server/middleware"
	"github.com/Bill1907/prepup/internal/shared/server/respond"
)

const maxUploadSize = 10 << 20 // 10MB

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes", h.create)
	rg.GET("/resumes", h.list)
	rg.GET("/resumes/:id", h.get)
	rg.PATCH("/resumes/:id", h.update)
	rg.DELETE("/resumes/:id", h.delete)
	rg.GET("/resumes/:id/history", h.history)
	rg.POST("/resumes/:id/file", h.uploadFile)
	rg.POST("/resumes/:id/file/from-s3", h.attachFromS3)
	rg.GET("/resumes/:id/file", h.downloadFile)
}

type createRequest struct {
	Title   string  `json:"title" binding:"required,max=200"`
	Content *string `json:"content"`
}

type updateRequest struct {
	Title        *string `json:"title" binding:"omitempty,max=200"`
	Content      *string `json:"content"`
	ChangeReason string  `json:"changeReason" binding:"max=500"`
}

type attachRequest struct {
	S3Key            string `json:"s3Key" binding:"required"`
	OriginalFileName string `json:"originalFileName"`
}

type historyResponse struct {
	ResumeID string         `json:"resumeId"`
	Entries  []HistoryEntry `json:"entries"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "title is required and must be at most 200 characters", nil)
		return
	}
	res, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), CreateInput{Title: req.Title, Content: req.Content})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("resumeId", res.ID)
	respond.Created(c, res)
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	list, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"resumes": list})
}

func (h *Handler) get(c *gin.Context) {
	c.Set("resumeId", c.Param("id"))
	res, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) update(c *gin.Context) {
	c.Set("resumeId", c.Param("id"))
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, err := h.Svc.Update(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), UpdateInput{
		Title:        req.Title,
		Content:      req.Content,
		ChangeReason: req.ChangeReason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) delete(c *gin.Context) {
	c.Set("resumeId", c.Param("id"))
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	respond.NoContent(c)
}

func (h *Handler) history(c *gin.Context) {
	c.Set("resumeId", c.Param("id"))
	entries, err := h.Svc.History(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, historyResponse{ResumeID: c.Param("id"), Entries: entries})
}

func (h *Handler) uploadFile(c *gin.Context) {
	c.Set("resumeId", c.Param("id"))
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required and must be at most 10MB", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	res, err := h.Svc.UploadFile(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), fileHeader.Filename, file)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) attachFromS3(c *gin.Context) {
	c.Set("resumeId", c.Param("id"))
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "s3Key is required", nil)
		return
	}
	res, err := h.Svc.AttachUploadedFile(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), req.S3Key, req.OriginalFileName)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) downloadFile(c *gin.Context) {
	c.Set("resumeId", c.Param("id"))
	rc, file, err := h.Svc.OpenFile(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", "attachment; filename=\""+file.Name+"\"")
	c.Header("Content-Type", file.MimeType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		_ = c.Error(err)
	}
}

// WriteError maps resume errors to HTTP responses. Other packages reuse it for
// resume lookups done on their behalf.
func WriteError(c *gin.Context, err error) {
	writeError(c, err)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "access to this resume is not allowed", nil)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, feedback.ErrInvalid):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrFileNotUploaded):
		respond.Error(c, http.StatusBadRequest, "file_not_uploaded", ErrFileNotUploaded.Error(), nil)
	case errors.Is(err, ErrUnsupportedFile):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_file", err.Error(), nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "resume request failed", nil)
	}
}
