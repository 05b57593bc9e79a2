package resumes

import (
	"time"

	"github.com/Bill1907/prepup/internal/feedback"
)

const maxTitleLen = 200

// FileRef points at the uploaded resume document in object storage.
type FileRef struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

type Resume struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Title     string             `json:"title"`
	Content   *string            `json:"content"`
	Version   int                `json:"version"`
	IsActive  bool               `json:"isActive"`
	File      *FileRef           `json:"file"`
	Feedback  *feedback.Feedback `json:"feedback"`
	Score     *int               `json:"score"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (r Resume) HasFile() bool {
	return r.File != nil && r.File.Key != ""
}

// AnalysisAvailable reports whether AI feedback has completed for this resume.
func (r Resume) AnalysisAvailable() bool {
	return r.Score != nil && r.Feedback.Complete()
}

// HistoryEntry is an immutable snapshot of a resume taken before an edit.
type HistoryEntry struct {
	ID           string             `json:"id"`
	ResumeID     string             `json:"resumeId"`
	UserID       string             `json:"userId"`
	Title        string             `json:"title"`
	Content      *string            `json:"content"`
	Version      int                `json:"version"`
	FileKey      string             `json:"fileKey,omitempty"`
	Feedback     *feedback.Feedback `json:"feedback"`
	Score        *int               `json:"score"`
	ChangeReason string             `json:"changeReason,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func snapshot(r Resume, id, reason string, at time.Time) HistoryEntry {
	entry := HistoryEntry{
		ID:           id,
		ResumeID:     r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		Content:      copyString(r.Content),
		Version:      r.Version,
		Score:        copyInt(r.Score),
		ChangeReason: reason,
		CreatedAt:    at,
	}
	if r.File != nil {
		entry.FileKey = r.File.Key
	}
	if r.Feedback != nil {
		fb := *r.Feedback
		entry.Feedback = &fb
	}
	return entry
}

type CreateInput struct {
	Title   string
	Content *string
}

// UpdateInput carries a partial edit. Nil fields are left unchanged.
type UpdateInput struct {
	Title        *string
	Content      *string
	ChangeReason string
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
