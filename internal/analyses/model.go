package analyses

import "time"

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis tracks one asynchronous run that produces AI feedback for a resume.
type Analysis struct {
	ID            string     `json:"id"`
	ResumeID      string     `json:"resumeId"`
	UserID        string     `json:"userId"`
	Provider      string     `json:"provider"`
	Model         string     `json:"model,omitempty"`
	PromptVersion string     `json:"promptVersion"`
	Status        string     `json:"status"`
	ErrorCode     string     `json:"errorCode,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// InFlight reports whether the job has not reached a terminal status.
func (a Analysis) InFlight() bool {
	return a.Status == StatusQueued || a.Status == StatusProcessing
}

// StatusUpdate carries a status transition. Nil timestamps leave the stored value untouched.
type StatusUpdate struct {
	Status       string
	ErrorCode    string
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}
