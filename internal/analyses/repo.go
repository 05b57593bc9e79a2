package analyses

import "context"

// Repo defines persistence operations for analysis jobs.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	UpdateStatus(ctx context.Context, analysisID string, update StatusUpdate) error
	// ListByResume returns jobs newest first.
	ListByResume(ctx context.Context, resumeID string, limit int) ([]Analysis, error)
	ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int, error)
}
