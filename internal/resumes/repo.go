package resumes

import (
	"context"

	"github.com/Bill1907/prepup/internal/feedback"
)

// Repo persists resumes and their history. GetByID returns soft-deleted rows too;
// ownership and activity checks live in the service.
type Repo interface {
	Create(ctx context.Context, r Resume) error
	GetByID(ctx context.Context, id string) (Resume, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error)
	// Update appends entry and writes r only if the stored version is still entry.Version.
	Update(ctx context.Context, r Resume, entry HistoryEntry) error
	SetFile(ctx context.Context, id string, file FileRef) error
	SetFeedback(ctx context.Context, id string, fb feedback.Feedback) error
	SoftDelete(ctx context.Context, id string) error
	ListHistory(ctx context.Context, resumeID string) ([]HistoryEntry, error)
	// ReassignOwner moves every resume and history row from one user to another.
	ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int, error)
}
