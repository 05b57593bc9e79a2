package questions

import "context"

type Repo interface {
	CreateBatch(ctx context.Context, qs []Question) error
	GetByID(ctx context.Context, id string) (Question, error)
	List(ctx context.Context, userID string, f Filter) ([]Question, error)
	// ToggleBookmark flips the flag atomically and returns the new value.
	ToggleBookmark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int, error)
}
