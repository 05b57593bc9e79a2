package resumes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Bill1907/prepup/internal/feedback"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	resumes map[string]Resume
	history map[string][]HistoryEntry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		resumes: make(map[string]Resume),
		history: make(map[string][]HistoryEntry),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, res Resume) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumes[res.ID] = clone(res)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	if err := ctx.Err(); err != nil {
		return Resume{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resumes[id]
	if !ok {
		return Resume{}, ErrNotFound
	}
	return clone(res), nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Resume
	for _, res := range r.resumes {
		if res.UserID == userID && res.IsActive {
			out = append(out, clone(res))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Resume{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Update(ctx context.Context, res Resume, entry HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.resumes[res.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != entry.Version {
		return ErrConflict
	}
	r.history[res.ID] = append(r.history[res.ID], entry)
	r.resumes[res.ID] = clone(res)
	return nil
}

func (r *MemoryRepo) SetFile(ctx context.Context, id string, file FileRef) error {
	return r.mutate(ctx, id, func(res *Resume) {
		f := file
		res.File = &f
	})
}

func (r *MemoryRepo) SetFeedback(ctx context.Context, id string, fb feedback.Feedback) error {
	return r.mutate(ctx, id, func(res *Resume) {
		f := fb
		score := fb.Score
		res.Feedback = &f
		res.Score = &score
	})
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(res *Resume) {
		res.IsActive = false
	})
}

func (r *MemoryRepo) ListHistory(ctx context.Context, resumeID string) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.history[resumeID]
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (r *MemoryRepo) ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	moved := 0
	for id, res := range r.resumes {
		if res.UserID != fromUserID {
			continue
		}
		res.UserID = toUserID
		r.resumes[id] = res
		moved++
		for i := range r.history[id] {
			r.history[id][i].UserID = toUserID
		}
	}
	return moved, nil
}

func (r *MemoryRepo) mutate(ctx context.Context, id string, fn func(*Resume)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resumes[id]
	if !ok {
		return ErrNotFound
	}
	fn(&res)
	res.UpdatedAt = time.Now().UTC()
	r.resumes[id] = res
	return nil
}

func clone(r Resume) Resume {
	out := r
	out.Content = copyString(r.Content)
	out.Score = copyInt(r.Score)
	if r.File != nil {
		f := *r.File
		out.File = &f
	}
	if r.Feedback != nil {
		fb := *r.Feedback
		fb.Strengths = append([]string(nil), r.Feedback.Strengths...)
		fb.Improvements = append([]string(nil), r.Feedback.Improvements...)
		out.Feedback = &fb
	}
	return out
}
