package usage

import (
	"context"
	"sync"
	"time"
)

type counterKey struct {
	userID string
	kind   Kind
	day    time.Time
}

type memoryStore struct {
	mu   sync.Mutex
	data map[counterKey]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[counterKey]int)}
}

func (s *memoryStore) Used(ctx context.Context, userID string, kind Kind, day time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[counterKey{userID, kind, day}], nil
}

func (s *memoryStore) Consume(ctx context.Context, userID string, kind Kind, day time.Time, n, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{userID, kind, day}
	used := s.data[key]
	if used+n > limit {
		return 0, ErrLimitReached
	}
	used += n
	s.data[key] = used
	return used, nil
}

func (s *memoryStore) Reset(ctx context.Context, userID string, day time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.data {
		if key.userID == userID && key.day.Equal(day) {
			delete(s.data, key)
		}
	}
	return nil
}
