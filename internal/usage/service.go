package usage

import (
	"context"
	"errors"
	"time"

	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

type store interface {
	Used(ctx context.Context, userID string, kind Kind, day time.Time) (int, error)
	// Consume adds n to the counter only if the result stays within limit.
	Consume(ctx context.Context, userID string, kind Kind, day time.Time, n, limit int) (int, error)
	Reset(ctx context.Context, userID string, day time.Time) error
}

// Service enforces per-user daily quotas.
type Service struct {
	store  store
	limits Limits
	now    func() time.Time
}

// NewService constructs a Service with an in-memory store.
func NewService(limits Limits) *Service {
	return &Service{store: newMemoryStore(), limits: limits, now: time.Now}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store, limits Limits) *Service {
	return &Service{store: pgStore, limits: limits, now: time.Now}
}

// Get returns today's usage for kind.
func (s *Service) Get(ctx context.Context, userID string, kind Kind) (Usage, error) {
	day := dayOf(s.now())
	used, err := s.store.Used(ctx, userID, kind, day)
	if err != nil {
		return Usage{}, err
	}
	return s.usage(kind, day, used), nil
}

// All returns today's usage for every metered kind.
func (s *Service) All(ctx context.Context, userID string) ([]Usage, error) {
	out := make([]Usage, 0, len(s.limits))
	for _, kind := range []Kind{KindQuestionGeneration, KindVoiceSession} {
		if _, ok := s.limits[kind]; !ok {
			continue
		}
		u, err := s.Get(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Consume records n units of kind, or returns ErrLimitReached without recording anything.
func (s *Service) Consume(ctx context.Context, userID string, kind Kind, n int) (Usage, error) {
	limit, metered := s.limits[kind]
	day := dayOf(s.now())
	if !metered {
		return Usage{Kind: kind, Limit: -1, ResetsAt: day.Add(24 * time.Hour)}, nil
	}
	if n <= 0 {
		return s.Get(ctx, userID, kind)
	}
	if n > limit {
		return Usage{}, ErrLimitReached
	}
	used, err := s.store.Consume(ctx, userID, kind, day, n, limit)
	if err != nil {
		if errors.Is(err, ErrLimitReached) {
			telemetry.Warn("usage.limit_reached", map[string]any{"user_id": userID, "kind": string(kind), "limit": limit})
		}
		return Usage{}, err
	}
	return s.usage(kind, day, used), nil
}

// Reset clears today's counters for the user.
func (s *Service) Reset(ctx context.Context, userID string) error {
	return s.store.Reset(ctx, userID, dayOf(s.now()))
}

func (s *Service) usage(kind Kind, day time.Time, used int) Usage {
	return Usage{Kind: kind, Limit: s.limits[kind], Used: used, ResetsAt: day.Add(24 * time.Hour)}
}
