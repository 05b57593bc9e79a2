package usage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConsumeEnforcesDailyLimit(t *testing.T) {
	svc := NewService(Limits{KindVoiceSession: 2})
	now := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		u, err := svc.Consume(ctx, "alice", KindVoiceSession, 1)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if u.Used != i || u.Remaining() != 2-i {
			t.Fatalf("unexpected usage %+v", u)
		}
	}
	if _, err := svc.Consume(ctx, "alice", KindVoiceSession, 1); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if _, err := svc.Consume(ctx, "bob", KindVoiceSession, 1); err != nil {
		t.Fatalf("other users are independent: %v", err)
	}

	now = now.Add(time.Hour)
	u, err := svc.Consume(ctx, "alice", KindVoiceSession, 1)
	if err != nil {
		t.Fatalf("expected fresh allowance next day: %v", err)
	}
	if u.Used != 1 || !u.ResetsAt.Equal(time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next-day usage %+v", u)
	}
}

func TestUnmeteredKindAlwaysPasses(t *testing.T) {
	svc := NewService(Limits{})
	for i := 0; i < 5; i++ {
		if _, err := svc.Consume(context.Background(), "alice", KindQuestionGeneration, 1); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}
}

func TestResetClearsCounters(t *testing.T) {
	svc := NewService(Limits{KindQuestionGeneration: 1, KindVoiceSession: 1})
	ctx := context.Background()
	_, _ = svc.Consume(ctx, "alice", KindQuestionGeneration, 1)
	_, _ = svc.Consume(ctx, "alice", KindVoiceSession, 1)

	if err := svc.Reset(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	all, err := svc.All(ctx, "alice")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 || all[0].Used != 0 || all[1].Used != 0 {
		t.Fatalf("unexpected usage after reset %+v", all)
	}
}
