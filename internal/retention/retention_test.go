package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/LeventeLantos/turn-relay/internal/model"
)

type purgeCall struct {
	q      model.Queue
	before time.Time
}

type fakePurger struct {
	calls []purgeCall
	n     int64
	errOn model.Queue
}

func (f *fakePurger) PurgeTerminal(_ context.Context, q model.Queue, before time.Time) (int64, error) {
	f.calls = append(f.calls, purgeCall{q: q, before: before})
	if q == f.errOn {
		return 0, errors.New("db down")
	}
	return f.n, nil
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, Config{Cron: "0 3 * * *", MaxAge: time.Hour}, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := New(&fakePurger{}, Config{Cron: "not a cron", MaxAge: time.Hour}, nil); err == nil {
		t.Fatalf("expected error for invalid cron")
	}
	if _, err := New(&fakePurger{}, Config{Cron: "0 3 * * *"}, nil); err == nil {
		t.Fatalf("expected error for zero max age")
	}
}

func TestRunOnce_PurgesBothQueues(t *testing.T) {
	t.Parallel()

	store := &fakePurger{n: 3}
	s, err := New(store, Config{Cron: "0 3 * * *", MaxAge: 14 * 24 * time.Hour}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	now := time.Date(2026, 3, 20, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6 purged rows, got %d", n)
	}
	if len(store.calls) != 2 || store.calls[0].q != model.TurnQueue || store.calls[1].q != model.CommandQueue {
		t.Fatalf("unexpected calls %+v", store.calls)
	}
	want := now.Add(-14 * 24 * time.Hour)
	if !store.calls[0].before.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, store.calls[0].before)
	}
}

func TestRunOnce_ContinuesAfterQueueError(t *testing.T) {
	t.Parallel()

	store := &fakePurger{n: 2, errOn: model.TurnQueue}
	s, err := New(store, Config{Cron: "@daily", MaxAge: time.Hour}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	n, err := s.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if n != 2 || len(store.calls) != 2 {
		t.Fatalf("expected command queue to still be purged, n=%d calls=%d", n, len(store.calls))
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	s, err := New(&fakePurger{}, Config{Cron: "0 3 * * *", MaxAge: time.Hour}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
}
