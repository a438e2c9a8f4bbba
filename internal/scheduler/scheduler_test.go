package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/i474232898/soarbot/internal/soaring"
)

type fakeRunner struct {
	calls   chan context.Context
	block   bool
	err     error
	sources []soaring.SubscriberSource
}

func (f *fakeRunner) Run(ctx context.Context, source soaring.SubscriberSource, now time.Time) (soaring.RunMetrics, error) {
	f.sources = append(f.sources, source)
	if f.calls != nil {
		f.calls <- ctx
	}
	m := soaring.NewRunMetrics("run", now)
	if f.block {
		<-ctx.Done()
		m.Success = false
		m.ErrorMessage = ctx.Err().Error()
	}
	return m, f.err
}

type noSubscribers struct{}

func (noSubscribers) Subscribers(context.Context) ([]soaring.Subscriber, error) { return nil, nil }

func TestRunOnceAppliesDeadline(t *testing.T) {
	runner := &fakeRunner{block: true}
	s := New(Config{Timeout: 20 * time.Millisecond}, runner, noSubscribers{}, nil)

	start := time.Now()
	m, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Success {
		t.Fatalf("expected failed run after deadline")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("deadline not applied, took %v", elapsed)
	}
	if len(runner.sources) != 1 {
		t.Fatalf("expected the configured source to be passed through")
	}
}

func TestRunOncePropagatesError(t *testing.T) {
	runner := &fakeRunner{err: soaring.ErrConfig}
	s := New(Config{}, runner, noSubscribers{}, nil)
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, soaring.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestStartRunsImmediately(t *testing.T) {
	runner := &fakeRunner{calls: make(chan context.Context, 4)}
	s := New(Config{Interval: time.Hour, Timeout: time.Second}, runner, noSubscribers{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	select {
	case runCtx := <-runner.calls:
		if _, ok := runCtx.Deadline(); !ok {
			t.Fatalf("cycle context has no deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first cycle did not run")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	s := New(Config{Cron: "not a cron"}, &fakeRunner{}, noSubscribers{}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}
