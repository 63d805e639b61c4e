package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	ticks := 0

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, ts time.Time) error {
			mu.Lock()
			ticks++
			n := ticks
			mu.Unlock()
			if n >= 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop within one tick boundary")
	}

	mu.Lock()
	defer mu.Unlock()
	if ticks < 3 {
		t.Fatalf("expected at least 3 ticks before cancel, got %d", ticks)
	}
}

func TestRunContinuesPastTickErrors(t *testing.T) {
	s := New(Options{Interval: time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stamps []time.Time
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, ts time.Time) error {
			stamps = append(stamps, ts)
			if len(stamps) >= 5 {
				cancel()
			}
			return errors.New("tick failed")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stalled")
	}

	if len(stamps) < 5 {
		t.Fatalf("tick errors must not terminate the loop, got %d ticks", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if stamps[i].Before(stamps[i-1]) {
			t.Fatalf("tick timestamps must be non-decreasing: %v before %v", stamps[i], stamps[i-1])
		}
	}
}

func TestRunHonoursStartupDelayCancellation(t *testing.T) {
	s := New(Options{Interval: time.Millisecond, StartupDelay: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, ts time.Time) error {
			t.Error("tick must not run during startup delay")
			return nil
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation during startup delay did not take effect")
	}
}

func TestNewPanicsOnNonPositiveInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero interval")
		}
	}()
	New(Options{}, zerolog.Nop())
}
