package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"driver-console/internal/general/logger"
)

func TestStartReplacesTimerForSameKey(t *testing.T) {
	s := NewScheduler(logger.New("poll-test"))
	defer s.StopAll()

	var old, cur atomic.Int64
	ctx := context.Background()

	s.Start(ctx, "jobs", 10*time.Millisecond, func(ctx context.Context) error {
		old.Add(1)
		return nil
	})
	s.Start(ctx, "jobs", 10*time.Millisecond, func(ctx context.Context) error {
		cur.Add(1)
		return nil
	})

	time.Sleep(100 * time.Millisecond)

	if got := s.Active(); len(got) != 1 || got[0] != "jobs" {
		t.Errorf("Active = %v, want exactly [jobs]", got)
	}
	if old.Load() > 1 {
		// at most one tick could have squeezed in before replacement
		t.Errorf("replaced timer kept ticking: %d", old.Load())
	}
	if cur.Load() == 0 {
		t.Error("replacement timer never ticked")
	}
}

func TestStopAllLeavesNoTimers(t *testing.T) {
	s := NewScheduler(logger.New("poll-test"))

	var ticks atomic.Int64
	ctx := context.Background()
	for _, key := range []string{"approvals", "jobs", "posts"} {
		s.Start(ctx, key, 10*time.Millisecond, func(ctx context.Context) error {
			ticks.Add(1)
			return nil
		})
	}

	time.Sleep(50 * time.Millisecond)
	s.StopAll()

	if got := s.Active(); len(got) != 0 {
		t.Errorf("Active after StopAll = %v", got)
	}

	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if ticks.Load() != settled {
		t.Errorf("timers ticked after StopAll: %d -> %d", settled, ticks.Load())
	}
}

func TestFailingTickDoesNotStopSchedule(t *testing.T) {
	s := NewScheduler(logger.New("poll-test"))
	defer s.StopAll()

	var ticks atomic.Int64
	s.Start(context.Background(), "approvals", 10*time.Millisecond, func(ctx context.Context) error {
		n := ticks.Add(1)
		if n == 1 {
			return errors.New("backend hiccup")
		}
		if n == 2 {
			panic("tick bug")
		}
		return nil
	})

	time.Sleep(120 * time.Millisecond)

	if ticks.Load() < 3 {
		t.Errorf("schedule stalled after failures: %d ticks", ticks.Load())
	}
}

func TestStopCancelsSingleKey(t *testing.T) {
	s := NewScheduler(logger.New("poll-test"))
	defer s.StopAll()

	ctx := context.Background()
	s.Start(ctx, "jobs", 10*time.Millisecond, func(ctx context.Context) error { return nil })
	s.Start(ctx, "posts", 10*time.Millisecond, func(ctx context.Context) error { return nil })

	s.Stop("jobs")

	got := s.Active()
	if len(got) != 1 || got[0] != "posts" {
		t.Errorf("Active = %v, want [posts]", got)
	}
}
