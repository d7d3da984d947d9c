// Package poll runs the keyed refresh timers that keep the local cache
// converging on backend state.
package poll

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"driver-console/internal/general/logger"
	"driver-console/internal/general/metrics"
)

// Task is one refresh thunk. Errors are logged and counted; they never
// stop the schedule.
type Task func(ctx context.Context) error

type timerHandle struct {
	stop chan struct{}
}

// Scheduler owns at most one timer per key. Start on a live key replaces
// its timer; Stop cancels one; StopAll cancels everything.
type Scheduler struct {
	log *logger.Logger

	mu     sync.Mutex
	timers map[string]*timerHandle
	wg     sync.WaitGroup
}

func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		log:    log,
		timers: make(map[string]*timerHandle),
	}
}

// Start schedules task under key. Any prior timer for the key is
// cancelled first, so two Starts never leave two concurrent timers.
func (s *Scheduler) Start(ctx context.Context, key string, every time.Duration, task Task) {
	h := &timerHandle{stop: make(chan struct{})}

	s.mu.Lock()
	if prev, ok := s.timers[key]; ok {
		close(prev.stop)
	}
	s.timers[key] = h
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, key, every, task, h)
}

// Stop cancels the timer under key, if any.
func (s *Scheduler) Stop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.timers[key]; ok {
		close(h.stop)
		delete(s.timers, key)
	}
}

// StopAll cancels every timer and waits for the loops to exit.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for key, h := range s.timers {
		close(h.stop)
		delete(s.timers, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Active lists the keys with a live timer, sorted.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.timers))
	for k := range s.timers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- internals ---

func (s *Scheduler) loop(ctx context.Context, key string, every time.Duration, task Task, h *timerHandle) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drop(key, h)
			return
		case <-h.stop:
			return
		case <-ticker.C:
			s.runTick(ctx, key, task)
		}
	}
}

// runTick executes one tick, containing both errors and panics.
func (s *Scheduler) runTick(ctx context.Context, key string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PollTicks.WithLabelValues(key, "panic").Inc()
			s.log.Error(ctx, "poll_tick_panicked", "Polling task panicked; schedule continues", fmt.Errorf("%v", r), map[string]any{"key": key})
		}
	}()

	if err := task(ctx); err != nil {
		metrics.PollTicks.WithLabelValues(key, "error").Inc()
		s.log.Debug(ctx, "poll_tick_failed", "Polling task failed; schedule continues", map[string]any{
			"key":   key,
			"cause": err.Error(),
		})
		return
	}
	metrics.PollTicks.WithLabelValues(key, "ok").Inc()
}

// drop removes a handle that exited on ctx cancellation, but only if it
// still owns the key (a replacement may have taken over).
func (s *Scheduler) drop(key string, h *timerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.timers[key]; ok && cur == h {
		delete(s.timers, key)
	}
}
