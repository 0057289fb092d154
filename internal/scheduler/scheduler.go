// Package scheduler runs a fixed-interval polling loop. Minute-granularity
// delivery does not need an event-driven timer; a poll per interval is
// accurate enough and survives clock drift.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type Scheduler struct {
	interval time.Duration
	tickFn   func(context.Context)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(interval time.Duration, tickFn func(context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler: interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("scheduler: tickFn must not be nil")
	}
	return &Scheduler{interval: interval, tickFn: tickFn}, nil
}

// Start launches the loop. The first tick runs immediately; afterwards a
// tick fires every interval until Stop. Returns false when already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)
	return true
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("dispatch loop started", "interval", s.interval.String())

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatch loop stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop cancels the loop and waits for the in-flight tick to finish.
// Returns false when not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}

	s.cancel()
	<-s.done
	s.running = false
	return true
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce executes a single tick, recovering any panic so one bad tick
// never kills the loop.
func (s *Scheduler) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	s.tickFn(ctx)
	slog.Debug("dispatch tick completed", "duration_ms", time.Since(start).Milliseconds())
}
