package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler calls fn every interval. Only one call runs at a time; ticks that
// arrive while a call is outstanding are dropped and the period restarts when
// it finishes.
type Scheduler struct {
	fn func(ctx context.Context)

	mu       sync.Mutex
	interval time.Duration
	enabled  bool
	calls    int // outstanding calls, timer driven or Do

	trigger chan struct{}
	reset   chan struct{}
	done    chan struct{}
}

func New(interval time.Duration, fn func(ctx context.Context)) *Scheduler {
	return &Scheduler{
		fn:       fn,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		reset:    make(chan struct{}, 1),
		done:     make(chan struct{}, 1),
	}
}

// Trigger requests an immediate call, even when timer ticks are disabled.
// A trigger arriving during a call runs once that call finishes.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Reset replaces the period and restarts it.
func (s *Scheduler) Reset(interval time.Duration) {
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()

	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// SetEnabled turns timer driven calls on or off.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Busy reports whether a call is outstanding.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls > 0
}

func (s *Scheduler) enter() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *Scheduler) leave() {
	s.mu.Lock()
	s.calls--
	s.mu.Unlock()

	select {
	case s.done <- struct{}{}:
	default:
	}
}

// Do runs fn outside the timer. Ticks are dropped while it runs and the
// period restarts when it returns.
func (s *Scheduler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.enter()
	defer s.leave()
	return fn(ctx)
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Run drives the schedule until ctx is done and waits for an outstanding call.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	pending := false

	start := func() {
		s.enter()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.leave()
			s.fn(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.Enabled() {
				continue
			}
			if s.Busy() {
				log.Debug("Rotation still running, skipping tick")
				continue
			}
			start()
		case <-s.trigger:
			if s.Busy() {
				pending = true
				continue
			}
			start()
		case <-s.reset:
			ticker.Reset(s.Interval())
		case <-s.done:
			ticker.Reset(s.Interval())
			if pending && !s.Busy() {
				pending = false
				start()
			}
		}
	}
}
