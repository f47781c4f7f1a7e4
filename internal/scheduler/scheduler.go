// Package scheduler drives dashboard reloads.
//
// Every load runs under a generation number. Overlapping Refresh calls share
// one load, Invalidate supersedes whatever is in flight, and Commit only
// applies results whose generation is still current. Apply serialises with
// Commit but is never refused; it is for recomputations over state that was
// already committed, which stays valid when a later load fails. Auto-refresh
// is a single cancellable ticker that fires only while the session is
// authenticated.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"taskdash/internal/utils"
)

// DefaultInterval is the auto-refresh period.
const DefaultInterval = 30 * time.Second

// DefaultLoadTimeout bounds a shared load when Options.LoadTimeout is zero.
const DefaultLoadTimeout = 30 * time.Second

const loadKey = "load"

// LoadFunc performs one load for generation gen. It should hand its result to
// Commit rather than writing shared state directly.
type LoadFunc func(ctx context.Context, gen uint64) error

// Runner executes a scheduled unit of work and reports whether it succeeded.
// The dashboard plugs in its fault-isolating guard here.
type Runner func(label string, fn func() error) bool

// Options configures a Scheduler.
type Options struct {
	// Interval between auto-refresh ticks. Default: DefaultInterval.
	Interval time.Duration
	// Authenticated is consulted before every tick. Nil means always.
	Authenticated func() bool
	// Breaker pauses ticks after repeated failures. Nil means a default breaker.
	Breaker *CircuitBreaker
	// Runner wraps every tick. Nil runs the tick directly.
	Runner Runner
	// LoadTimeout bounds one load. Loads are shared between callers, so they
	// run detached from any caller's cancellation. Default: DefaultLoadTimeout.
	LoadTimeout time.Duration
}

// Scheduler coordinates loads and the auto-refresh timer.
type Scheduler struct {
	load        LoadFunc
	interval    time.Duration
	loadTimeout time.Duration
	authed      func() bool
	breaker     *CircuitBreaker
	run         Runner

	gen      atomic.Uint64
	group    singleflight.Group
	commitMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	ticks  atomic.Int64
}

// New creates a Scheduler around load.
func New(load LoadFunc, opts Options) *Scheduler {
	s := &Scheduler{
		load:        load,
		interval:    opts.Interval,
		loadTimeout: opts.LoadTimeout,
		authed:      opts.Authenticated,
		breaker:     opts.Breaker,
		run:         opts.Runner,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.loadTimeout <= 0 {
		s.loadTimeout = DefaultLoadTimeout
	}
	if s.authed == nil {
		s.authed = func() bool { return true }
	}
	if s.breaker == nil {
		s.breaker = NewCircuitBreaker(0, 0)
	}
	if s.run == nil {
		s.run = func(_ string, fn func() error) bool { return fn() == nil }
	}
	return s
}

// Generation returns the current generation.
func (s *Scheduler) Generation() uint64 { return s.gen.Load() }

// IsCurrent reports whether gen is still the latest generation.
func (s *Scheduler) IsCurrent(gen uint64) bool { return s.gen.Load() == gen }

// Invalidate starts a new generation. Results of loads already in flight will
// be refused by Commit, and the next Refresh starts a fresh load instead of
// joining the superseded one.
func (s *Scheduler) Invalidate() uint64 {
	s.group.Forget(loadKey)
	return s.gen.Add(1)
}

// Refresh runs a load, or joins the one already in flight. It returns the
// generation the load ran under. The load keeps ctx's values but not its
// cancellation, since other callers may be waiting on it; LoadTimeout bounds
// it instead.
func (s *Scheduler) Refresh(ctx context.Context) (uint64, error) {
	v, err, shared := s.group.Do(loadKey, func() (interface{}, error) {
		gen := s.gen.Add(1)
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		return gen, s.load(loadCtx, gen)
	})
	gen, _ := v.(uint64)
	if shared {
		utils.Debugf("Refresh joined load generation %d", gen)
	}
	return gen, err
}

// Commit runs apply if gen is still current and reports whether it did.
// Commits are serialised, so apply replaces shared state in one step.
func (s *Scheduler) Commit(gen uint64, apply func()) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if !s.IsCurrent(gen) {
		utils.Debugf("Discarding stale load generation %d (current %d)", gen, s.Generation())
		return false
	}
	apply()
	return true
}

// Apply runs fn under the commit lock without a generation check. fn must
// only derive from already committed state.
func (s *Scheduler) Apply(fn func()) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	fn()
}

// SetAutoRefresh starts or stops the ticker. Enabling an already running
// ticker restarts it, so at most one ticker exists.
func (s *Scheduler) SetAutoRefresh(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if !enabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.loop(ctx, done)
	utils.Debugf("Auto-refresh every %s", s.interval)
}

// AutoRefresh reports whether the ticker is running.
func (s *Scheduler) AutoRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Ticks returns how many ticks have run a load.
func (s *Scheduler) Ticks() int64 { return s.ticks.Load() }

// Breaker returns the circuit breaker guarding ticks.
func (s *Scheduler) Breaker() *CircuitBreaker { return s.breaker }

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Close stops the ticker and waits for its goroutine to exit. It must not be
// called from inside a LoadFunc.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.authed() {
		return
	}
	if !s.breaker.Allow() {
		utils.Debugf("Auto-refresh paused (circuit %s)", s.breaker.State())
		return
	}
	s.ticks.Add(1)
	ok := s.run("auto-refresh", func() error {
		_, err := s.Refresh(ctx)
		return err
	})
	if ok {
		s.breaker.RecordSuccess()
	} else {
		s.breaker.RecordFailure()
	}
}
