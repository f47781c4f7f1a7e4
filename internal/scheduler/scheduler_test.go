package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefreshCoalescesOverlappingCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	s := New(func(ctx context.Context, gen uint64) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}, Options{})

	var wg sync.WaitGroup
	gens := make([]uint64, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		gens[0], _ = s.Refresh(context.Background())
	}()
	<-started
	for i := 1; i < len(gens); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gens[i], _ = s.Refresh(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected one load, got %d", calls.Load())
	}
	for i, g := range gens {
		if g != 1 {
			t.Errorf("caller %d saw generation %d, want 1", i, g)
		}
	}
}

func TestCommitDiscardsStaleGeneration(t *testing.T) {
	var (
		mu      sync.Mutex
		state   uint64
		s       *Scheduler
		release = make(chan struct{})
		started = make(chan struct{})
	)
	s = New(func(ctx context.Context, gen uint64) error {
		if gen == 1 {
			close(started)
			<-release
		}
		s.Commit(gen, func() {
			mu.Lock()
			state = gen
			mu.Unlock()
		})
		return nil
	}, Options{})

	done := make(chan uint64)
	go func() {
		gen, _ := s.Refresh(context.Background())
		done <- gen
	}()
	<-started

	// A mutation supersedes the slow load.
	s.Invalidate()
	gen, _ := s.Refresh(context.Background())
	if gen != 3 {
		t.Fatalf("fresh load ran under generation %d, want 3", gen)
	}

	close(release)
	if slow := <-done; slow != 1 {
		t.Fatalf("slow load ran under generation %d", slow)
	}
	mu.Lock()
	defer mu.Unlock()
	if state != 3 {
		t.Errorf("stale generation overwrote state: %d", state)
	}
}

func TestRefreshReturnsLoadError(t *testing.T) {
	boom := errors.New("boom")
	s := New(func(context.Context, uint64) error { return boom }, Options{})
	if _, err := s.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected load error, got %v", err)
	}
	if s.Generation() != 1 {
		t.Errorf("a failed load still consumes a generation, got %d", s.Generation())
	}
}

func TestAutoRefreshTicksOnlyWhileAuthenticated(t *testing.T) {
	var authed atomic.Bool
	var loads atomic.Int32
	s := New(func(context.Context, uint64) error {
		loads.Add(1)
		return nil
	}, Options{Interval: 5 * time.Millisecond, Authenticated: authed.Load})
	defer s.Close()

	s.SetAutoRefresh(true)
	time.Sleep(40 * time.Millisecond)
	if loads.Load() != 0 {
		t.Fatalf("ticked %d times while logged out", loads.Load())
	}

	authed.Store(true)
	deadline := time.Now().Add(time.Second)
	for loads.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if loads.Load() < 2 {
		t.Fatalf("expected ticks once authenticated, got %d", loads.Load())
	}
}

func TestSetAutoRefreshKeepsSingleTicker(t *testing.T) {
	var loads atomic.Int32
	s := New(func(context.Context, uint64) error {
		loads.Add(1)
		return nil
	}, Options{Interval: 20 * time.Millisecond})

	for i := 0; i < 10; i++ {
		s.SetAutoRefresh(true)
	}
	if !s.AutoRefresh() {
		t.Fatal("auto-refresh should be on")
	}
	time.Sleep(110 * time.Millisecond)
	s.Close()

	// One ticker at 20ms fires about 5 times in 110ms; ten tickers would fire ~50.
	if n := loads.Load(); n < 1 || n > 8 {
		t.Errorf("unexpected tick count %d", n)
	}

	before := loads.Load()
	time.Sleep(50 * time.Millisecond)
	if loads.Load() != before {
		t.Error("ticker kept running after Close")
	}
	if s.AutoRefresh() {
		t.Error("AutoRefresh should report off after Close")
	}
}

func TestSetAutoRefreshOffStopsTicks(t *testing.T) {
	var loads atomic.Int32
	s := New(func(context.Context, uint64) error {
		loads.Add(1)
		return nil
	}, Options{Interval: 5 * time.Millisecond})

	s.SetAutoRefresh(true)
	s.SetAutoRefresh(false)
	s.Close()
	n := loads.Load()
	time.Sleep(30 * time.Millisecond)
	if loads.Load() != n {
		t.Error("ticks continued after disabling auto-refresh")
	}
}

func TestTicksGoThroughRunner(t *testing.T) {
	var labels []string
	var mu sync.Mutex
	s := New(func(context.Context, uint64) error { return errors.New("down") }, Options{
		Interval: 5 * time.Millisecond,
		Breaker:  NewCircuitBreaker(2, time.Hour),
		Runner: func(label string, fn func() error) bool {
			mu.Lock()
			labels = append(labels, label)
			mu.Unlock()
			return fn() == nil
		},
	})
	s.SetAutoRefresh(true)
	time.Sleep(60 * time.Millisecond)
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	// The breaker opens after two failures and skips every later tick.
	if len(labels) != 2 {
		t.Errorf("expected 2 guarded ticks before the breaker opened, got %d", len(labels))
	}
	if len(labels) > 0 && labels[0] != "auto-refresh" {
		t.Errorf("unexpected label %q", labels[0])
	}
	if s.Breaker().State() != CircuitOpen || s.Ticks() != 2 {
		t.Errorf("breaker=%s ticks=%d", s.Breaker().State(), s.Ticks())
	}
}

func TestSharedLoadOutlivesCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var loadErr atomic.Value
	var once sync.Once
	s := New(func(ctx context.Context, gen uint64) error {
		once.Do(func() { close(started) })
		<-release
		loadErr.Store(fmt.Sprint(ctx.Err()))
		return ctx.Err()
	}, Options{})

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Refresh(first)
		firstDone <- err
	}()
	<-started

	joined := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		joined <- err
	}()
	time.Sleep(10 * time.Millisecond)

	// The first caller going away must not cancel the load the second joined.
	cancel()
	close(release)

	if err := <-joined; err != nil {
		t.Errorf("joined caller got %v", err)
	}
	if err := <-firstDone; err != nil {
		t.Errorf("first caller got %v", err)
	}
	if got := loadErr.Load(); got != "<nil>" {
		t.Errorf("load context was cancelled: %v", got)
	}
}

func TestLoadTimeoutBoundsSharedLoad(t *testing.T) {
	s := New(func(ctx context.Context, gen uint64) error {
		<-ctx.Done()
		return ctx.Err()
	}, Options{LoadTimeout: 20 * time.Millisecond})

	start := time.Now()
	if _, err := s.Refresh(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("load ran past its timeout")
	}
}

func TestApplyIgnoresGeneration(t *testing.T) {
	s := New(func(context.Context, uint64) error { return errors.New("down") }, Options{})
	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected load error")
	}

	// Nothing was committed for generation 1, so Commit(0) is refused, but
	// recomputations over the state committed earlier still run.
	if s.Commit(0, func() {}) {
		t.Error("stale commit applied")
	}
	ran := false
	s.Apply(func() { ran = true })
	if !ran {
		t.Error("Apply did not run after a failed load")
	}
}
