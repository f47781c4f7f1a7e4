// Package shutdown tears the dashboard down in a fixed order when the process
// exits or receives SIGINT/SIGTERM.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"taskdash/internal/utils"
)

// CleanupFunc releases one resource. ctx is done when the shutdown deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager runs registered cleanups once, last registered first.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	shutdown bool
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	runOnce  sync.Once
	runErr   error
}

// NewManager creates a new shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{ctx: ctx, cancel: cancel}
}

// RegisterCleanup adds fn. Cleanups run in LIFO order, so the store
// registered first is closed after everything that writes to it.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Shutdown cancels Context. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()
		m.cancel()
	})
}

// ListenForSignals calls Shutdown on the first SIGINT or SIGTERM. The
// returned function stops listening.
func (m *Manager) ListenForSignals() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			utils.Debugf("Received %s, shutting down", sig)
			m.Shutdown()
		case <-quit:
		}
	}()
	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(sigCh)
			close(quit)
		})
	}
}

// Wait runs every cleanup exactly once and returns their joined errors, or
// ctx.Err() if the deadline passes first. A failing cleanup does not stop
// the ones after it.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.runOnce.Do(func() { m.runErr = m.runCleanups(ctx) })
		close(done)
	}()

	select {
	case <-done:
		return m.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) runCleanups(ctx context.Context) error {
	m.mu.Lock()
	cleanups := append([]cleanupEntry(nil), m.cleanups...)
	m.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		if err := c.fn(ctx); err != nil {
			utils.Warnf("cleanup %s: %v", c.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context is cancelled when shutdown is initiated.
func (m *Manager) Context() context.Context {
	return m.ctx
}
