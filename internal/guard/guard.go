// Package guard runs units of UI work so that a failure in one of them is
// reported and contained instead of reaching its caller.
package guard

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"taskdash/backend"
	"taskdash/internal/notification"
	"taskdash/internal/utils"
)

// Notifier receives the user-facing side of a failure report.
type Notifier interface {
	Send(n notification.Notification) error
}

// Guard reports failures to the log and to an optional notifier.
type Guard struct {
	notifier Notifier
	wg       sync.WaitGroup
}

// New creates a guard. notifier may be nil, in which case failures are
// only logged.
func New(notifier Notifier) *Guard {
	return &Guard{notifier: notifier}
}

// PanicError is returned in place of a recovered panic.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Protect calls fn and turns a panic into a *PanicError. It does not report.
func Protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Run calls fn. A returned error or panic is reported under label and
// swallowed. It returns true when fn completed without error.
func (g *Guard) Run(label string, fn func() error) bool {
	if err := Protect(fn); err != nil {
		g.Report(label, err)
		return false
	}
	return true
}

// Do is Run for functions producing a value. On failure the zero value and
// false are returned.
func Do[T any](g *Guard, label string, fn func() (T, error)) (T, bool) {
	var out T
	ok := g.Run(label, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, ok
}

// Go runs fn on a new goroutine under Run. The returned channel receives the
// result of Run and is then closed.
func (g *Guard) Go(label string, fn func() error) <-chan bool {
	done := make(chan bool, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(done)
		done <- g.Run(label, fn)
	}()
	return done
}

// Wait blocks until every unit started with Go has finished.
func (g *Guard) Wait() { g.wg.Wait() }

// Report logs err tagged with label and notifies the user. Cancellation is
// logged at debug level only.
func (g *Guard) Report(label string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		utils.Debugf("[%s] canceled", label)
		return
	}

	var pe *PanicError
	if errors.As(err, &pe) {
		utils.Errorf("[%s] %v\n%s", label, pe.Value, pe.Stack)
	} else {
		utils.Errorf("[%s] %v", label, err)
	}

	if g.notifier == nil {
		return
	}
	if nerr := g.notifier.Send(notification.Notification{
		Level:   notification.LevelError,
		Label:   label,
		Message: Message(err),
	}); nerr != nil {
		utils.Warnf("[%s] failed to deliver notification: %v", label, nerr)
	}
}

// Message returns the short user-facing text for err.
func Message(err error) string {
	var apiErr *backend.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return "Something went wrong; see the log for details"
	}
	return err.Error()
}
