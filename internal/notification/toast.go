package notification

import (
	"fmt"
	"sync"
	"time"
)

const (
	defaultToastCapacity = 20
	defaultToastDuration = 4 * time.Second
)

// ToastQueue keeps recent notifications for display inside the TUI.
type ToastQueue struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	duration time.Duration
}

// NewToastQueue creates a toast queue
func NewToastQueue(cfg ToastConfig) *ToastQueue {
	q := &ToastQueue{capacity: cfg.Capacity, duration: cfg.Duration}
	if q.capacity <= 0 {
		q.capacity = defaultToastCapacity
	}
	if q.duration <= 0 {
		q.duration = defaultToastDuration
	}
	return q
}

// Send appends n, dropping the oldest entry when full.
func (q *ToastQueue) Send(n Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	if len(q.items) > q.capacity {
		q.items = q.items[len(q.items)-q.capacity:]
	}
	return nil
}

// Current returns the newest notification still visible at now.
func (q *ToastQueue) Current(now time.Time) (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Notification{}, false
	}
	last := q.items[len(q.items)-1]
	if now.Sub(last.Timestamp) >= q.duration {
		return Notification{}, false
	}
	return last, true
}

// Recent returns up to n notifications, newest first.
func (q *ToastQueue) Recent(n int) []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n > len(q.items) {
		n = len(q.items)
	}
	out := make([]Notification, 0, n)
	for i := len(q.items) - 1; i >= len(q.items)-n; i-- {
		out = append(out, q.items[i])
	}
	return out
}

// Duration is how long a toast stays visible.
func (q *ToastQueue) Duration() time.Duration { return q.duration }

// Close implements NotificationChannel
func (q *ToastQueue) Close() error { return nil }

// Format renders n as a single line, prefixed with its label when set.
func Format(n Notification) string {
	if n.Label == "" {
		return n.Message
	}
	return fmt.Sprintf("[%s] %s", n.Label, n.Message)
}
