// Package notification delivers user-visible messages: toasts in the TUI,
// lines on stderr for the CLI and an optional notification log file.
package notification

import (
	"io"
	"time"
)

// Level identifies the kind of notification
type Level string

const (
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
)

// Notification represents a notification to be sent
type Notification struct {
	Level     Level
	Label     string // the unit of work that produced it, if any
	Message   string
	Timestamp time.Time
}

// NotificationManager is the interface for managing notifications
type NotificationManager interface {
	Send(n Notification) error
	Notify(level Level, message string)
	Close() error
	ChannelCount() int
}

// NotificationChannel is the interface for a notification channel
type NotificationChannel interface {
	Send(n Notification) error
	Close() error
}

// Config holds the notification configuration
type Config struct {
	Enabled         bool
	Toast           ToastConfig
	LogNotification LogNotificationConfig
	// Writer, when non-nil, receives one line per notification (stderr in the CLI).
	Writer io.Writer
}

// ToastConfig holds in-app toast configuration
type ToastConfig struct {
	Enabled  bool
	Capacity int           // how many recent notifications are kept
	Duration time.Duration // how long a toast stays visible
}

// LogNotificationConfig holds log notification configuration
type LogNotificationConfig struct {
	Enabled   bool
	Path      string
	MaxSizeMB int
}

// Option is a functional option for configuring the manager
type Option func(*Manager)

// WithChannel adds an extra channel
func WithChannel(ch NotificationChannel) Option {
	return func(m *Manager) {
		m.channels = append(m.channels, ch)
	}
}

// WithSendCallback sets a callback to be called when a notification is sent
func WithSendCallback(callback func(Notification)) Option {
	return func(m *Manager) {
		m.sendCallback = callback
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}
