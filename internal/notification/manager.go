package notification

import (
	"time"
)

// Manager implements NotificationManager
type Manager struct {
	channels     []NotificationChannel
	enabled      bool
	toasts       *ToastQueue
	sendCallback func(Notification)
	now          func() time.Time
}

// NewManager creates a NotificationManager based on configuration
func NewManager(cfg *Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		channels: []NotificationChannel{},
		enabled:  cfg.Enabled,
		now:      time.Now,
	}

	if cfg.Enabled {
		if cfg.Toast.Enabled {
			m.toasts = NewToastQueue(cfg.Toast)
			m.channels = append(m.channels, m.toasts)
		}
		if cfg.LogNotification.Enabled {
			m.channels = append(m.channels, NewLogNotificationChannel(&cfg.LogNotification))
		}
		if cfg.Writer != nil {
			m.channels = append(m.channels, NewWriterChannel(cfg.Writer))
		}
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Send dispatches notification to all enabled channels
func (m *Manager) Send(n Notification) error {
	if !m.enabled {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = m.now()
	}

	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil {
			lastErr = err
		}
	}
	if m.sendCallback != nil {
		m.sendCallback(n)
	}
	return lastErr
}

// Notify sends a message at level, dropping channel errors.
func (m *Manager) Notify(level Level, message string) {
	_ = m.Send(Notification{Level: level, Message: message})
}

// Toasts returns the in-app toast queue, or nil when toasts are disabled.
func (m *Manager) Toasts() *ToastQueue { return m.toasts }

// Close cleans up resources
func (m *Manager) Close() error {
	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ChannelCount returns the number of active channels
func (m *Manager) ChannelCount() int {
	return len(m.channels)
}

var _ NotificationManager = (*Manager)(nil)
