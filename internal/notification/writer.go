package notification

import (
	"fmt"
	"io"
	"sync"
)

// writerChannel prints notifications to a writer, one per line
type writerChannel struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterChannel creates a channel printing to w
func NewWriterChannel(w io.Writer) NotificationChannel {
	return &writerChannel{w: w}
}

// Send writes "level: message"
func (c *writerChannel) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "%s: %s\n", n.Level, n.Message)
	return err
}

func (c *writerChannel) Close() error { return nil }
