package notification

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const defaultLogMaxMB = 5

// logChannel appends one line per notification to a file. The file is opened
// lazily and moved to <path>.old once it grows past MaxSizeMB.
type logChannel struct {
	mu   sync.Mutex
	cfg  LogNotificationConfig
	file *os.File
}

// NewLogNotificationChannel returns a channel writing to cfg.Path.
func NewLogNotificationChannel(cfg *LogNotificationConfig) NotificationChannel {
	return &logChannel{cfg: *cfg}
}

func (c *logChannel) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		f, err := c.open()
		if err != nil {
			return err
		}
		c.file = f
	}

	// 2026-01-16T10:30:00Z [ERROR] [refresh] message
	line := fmt.Sprintf("%s [%s] %s\n",
		n.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		strings.ToUpper(string(n.Level)),
		Format(n))
	if _, err := c.file.WriteString(line); err != nil {
		return fmt.Errorf("write notification log: %w", err)
	}
	return c.file.Sync()
}

func (c *logChannel) open() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(c.cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create notification log dir: %w", err)
	}

	limit := int64(c.cfg.MaxSizeMB)
	if limit <= 0 {
		limit = defaultLogMaxMB
	}
	info, err := os.Stat(c.cfg.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	case info.Size() >= limit<<20:
		if err := os.Rename(c.cfg.Path, c.cfg.Path+".old"); err != nil {
			return nil, fmt.Errorf("rotate notification log: %w", err)
		}
	}

	f, err := os.OpenFile(c.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open notification log: %w", err)
	}
	return f, nil
}

func (c *logChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// ReadLog returns the lines of the notification log. A missing file is empty.
func ReadLog(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// ClearLog truncates the notification log.
func ClearLog(path string) error {
	return os.Truncate(path, 0)
}
