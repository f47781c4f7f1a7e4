package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes leveled lines. Debug lines are dropped unless verbose is set.
type Logger struct {
	verbose bool
	out     io.Writer
	mu      sync.RWMutex
}

var (
	defaultLogger     *Logger
	defaultLoggerOnce sync.Once
)

// GetLogger returns the process-wide logger.
func GetLogger() *Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = &Logger{out: os.Stderr}
	})
	return defaultLogger
}

// SetVerboseMode toggles debug output on the process-wide logger.
func SetVerboseMode(verbose bool) {
	GetLogger().SetVerbose(verbose)
}

func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	l.verbose = verbose
	l.mu.Unlock()
}

func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

// SetOutput redirects log lines. The TUI points this at the background log
// while it owns the terminal. A nil writer restores stderr.
func (l *Logger) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

// logf renders one line. Without args the message is written as is, so a
// literal % survives.
func (l *Logger) logf(level Level, msg string, args ...interface{}) {
	l.mu.RLock()
	out, verbose := l.out, l.verbose
	l.mu.RUnlock()

	if level == LevelDebug && !verbose {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	prefix := ""
	if level == LevelDebug {
		prefix = time.Now().Format("15:04:05") + " "
	}
	_, _ = fmt.Fprintf(out, "%s[%s] %s\n", prefix, level, msg)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.logf(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.logf(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.logf(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.logf(LevelError, msg, args...) }

func Debugf(format string, args ...interface{}) { GetLogger().Debug(format, args...) }
func Infof(format string, args ...interface{})  { GetLogger().Info(format, args...) }
func Warnf(format string, args ...interface{})  { GetLogger().Warn(format, args...) }
func Errorf(format string, args ...interface{}) { GetLogger().Error(format, args...) }

// BackgroundLogger appends timestamped lines to taskdash.log while the
// dashboard owns the terminal. A failed or disabled logger discards writes.
type BackgroundLogger struct {
	mu   sync.Mutex
	path string
	file *os.File
	dst  *log.Logger
}

// NewBackgroundLogger opens taskdash.log under dir. When enabled is false the
// logger discards everything.
func NewBackgroundLogger(dir string, enabled bool) (*BackgroundLogger, error) {
	if !enabled {
		return discardLogger(""), nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return discardLogger(""), err
	}
	return NewBackgroundLoggerWithPath(filepath.Join(dir, "taskdash.log"))
}

// NewBackgroundLoggerWithPath opens path for appending.
func NewBackgroundLoggerWithPath(path string) (*BackgroundLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return discardLogger(path), err
	}
	return &BackgroundLogger{path: path, file: file, dst: log.New(file, "", log.LstdFlags)}, nil
}

func discardLogger(path string) *BackgroundLogger {
	return &BackgroundLogger{path: path, dst: log.New(io.Discard, "", 0)}
}

// Write lets the background logger stand in as a Logger's output.
func (bl *BackgroundLogger) Write(p []byte) (int, error) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.dst.Print(string(p))
	return len(p), nil
}

func (bl *BackgroundLogger) Printf(format string, args ...interface{}) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.dst.Printf(format, args...)
}

// Close releases the file. Later writes are discarded.
func (bl *BackgroundLogger) Close() {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if bl.file != nil {
		_ = bl.file.Close()
		bl.file = nil
	}
	bl.dst = log.New(io.Discard, "", 0)
}

// GetLogPath returns the log file path, or "" when logging is disabled.
func (bl *BackgroundLogger) GetLogPath() string {
	return bl.path
}

// IsEnabled reports whether lines currently reach a file.
func (bl *BackgroundLogger) IsEnabled() bool {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	return bl.file != nil
}
