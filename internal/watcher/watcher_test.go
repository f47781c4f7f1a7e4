package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newTestWatcher(t *testing.T, path string, calls *atomic.Int32) *Watcher {
	t.Helper()
	w, err := New(Config{
		Path:             path,
		DebounceDuration: 50 * time.Millisecond,
		OnChange:         func() { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(w.Stop)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	return w
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// TestWatcherDetectsStoreWrite verifies a write to the store triggers a callback.
func TestWatcherDetectsStoreWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskdash.db")
	if err := os.WriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	newTestWatcher(t, path, &calls)

	if err := os.WriteFile(path, []byte("modified"), 0600); err != nil {
		t.Fatal(err)
	}
	if !waitFor(func() bool { return calls.Load() > 0 }, 2*time.Second) {
		t.Error("expected watcher to detect the store write")
	}
}

// TestWatcherDebouncesBursts verifies rapid writes collapse into one callback.
func TestWatcherDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskdash.db")
	var calls atomic.Int32
	newTestWatcher(t, path, &calls)

	for i := 0; i < 10; i++ {
		if err := os.WriteFile(path+"-wal", []byte{byte(i)}, 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !waitFor(func() bool { return calls.Load() > 0 }, 2*time.Second) {
		t.Fatal("side-file writes should trigger the watcher")
	}
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 debounced callback, got %d", n)
	}
}

// TestWatcherIgnoresOtherFiles verifies unrelated files in the directory are ignored.
func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	newTestWatcher(t, filepath.Join(dir, "taskdash.db"), &calls)

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("unrelated file triggered %d callbacks", calls.Load())
	}
}

func TestRelevant(t *testing.T) {
	w := &Watcher{prefix: "taskdash.db"}
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/x/taskdash.db", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/x/taskdash.db-journal", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/x/taskdash.db", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/x/other.db", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.event); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}

// TestWatcherStopIsIdempotent verifies Stop can be called repeatedly and
// blocks restarting.
func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := New(Config{Path: filepath.Join(t.TempDir(), "taskdash.db")})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if err := w.Start(); err == nil {
		t.Error("expected error restarting a stopped watcher")
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without a path")
	}
}
