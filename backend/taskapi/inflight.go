package taskapi

import "sync"

// InFlight counts outstanding calls. It saturates at zero so an unmatched
// Done can never drive the busy indicator negative.
type InFlight struct {
	mu  sync.Mutex
	n   int
	seq uint64

	notifyMu  sync.Mutex
	delivered uint64
	onChange  func(count int)
}

// NewInFlight creates a counter. onChange, when non-nil, is called with the
// new count after changes, outside the counter lock. Calls are serialised
// and never go back in time: a count older than one already delivered is
// dropped, so the last call always carries the current count.
func NewInFlight(onChange func(count int)) *InFlight {
	if onChange == nil {
		onChange = func(int) {}
	}
	return &InFlight{onChange: onChange}
}

// Begin records a call starting.
func (f *InFlight) Begin() { f.change(1) }

// Done records a call finishing.
func (f *InFlight) Done() { f.change(-1) }

func (f *InFlight) change(delta int) {
	f.mu.Lock()
	f.n += delta
	if f.n < 0 {
		f.n = 0
	}
	f.seq++
	n, seq := f.n, f.seq
	f.mu.Unlock()

	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()
	if seq <= f.delivered {
		return
	}
	f.delivered = seq
	f.onChange(n)
}

// Count returns the number of outstanding calls.
func (f *InFlight) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

// Busy reports whether any call is outstanding.
func (f *InFlight) Busy() bool { return f.Count() > 0 }
