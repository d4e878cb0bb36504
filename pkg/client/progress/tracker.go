package progress

import (
	"math"
	"sync"
	"sync/atomic"
)

// Percent returns round(completed/total*100) clamped to [0, 100].
func Percent(completed, total int64) int {
	if total <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	round := math.Round(float64(completed) / float64(total) * 100)
	if round > 100 {
		return 100
	}
	if round < 0 {
		return 0
	}
	return int(round)
}

// Tracker forwards percentages to a callback, dropping values that would make
// the reported sequence go backwards. Fail is the only way to report a lower
// value and ends the sequence at 0.
type Tracker struct {
	mu       sync.Mutex
	current  atomic.Int32
	reported bool
	done     bool
	fn       func(int)
}

func NewTracker(fn func(int)) *Tracker {
	return &Tracker{fn: fn}
}

func (t *Tracker) Set(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || (t.reported && int32(percent) <= t.current.Load()) {
		return
	}
	t.current.Store(int32(percent))
	t.reported = true
	if percent >= 100 {
		t.done = true
	}
	if t.fn != nil {
		t.fn(percent)
	}
}

func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.current.Store(0)
	if t.fn != nil {
		t.fn(0)
	}
}

// Current may be read from any goroutine.
func (t *Tracker) Current() int {
	return int(t.current.Load())
}
