// Package timer provides a one-shot phase timer with a generation counter.
// Re-arming or cancelling bumps the generation, so a callback from an
// earlier schedule that races the cancel can be recognized and dropped.
package timer

import (
	"sync"
	"time"
)

type Timer struct {
	mu  sync.Mutex
	gen uint64
	t   *time.Timer
}

// Arm schedules fn after d, superseding any pending schedule. fn receives
// the generation it was armed with; compare it against Gen before acting.
func (t *Timer) Arm(d time.Duration, fn func(gen uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	gen := t.gen
	if t.t != nil {
		t.t.Stop()
	}
	t.t = time.AfterFunc(d, func() { fn(gen) })
	return gen
}

// Cancel stops any pending schedule and invalidates its generation.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}

// Gen returns the current generation; a fired callback whose generation
// no longer matches is stale.
func (t *Timer) Gen() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}
