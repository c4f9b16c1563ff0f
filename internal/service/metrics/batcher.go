package metrics

import (
	"sync"
	"time"
)

// batcher coalesces bursts of signals into a single flush per window. The
// flush callback runs under the batcher lock, so Stop returning guarantees no
// further callback.
type batcher struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	armed   bool
	stopped bool
	flush   func()
}

func newBatcher(window time.Duration, flush func()) *batcher {
	return &batcher{window: window, flush: flush}
}

// Signal notes pending work. The first signal in a window arms the timer;
// later ones coalesce into the same flush.
func (b *batcher) Signal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped || b.armed {
		return
	}
	b.armed = true
	b.timer = time.AfterFunc(b.window, b.fire)
}

func (b *batcher) fire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.armed = false
	if b.flush != nil {
		b.flush()
	}
}

// Stop cancels any pending flush. Idempotent.
func (b *batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}
