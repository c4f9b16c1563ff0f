package metrics

import (
	"errors"
	"math"
	"sync"
	"time"
)

// BufferStats aggregates a numeric projection over buffer contents.
type BufferStats struct {
	Count   int
	Sum     float64
	Average float64
	Min     float64
	Max     float64
}

// BufferOption configures optional Buffer behavior.
type BufferOption[T any] func(*Buffer[T])

// WithTimestamp supplies the timestamp projection used by time-range queries
// and retention-based cleanup.
func WithTimestamp[T any](fn func(T) time.Time) BufferOption[T] {
	return func(b *Buffer[T]) {
		b.timestamp = fn
	}
}

// WithRetention evicts items older than maxAge on Cleanup. Requires a
// timestamp projection.
func WithRetention[T any](maxAge time.Duration) BufferOption[T] {
	return func(b *Buffer[T]) {
		b.maxAge = maxAge
	}
}

// WithAutoCleanup runs Cleanup on a fixed interval until Stop is called.
func WithAutoCleanup[T any](every time.Duration) BufferOption[T] {
	return func(b *Buffer[T]) {
		b.cleanupEvery = every
	}
}

// Buffer is a bounded, insertion-ordered ring store of the most recent items.
// Once full, each insert overwrites the single oldest slot. All methods are
// safe for concurrent use.
type Buffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	count    int
	capacity int

	timestamp    func(T) time.Time
	maxAge       time.Duration
	cleanupEvery time.Duration

	loopMu sync.Mutex
	loopCh chan struct{}
}

// NewBuffer constructs a ring buffer holding at most capacity items. A zero
// capacity buffer accepts inserts but retains nothing. Misconfigured
// retention fails here rather than misbehaving later.
func NewBuffer[T any](capacity int, opts ...BufferOption[T]) (*Buffer[T], error) {
	if capacity < 0 {
		return nil, errors.New("buffer capacity must not be negative")
	}
	b := &Buffer[T]{
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxAge < 0 {
		return nil, errors.New("buffer retention must not be negative")
	}
	if b.maxAge > 0 && b.timestamp == nil {
		return nil, errors.New("buffer retention requires a timestamp projection")
	}
	if b.cleanupEvery < 0 {
		return nil, errors.New("buffer cleanup interval must not be negative")
	}
	if b.cleanupEvery > 0 && b.maxAge == 0 {
		return nil, errors.New("buffer auto-cleanup requires retention")
	}
	if capacity > 0 {
		b.items = make([]T, capacity)
	}
	b.StartCleanup()
	return b, nil
}

// Add stores an item, overwriting the oldest slot when full. It never fails.
func (b *Buffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capacity == 0 {
		return
	}
	if b.count < b.capacity {
		b.items[(b.head+b.count)%b.capacity] = item
		b.count++
		return
	}
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
}

// Len reports the number of retained items.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity reports the configured capacity.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

// Items returns retained items oldest to newest.
func (b *Buffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

// Latest returns up to n of the most recent items, oldest to newest.
func (b *Buffer[T]) Latest(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	result := make([]T, 0, n)
	for i := b.count - n; i < b.count; i++ {
		result = append(result, b.items[(b.head+i)%b.capacity])
	}
	return result
}

// Filter returns all items matching the predicate, oldest to newest.
func (b *Buffer[T]) Filter(pred func(T) bool) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var result []T
	for i := 0; i < b.count; i++ {
		item := b.items[(b.head+i)%b.capacity]
		if pred(item) {
			result = append(result, item)
		}
	}
	return result
}

// Find returns the oldest item matching the predicate.
func (b *Buffer[T]) Find(pred func(T) bool) (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := 0; i < b.count; i++ {
		item := b.items[(b.head+i)%b.capacity]
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// ItemsBetween returns items whose timestamp falls within [start, end]. An
// inverted range yields an empty result. Without a timestamp projection every
// range is empty.
func (b *Buffer[T]) ItemsBetween(start, end time.Time) []T {
	if b.timestamp == nil || start.After(end) {
		return nil
	}
	return b.Filter(func(item T) bool {
		ts := b.timestamp(item)
		return !ts.Before(start) && !ts.After(end)
	})
}

// Statistics aggregates the supplied numeric projection over retained items.
// An empty buffer yields all-zero stats.
func (b *Buffer[T]) Statistics(extract func(T) float64) BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.count == 0 {
		return BufferStats{}
	}
	stats := BufferStats{
		Count: b.count,
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
	}
	for i := 0; i < b.count; i++ {
		v := extract(b.items[(b.head+i)%b.capacity])
		stats.Sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Average = round2(stats.Sum / float64(stats.Count))
	stats.Sum = round2(stats.Sum)
	return stats
}

// Cleanup synchronously rebuilds the buffer from items still inside the
// retention window. A no-op when retention is not configured.
func (b *Buffer[T]) Cleanup() {
	if b.maxAge == 0 || b.timestamp == nil {
		return
	}
	cutoff := time.Now().Add(-b.maxAge)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return
	}
	survivors := make([]T, 0, b.count)
	for i := 0; i < b.count; i++ {
		item := b.items[(b.head+i)%b.capacity]
		if !b.timestamp(item).Before(cutoff) {
			survivors = append(survivors, item)
		}
	}
	b.items = make([]T, b.capacity)
	copy(b.items, survivors)
	b.head = 0
	b.count = len(survivors)
}

// StartCleanup arms the auto-cleanup timer. Idempotent; a no-op without an
// auto-cleanup interval. Stop disarms the timer and StartCleanup may arm it
// again.
func (b *Buffer[T]) StartCleanup() {
	if b.cleanupEvery <= 0 {
		return
	}
	b.loopMu.Lock()
	defer b.loopMu.Unlock()
	if b.loopCh != nil {
		return
	}
	b.loopCh = make(chan struct{})
	go b.cleanupLoop(b.loopCh)
}

// Stop cancels the auto-cleanup timer. Idempotent; no further timed cleanup
// fires until StartCleanup.
func (b *Buffer[T]) Stop() {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()
	if b.loopCh == nil {
		return
	}
	close(b.loopCh)
	b.loopCh = nil
}

func (b *Buffer[T]) cleanupLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(b.cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Cleanup()
		case <-stopCh:
			return
		}
	}
}

func (b *Buffer[T]) snapshotLocked() []T {
	result := make([]T, 0, b.count)
	for i := 0; i < b.count; i++ {
		result = append(result, b.items[(b.head+i)%b.capacity])
	}
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
