package metrics

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBatcherCoalescesBurstIntoOneFlush(t *testing.T) {
	var flushes atomic.Int64
	b := newBatcher(20*time.Millisecond, func() { flushes.Add(1) })
	defer b.Stop()

	for i := 0; i < 50; i++ {
		b.Signal()
	}
	time.Sleep(60 * time.Millisecond)
	if got := flushes.Load(); got != 1 {
		t.Fatalf("expected one coalesced flush, got %d", got)
	}

	b.Signal()
	time.Sleep(60 * time.Millisecond)
	if got := flushes.Load(); got != 2 {
		t.Fatalf("expected a second flush for the next window, got %d", got)
	}
}

func TestBatcherStopPreventsPendingFlush(t *testing.T) {
	var flushes atomic.Int64
	b := newBatcher(30*time.Millisecond, func() { flushes.Add(1) })
	b.Signal()
	b.Stop()
	b.Stop()
	time.Sleep(80 * time.Millisecond)
	if got := flushes.Load(); got != 0 {
		t.Fatalf("expected no flush after stop, got %d", got)
	}
	b.Signal()
	time.Sleep(80 * time.Millisecond)
	if got := flushes.Load(); got != 0 {
		t.Fatalf("expected signals after stop ignored, got %d flushes", got)
	}
}
