package metrics

import (
	"fmt"
	"testing"
	"time"
)

type timedItem struct {
	id string
	at time.Time
}

func TestBufferKeepsMostRecentWhenFull(t *testing.T) {
	buf, err := NewBuffer[string](5)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for i := 0; i < 7; i++ {
		buf.Add(fmt.Sprintf("req-%d", i))
	}
	if buf.Len() != 5 {
		t.Fatalf("expected 5 retained items, got %d", buf.Len())
	}
	items := buf.Items()
	want := []string{"req-2", "req-3", "req-4", "req-5", "req-6"}
	for i, item := range items {
		if item != want[i] {
			t.Fatalf("expected %q at position %d, got %q", want[i], i, item)
		}
	}
}

func TestBufferZeroCapacityRetainsNothing(t *testing.T) {
	buf, err := NewBuffer[int](0)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	buf.Add(1)
	buf.Add(2)
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d items", buf.Len())
	}
	if items := buf.Items(); len(items) != 0 {
		t.Fatalf("expected no items, got %v", items)
	}
}

func TestBufferCapacityOneAlwaysHoldsNewest(t *testing.T) {
	buf, err := NewBuffer[string](1)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	buf.Add("first")
	buf.Add("second")
	buf.Add("third")
	items := buf.Items()
	if len(items) != 1 || items[0] != "third" {
		t.Fatalf("expected [third], got %v", items)
	}
}

func TestBufferLatestReturnsTailInOrder(t *testing.T) {
	buf, err := NewBuffer[int](10)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for i := 1; i <= 6; i++ {
		buf.Add(i)
	}
	latest := buf.Latest(3)
	want := []int{4, 5, 6}
	if len(latest) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(latest))
	}
	for i, v := range latest {
		if v != want[i] {
			t.Fatalf("expected %d at position %d, got %d", want[i], i, v)
		}
	}
	if got := buf.Latest(100); len(got) != 6 {
		t.Fatalf("expected all 6 items when n exceeds count, got %d", len(got))
	}
	if got := buf.Latest(0); got != nil {
		t.Fatalf("expected nil for n=0, got %v", got)
	}
}

func TestBufferStatisticsEmptyIsZero(t *testing.T) {
	buf, err := NewBuffer[float64](4)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	stats := buf.Statistics(func(v float64) float64 { return v })
	if stats.Count != 0 || stats.Sum != 0 || stats.Average != 0 || stats.Min != 0 || stats.Max != 0 {
		t.Fatalf("expected zeroed stats for empty buffer, got %+v", stats)
	}
}

func TestBufferStatisticsAggregates(t *testing.T) {
	buf, err := NewBuffer[float64](10)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for _, v := range []float64{100, 150, 75, 250, 300} {
		buf.Add(v)
	}
	stats := buf.Statistics(func(v float64) float64 { return v })
	if stats.Count != 5 {
		t.Fatalf("expected count 5, got %d", stats.Count)
	}
	if stats.Sum != 875 {
		t.Fatalf("expected sum 875, got %v", stats.Sum)
	}
	if stats.Average != 175 {
		t.Fatalf("expected average 175, got %v", stats.Average)
	}
	if stats.Min != 75 || stats.Max != 300 {
		t.Fatalf("expected min 75 max 300, got %v / %v", stats.Min, stats.Max)
	}
}

func TestBufferItemsBetweenInvertedRangeIsEmpty(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	buf, err := NewBuffer[timedItem](10, WithTimestamp(func(it timedItem) time.Time { return it.at }))
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for i := 0; i < 4; i++ {
		buf.Add(timedItem{id: fmt.Sprintf("it-%d", i), at: base.Add(time.Duration(i) * time.Minute)})
	}
	if got := buf.ItemsBetween(base.Add(time.Hour), base); got != nil {
		t.Fatalf("expected nil for inverted range, got %v", got)
	}
	in := buf.ItemsBetween(base.Add(time.Minute), base.Add(2*time.Minute))
	if len(in) != 2 || in[0].id != "it-1" || in[1].id != "it-2" {
		t.Fatalf("unexpected range result %v", in)
	}
}

func TestBufferCleanupEvictsExpired(t *testing.T) {
	buf, err := NewBuffer[timedItem](10,
		WithTimestamp(func(it timedItem) time.Time { return it.at }),
		WithRetention[timedItem](time.Hour))
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	now := time.Now()
	buf.Add(timedItem{id: "stale", at: now.Add(-2 * time.Hour)})
	buf.Add(timedItem{id: "fresh", at: now.Add(-time.Minute)})
	buf.Cleanup()
	items := buf.Items()
	if len(items) != 1 || items[0].id != "fresh" {
		t.Fatalf("expected only fresh item after cleanup, got %v", items)
	}
}

func TestBufferRejectsInvalidConfiguration(t *testing.T) {
	if _, err := NewBuffer[int](-1); err == nil {
		t.Fatal("expected error for negative capacity")
	}
	if _, err := NewBuffer[int](4, WithRetention[int](time.Hour)); err == nil {
		t.Fatal("expected error for retention without timestamp projection")
	}
	if _, err := NewBuffer[int](4, WithAutoCleanup[int](time.Minute)); err == nil {
		t.Fatal("expected error for auto-cleanup without retention")
	}
	if _, err := NewBuffer[timedItem](4,
		WithTimestamp(func(it timedItem) time.Time { return it.at }),
		WithRetention[timedItem](-time.Hour)); err == nil {
		t.Fatal("expected error for negative retention")
	}
}

func TestBufferStopIsIdempotent(t *testing.T) {
	buf, err := NewBuffer[timedItem](4,
		WithTimestamp(func(it timedItem) time.Time { return it.at }),
		WithRetention[timedItem](time.Hour),
		WithAutoCleanup[timedItem](time.Minute))
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	buf.Stop()
	buf.Stop()
}

func TestBufferCleanupResumesAfterRestart(t *testing.T) {
	buf, err := NewBuffer[timedItem](4,
		WithTimestamp(func(it timedItem) time.Time { return it.at }),
		WithRetention[timedItem](time.Hour),
		WithAutoCleanup[timedItem](5*time.Millisecond))
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	buf.Stop()
	buf.Add(timedItem{id: "stale", at: time.Now().Add(-2 * time.Hour)})
	buf.StartCleanup()
	defer buf.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for buf.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed cleanup did not resume after restart")
		}
		time.Sleep(time.Millisecond)
	}
}
