// Package memory backs the repository interfaces with in-process storage. It
// serves tests and deployments that run without PostgreSQL.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
	"github.com/crazybass81/DOT-sub003/internal/repository"
)

// Repository keeps snapshots and alerts in memory.
type Repository struct {
	mu        sync.Mutex
	snapshots []domain.HealthSnapshot
	alerts    []domain.Alert
}

// New constructs an empty in-memory repository.
func New() *Repository {
	return &Repository{}
}

var (
	_ repository.HistoryRepository = (*Repository)(nil)
	_ repository.AlertRepository   = (*Repository)(nil)
)

// InsertHealthSnapshot appends a snapshot keeping the series ordered by time.
func (r *Repository) InsertHealthSnapshot(_ context.Context, snapshot domain.HealthSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.snapshots)
	for idx > 0 && r.snapshots[idx-1].Timestamp.After(snapshot.Timestamp) {
		idx--
	}
	r.snapshots = append(r.snapshots, domain.HealthSnapshot{})
	copy(r.snapshots[idx+1:], r.snapshots[idx:])
	r.snapshots[idx] = snapshot
	return nil
}

// ListHealthSnapshotsSince returns snapshots at or after the given instant.
func (r *Repository) ListHealthSnapshotsSince(_ context.Context, since time.Time) ([]domain.HealthSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.HealthSnapshot
	for _, snap := range r.snapshots {
		if !snap.Timestamp.Before(since) {
			result = append(result, snap)
		}
	}
	return result, nil
}

// DeleteHealthSnapshotsBefore removes snapshots strictly older than cutoff.
func (r *Repository) DeleteHealthSnapshotsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.snapshots[:0]
	var removed int64
	for _, snap := range r.snapshots {
		if snap.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, snap)
	}
	r.snapshots = kept
	return removed, nil
}

// InsertAlert records an alert.
func (r *Repository) InsertAlert(_ context.Context, alert domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

// ListRecentAlerts returns the most recent alerts, newest first.
func (r *Repository) ListRecentAlerts(_ context.Context, limit int) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var result []domain.Alert
	for i := len(r.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, r.alerts[i])
	}
	return result, nil
}
