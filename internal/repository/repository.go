package repository

import (
	"context"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
)

// HistoryRepository persists health snapshots for trend analysis.
type HistoryRepository interface {
	InsertHealthSnapshot(ctx context.Context, snapshot domain.HealthSnapshot) error
	ListHealthSnapshotsSince(ctx context.Context, since time.Time) ([]domain.HealthSnapshot, error)
	DeleteHealthSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertRepository records emitted alerts for operator review.
type AlertRepository interface {
	InsertAlert(ctx context.Context, alert domain.Alert) error
	ListRecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
}
