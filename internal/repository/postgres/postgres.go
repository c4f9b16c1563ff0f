package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crazybass81/DOT-sub003/internal/domain"
	"github.com/crazybass81/DOT-sub003/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.HistoryRepository = (*Repository)(nil)
	_ repository.AlertRepository   = (*Repository)(nil)
)

// InsertHealthSnapshot appends one composite-score observation.
func (r *Repository) InsertHealthSnapshot(ctx context.Context, snapshot domain.HealthSnapshot) error {
	components, err := json.Marshal(snapshot.ComponentScores)
	if err != nil {
		return fmt.Errorf("marshal component scores: %w", err)
	}
	const query = `INSERT INTO health_snapshots (captured_at, composite_score, component_scores)
		VALUES ($1, $2, $3)`
	_, err = r.pool.Exec(ctx, query, snapshot.Timestamp, snapshot.CompositeScore, components)
	return err
}

// ListHealthSnapshotsSince returns snapshots at or after the given instant,
// oldest first.
func (r *Repository) ListHealthSnapshotsSince(ctx context.Context, since time.Time) ([]domain.HealthSnapshot, error) {
	const query = `SELECT captured_at, composite_score, component_scores
		FROM health_snapshots
		WHERE captured_at >= $1
		ORDER BY captured_at ASC`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []domain.HealthSnapshot
	for rows.Next() {
		var snap domain.HealthSnapshot
		var components []byte
		if err := rows.Scan(&snap.Timestamp, &snap.CompositeScore, &components); err != nil {
			return nil, err
		}
		if len(components) > 0 {
			if err := json.Unmarshal(components, &snap.ComponentScores); err != nil {
				return nil, fmt.Errorf("unmarshal component scores: %w", err)
			}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// DeleteHealthSnapshotsBefore removes snapshots strictly older than cutoff.
func (r *Repository) DeleteHealthSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM health_snapshots WHERE captured_at < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertAlert records one emitted alert.
func (r *Repository) InsertAlert(ctx context.Context, alert domain.Alert) error {
	channels, err := json.Marshal(alert.Channels)
	if err != nil {
		return fmt.Errorf("marshal alert channels: %w", err)
	}
	const query = `INSERT INTO alert_events (id, kind, severity, message, metric_value, threshold, endpoint, status, channels, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.pool.Exec(ctx, query,
		alert.ID, alert.Kind, alert.Severity, alert.Message,
		alert.MetricValue, alert.Threshold, alert.Endpoint, alert.Status,
		channels, alert.Timestamp)
	return err
}

// ListRecentAlerts returns the most recent alerts, newest first.
func (r *Repository) ListRecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, kind, severity, message, metric_value, threshold, endpoint, status, channels, created_at
		FROM alert_events
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var alert domain.Alert
		var channels []byte
		if err := rows.Scan(&alert.ID, &alert.Kind, &alert.Severity, &alert.Message,
			&alert.MetricValue, &alert.Threshold, &alert.Endpoint, &alert.Status,
			&channels, &alert.Timestamp); err != nil {
			return nil, err
		}
		if len(channels) > 0 {
			if err := json.Unmarshal(channels, &alert.Channels); err != nil {
				return nil, fmt.Errorf("unmarshal alert channels: %w", err)
			}
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
