package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

const snapshotSelect = `
		SELECT id, portfolio_id, snapshot_date, currency, total_value, total_cost,
		       daily_pnl, daily_pnl_pct, cumulative_pnl, breakdown, created_at, updated_at
		FROM daily_snapshots
`

// UpsertSnapshot stores the snapshot of (scope, date) in a single statement,
// replacing every field of an existing record for the same key. updated_at
// only moves when a stored value changes.
func (db *DB) UpsertSnapshot(s *models.DailySnapshot) error {
	query := `
		INSERT INTO daily_snapshots (
			scope_key, portfolio_id, snapshot_date, currency, total_value, total_cost,
			daily_pnl, daily_pnl_pct, cumulative_pnl, breakdown, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (scope_key, snapshot_date) DO UPDATE SET
			currency = EXCLUDED.currency,
			total_value = EXCLUDED.total_value,
			total_cost = EXCLUDED.total_cost,
			daily_pnl = EXCLUDED.daily_pnl,
			daily_pnl_pct = EXCLUDED.daily_pnl_pct,
			cumulative_pnl = EXCLUDED.cumulative_pnl,
			breakdown = EXCLUDED.breakdown,
			updated_at = CASE
				WHEN (daily_snapshots.currency, daily_snapshots.total_value, daily_snapshots.total_cost,
				      daily_snapshots.daily_pnl, daily_snapshots.daily_pnl_pct, daily_snapshots.cumulative_pnl,
				      daily_snapshots.breakdown)
				     IS DISTINCT FROM
				     (EXCLUDED.currency, EXCLUDED.total_value, EXCLUDED.total_cost,
				      EXCLUDED.daily_pnl, EXCLUDED.daily_pnl_pct, EXCLUDED.cumulative_pnl,
				      EXCLUDED.breakdown)
				THEN EXCLUDED.updated_at
				ELSE daily_snapshots.updated_at
			END
		RETURNING id, created_at, updated_at
	`
	day := models.Day(s.Date)
	err := db.conn.QueryRow(query,
		s.Scope.Key(), nullInt64(s.Scope.PortfolioID), day, s.Currency, s.TotalValue, s.TotalCost,
		s.DailyPnL, s.DailyPnLPercent, s.CumulativePnL, s.Breakdown, time.Now(),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	s.Date = day
	return nil
}

// GetSnapshot retrieves the snapshot of a scope on a day
func (db *DB) GetSnapshot(scope models.Scope, date time.Time) (*models.DailySnapshot, error) {
	snaps, err := scanSnapshots(db.conn.Query(snapshotSelect+`
		WHERE scope_key = $1 AND snapshot_date = $2
	`, scope.Key(), models.Day(date)))
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("snapshot %s on %s: %w", scope.Key(), models.Day(date).Format(models.DateLayout), ErrNotFound)
	}
	return snaps[0], nil
}

// GetLatestSnapshotBefore returns the most recent snapshot of the scope dated
// strictly before date, or nil when there is none
func (db *DB) GetLatestSnapshotBefore(scope models.Scope, date time.Time) (*models.DailySnapshot, error) {
	snaps, err := scanSnapshots(db.conn.Query(snapshotSelect+`
		WHERE scope_key = $1 AND snapshot_date < $2
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, scope.Key(), models.Day(date)))
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[0], nil
}

// GetLatestSnapshot returns the most recent snapshot of the scope
func (db *DB) GetLatestSnapshot(scope models.Scope) (*models.DailySnapshot, error) {
	snaps, err := scanSnapshots(db.conn.Query(snapshotSelect+`
		WHERE scope_key = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, scope.Key()))
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("snapshot %s: %w", scope.Key(), ErrNotFound)
	}
	return snaps[0], nil
}

// GetSnapshotRange returns the snapshots of a scope within [from, to] in date order
func (db *DB) GetSnapshotRange(scope models.Scope, from, to time.Time) ([]*models.DailySnapshot, error) {
	return scanSnapshots(db.conn.Query(snapshotSelect+`
		WHERE scope_key = $1 AND snapshot_date >= $2 AND snapshot_date <= $3
		ORDER BY snapshot_date ASC
	`, scope.Key(), models.Day(from), models.Day(to)))
}

func scanSnapshots(rows *sql.Rows, err error) ([]*models.DailySnapshot, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.DailySnapshot
	for rows.Next() {
		var s models.DailySnapshot
		var portfolioID sql.NullInt64

		err := rows.Scan(
			&s.ID, &portfolioID, &s.Date, &s.Currency, &s.TotalValue, &s.TotalCost,
			&s.DailyPnL, &s.DailyPnLPercent, &s.CumulativePnL, &s.Breakdown, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if portfolioID.Valid {
			s.Scope = models.PortfolioScope(portfolioID.Int64)
		}
		snaps = append(snaps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return snaps, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
