// Package snapshot turns valuations into one stored record per scope and day
// and derives calendar statistics from the stored sequence.
package snapshot

import (
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/models"
	"github.com/trogers1052/portfolio-tracker/internal/valuation"
)

// Store persists snapshots. UpsertSnapshot must replace the record for
// (scope, date) atomically. GetLatestSnapshotBefore returns nil, nil when
// the scope has no earlier record.
type Store interface {
	GetLatestSnapshotBefore(scope models.Scope, date time.Time) (*models.DailySnapshot, error)
	UpsertSnapshot(s *models.DailySnapshot) error
}

// Aggregator writes daily snapshots
type Aggregator struct {
	store Store
}

// NewAggregator creates a new Aggregator
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Upsert builds the snapshot of scope for the day of date and stores it,
// overwriting any record already stored for that day
func (a *Aggregator) Upsert(scope models.Scope, date time.Time, v *valuation.PortfolioPnL) (*models.DailySnapshot, error) {
	day := models.Day(date)
	prev, err := a.store.GetLatestSnapshotBefore(scope, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshot for %s: %w", scope.Key(), err)
	}

	s, err := Build(scope, day, v, prev)
	if err != nil {
		return nil, err
	}
	if err := a.store.UpsertSnapshot(s); err != nil {
		return nil, fmt.Errorf("failed to upsert snapshot for %s on %s: %w", scope.Key(), day.Format(models.DateLayout), err)
	}
	return s, nil
}

// Build computes the snapshot record without touching storage. The
// cumulative P&L chains onto prev, the latest earlier record of the scope.
// A prev in another currency restarts the chain at today's daily P&L.
func Build(scope models.Scope, date time.Time, v *valuation.PortfolioPnL, prev *models.DailySnapshot) (*models.DailySnapshot, error) {
	blob, err := EncodeBreakdown(BuildBreakdown(v))
	if err != nil {
		return nil, err
	}

	cumulative := v.DailyPnL
	if prev != nil && prev.Currency == v.Currency {
		cumulative = prev.CumulativePnL.Add(v.DailyPnL)
	}

	return &models.DailySnapshot{
		Scope:           scope,
		Date:            models.Day(date),
		Currency:        v.Currency,
		TotalValue:      v.TotalValue,
		TotalCost:       v.TotalCost,
		DailyPnL:        v.DailyPnL,
		DailyPnLPercent: v.DailyPnLPercent,
		CumulativePnL:   cumulative,
		Breakdown:       blob,
	}, nil
}
