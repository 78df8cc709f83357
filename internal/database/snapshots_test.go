package database

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSnapshotsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	newSnapshot := func(scope models.Scope, date time.Time, value int64) *models.DailySnapshot {
		return &models.DailySnapshot{
			Scope:           scope,
			Date:            date,
			Currency:        "JPY",
			TotalValue:      decimal.NewFromInt(value),
			TotalCost:       decimal.NewFromInt(270000),
			DailyPnL:        decimal.NewFromInt(4500),
			DailyPnLPercent: 1.65,
			CumulativePnL:   decimal.NewFromInt(7500),
			Breakdown:       []byte(`[{"asset_class":"equity","currency":"USD","value":"277500","cost":"270000","pnl":"7500"}]`),
		}
	}

	t.Run("UpsertSnapshot twice keeps a single record", func(t *testing.T) {
		testDB.TruncateAll(t)

		first := newSnapshot(models.GlobalScope, day(2026, 1, 5), 277500)
		require.NoError(t, testDB.UpsertSnapshot(first))

		second := newSnapshot(models.GlobalScope, day(2026, 1, 5), 277500)
		require.NoError(t, testDB.UpsertSnapshot(second))
		assert.Equal(t, first.ID, second.ID)

		var count int
		err := testDB.GetRawConn().QueryRow(`SELECT COUNT(*) FROM daily_snapshots`).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		stored, err := testDB.GetSnapshot(models.GlobalScope, day(2026, 1, 5))
		require.NoError(t, err)
		assert.True(t, stored.Scope.IsGlobal())
		assert.True(t, decimal.NewFromInt(277500).Equal(stored.TotalValue))
		assert.True(t, decimal.NewFromInt(7500).Equal(stored.CumulativePnL))
		assert.Equal(t, 1.65, stored.DailyPnLPercent)
		assert.Equal(t, first.Breakdown, stored.Breakdown)
		assert.True(t, first.UpdatedAt.Equal(stored.UpdatedAt), "unchanged rerun keeps updated_at")
		assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
	})

	t.Run("UpsertSnapshot replaces every field on conflict", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertSnapshot(newSnapshot(models.GlobalScope, day(2026, 1, 5), 277500)))

		updated := newSnapshot(models.GlobalScope, day(2026, 1, 5), 280000)
		updated.Breakdown = []byte(`[]`)
		require.NoError(t, testDB.UpsertSnapshot(updated))

		stored, err := testDB.GetSnapshot(models.GlobalScope, day(2026, 1, 5))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(280000).Equal(stored.TotalValue))
		assert.Equal(t, []byte(`[]`), stored.Breakdown)
		assert.True(t, updated.UpdatedAt.Equal(stored.UpdatedAt))
	})

	t.Run("scopes are stored independently", func(t *testing.T) {
		testDB.TruncateAll(t)

		p := createTestPortfolio(t, testDB, "Main", models.AccountGeneral, "JPY")
		require.NoError(t, testDB.UpsertSnapshot(newSnapshot(models.GlobalScope, day(2026, 1, 5), 1000)))
		require.NoError(t, testDB.UpsertSnapshot(newSnapshot(models.PortfolioScope(p.ID), day(2026, 1, 5), 2000)))

		global, err := testDB.GetSnapshot(models.GlobalScope, day(2026, 1, 5))
		require.NoError(t, err)
		scoped, err := testDB.GetSnapshot(models.PortfolioScope(p.ID), day(2026, 1, 5))
		require.NoError(t, err)

		assert.NotEqual(t, global.ID, scoped.ID)
		require.NotNil(t, scoped.Scope.PortfolioID)
		assert.Equal(t, p.ID, *scoped.Scope.PortfolioID)
		assert.True(t, decimal.NewFromInt(2000).Equal(scoped.TotalValue))
	})

	t.Run("GetLatestSnapshotBefore skips gaps and ignores the same day", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertSnapshot(newSnapshot(models.GlobalScope, day(2026, 1, 2), 100)))
		require.NoError(t, testDB.UpsertSnapshot(newSnapshot(models.GlobalScope, day(2026, 1, 5), 200)))

		prev, err := testDB.GetLatestSnapshotBefore(models.GlobalScope, day(2026, 1, 5))
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.Equal(t, day(2026, 1, 2), prev.Date.UTC())

		prev, err = testDB.GetLatestSnapshotBefore(models.GlobalScope, day(2026, 1, 9))
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.Equal(t, day(2026, 1, 5), prev.Date.UTC())

		prev, err = testDB.GetLatestSnapshotBefore(models.GlobalScope, day(2026, 1, 2))
		require.NoError(t, err)
		assert.Nil(t, prev)
	})

	t.Run("GetSnapshotRange returns snapshots in date order", func(t *testing.T) {
		testDB.TruncateAll(t)

		for _, d := range []int{7, 3, 5, 12} {
			require.NoError(t, testDB.UpsertSnapshot(newSnapshot(models.GlobalScope, day(2026, 1, d), int64(d))))
		}

		snaps, err := testDB.GetSnapshotRange(models.GlobalScope, day(2026, 1, 3), day(2026, 1, 7))
		require.NoError(t, err)
		require.Len(t, snaps, 3)
		assert.Equal(t, 3, snaps[0].Date.Day())
		assert.Equal(t, 5, snaps[1].Date.Day())
		assert.Equal(t, 7, snaps[2].Date.Day())
	})

	t.Run("GetLatestSnapshot returns not found for empty scope", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetLatestSnapshot(models.GlobalScope)
		assert.True(t, IsNotFound(err))
	})
}

func TestUpsertSnapshot_SingleStatement(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	now := time.Now()
	id := int64(3)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (scope_key, snapshot_date) DO UPDATE")).
		WithArgs("portfolio:3", sqlmock.AnyArg(), day(2026, 1, 5), "JPY",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 1.5, sqlmock.AnyArg(), []byte("[]"), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))

	s := &models.DailySnapshot{
		Scope:           models.PortfolioScope(id),
		Date:            time.Date(2026, 1, 5, 18, 30, 0, 0, time.UTC),
		Currency:        "JPY",
		DailyPnLPercent: 1.5,
		Breakdown:       []byte("[]"),
	}
	require.NoError(t, db.UpsertSnapshot(s))
	assert.Equal(t, int64(42), s.ID)
	assert.Equal(t, day(2026, 1, 5), s.Date)

	require.NoError(t, mock.ExpectationsWereMet())
}
