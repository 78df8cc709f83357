package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

func TestPortfoliosRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("CreatePortfolio creates new portfolio", func(t *testing.T) {
		testDB.TruncateAll(t)

		p := &models.Portfolio{
			Name:         "Main",
			AccountType:  models.AccountGeneral,
			BaseCurrency: "JPY",
			SortOrder:    1,
			Color:        "#ff0000",
		}
		err := testDB.CreatePortfolio(p)
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.False(t, p.CreatedAt.IsZero())

		retrieved, err := testDB.GetPortfolioByID(p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Main", retrieved.Name)
		assert.Equal(t, models.AccountGeneral, retrieved.AccountType)
		assert.Equal(t, "JPY", retrieved.BaseCurrency)
		assert.Equal(t, "#ff0000", retrieved.Color)
	})

	t.Run("GetPortfolioByID returns error for non-existent ID", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetPortfolioByID(99999)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("GetAllPortfolios orders by sort order", func(t *testing.T) {
		testDB.TruncateAll(t)

		for i, name := range []string{"B", "A", "C"} {
			p := &models.Portfolio{Name: name, AccountType: models.AccountGeneral, BaseCurrency: "USD", SortOrder: 3 - i}
			require.NoError(t, testDB.CreatePortfolio(p))
		}

		all, err := testDB.GetAllPortfolios()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "C", all[0].Name)
		assert.Equal(t, "A", all[1].Name)
		assert.Equal(t, "B", all[2].Name)
	})

	t.Run("UpdatePortfolio allows account type change without holdings", func(t *testing.T) {
		testDB.TruncateAll(t)

		p := createTestPortfolio(t, testDB, "NISA", models.AccountGeneral, "JPY")
		p.AccountType = models.AccountNISAGrowth
		require.NoError(t, testDB.UpdatePortfolio(p))

		retrieved, err := testDB.GetPortfolioByID(p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AccountNISAGrowth, retrieved.AccountType)
	})

	t.Run("UpdatePortfolio locks account type once holdings exist", func(t *testing.T) {
		testDB.TruncateAll(t)

		p := createTestPortfolio(t, testDB, "NISA", models.AccountNISAGrowth, "JPY")
		createTestHolding(t, testDB, p.ID, "7203", models.MarketJP)

		p.AccountType = models.AccountGeneral
		err := testDB.UpdatePortfolio(p)
		require.ErrorIs(t, err, models.ErrAccountTypeLocked)

		p.AccountType = models.AccountNISAGrowth
		p.Name = "Growth"
		require.NoError(t, testDB.UpdatePortfolio(p))
	})

	t.Run("UpdatePortfolio locks base currency once holdings exist", func(t *testing.T) {
		testDB.TruncateAll(t)

		p := createTestPortfolio(t, testDB, "Main", models.AccountGeneral, "JPY")
		p.BaseCurrency = "USD"
		require.NoError(t, testDB.UpdatePortfolio(p), "empty portfolio may switch currency")

		createTestHolding(t, testDB, p.ID, "AAPL", models.MarketUS)
		p.BaseCurrency = "JPY"
		err := testDB.UpdatePortfolio(p)
		require.ErrorIs(t, err, models.ErrBaseCurrencyLocked)

		retrieved, err := testDB.GetPortfolioByID(p.ID)
		require.NoError(t, err)
		assert.Equal(t, "USD", retrieved.BaseCurrency)
	})

	t.Run("DeletePortfolio cascades to holdings, transactions and snapshots", func(t *testing.T) {
		testDB.TruncateAll(t)

		p := createTestPortfolio(t, testDB, "Main", models.AccountGeneral, "USD")
		h := createTestHolding(t, testDB, p.ID, "AAPL", models.MarketUS)
		tx := &models.Transaction{
			HoldingID: h.ID, Kind: models.TransactionBuy, Date: time.Now(),
			Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), Currency: "USD",
		}
		require.NoError(t, testDB.CreateTransaction(tx))
		snap := &models.DailySnapshot{
			Scope: models.PortfolioScope(p.ID), Date: time.Now(), Currency: "USD",
			Breakdown: []byte("[]"),
		}
		require.NoError(t, testDB.UpsertSnapshot(snap))

		require.NoError(t, testDB.DeletePortfolio(p.ID))

		_, err := testDB.GetHoldingByID(h.ID)
		assert.True(t, IsNotFound(err))
		_, err = testDB.GetTransactionByID(tx.ID)
		assert.True(t, IsNotFound(err))
		_, err = testDB.GetLatestSnapshot(models.PortfolioScope(p.ID))
		assert.True(t, IsNotFound(err))
	})

	t.Run("DeletePortfolio returns error for non-existent ID", func(t *testing.T) {
		testDB.TruncateAll(t)

		err := testDB.DeletePortfolio(99999)
		assert.True(t, IsNotFound(err))
	})

	t.Run("LoadPortfolios returns full tree in ledger order", func(t *testing.T) {
		testDB.TruncateAll(t)

		p := createTestPortfolio(t, testDB, "Main", models.AccountGeneral, "JPY")
		h := createTestHolding(t, testDB, p.ID, "AAPL", models.MarketUS)
		empty := createTestPortfolio(t, testDB, "Empty", models.AccountGeneral, "USD")

		later := &models.Transaction{
			HoldingID: h.ID, Kind: models.TransactionBuy, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(190), Currency: "USD",
		}
		earlier := &models.Transaction{
			HoldingID: h.ID, Kind: models.TransactionBuy, Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(180), Currency: "USD",
		}
		require.NoError(t, testDB.CreateTransaction(later))
		require.NoError(t, testDB.CreateTransaction(earlier))

		portfolios, err := testDB.LoadPortfolios()
		require.NoError(t, err)
		require.Len(t, portfolios, 2)

		assert.Equal(t, p.ID, portfolios[0].ID)
		require.Len(t, portfolios[0].Holdings, 1)
		txs := portfolios[0].Holdings[0].Transactions
		require.Len(t, txs, 2)
		assert.Equal(t, earlier.ID, txs[0].ID)
		assert.Equal(t, later.ID, txs[1].ID)

		assert.Equal(t, empty.ID, portfolios[1].ID)
		assert.Empty(t, portfolios[1].Holdings)
	})
}
