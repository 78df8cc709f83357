package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

func TestQuotesRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	quote := func(symbol string, date time.Time, close string) *models.PriceQuote {
		c := decimal.RequireFromString(close)
		return &models.PriceQuote{
			Symbol: symbol, Date: date, Open: c, High: c, Low: c, Close: c,
			PreviousClose: c.Sub(decimal.NewFromInt(1)), Currency: "USD",
		}
	}

	t.Run("GetLatestQuotes returns the newest quote per symbol", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertQuoteBatch([]*models.PriceQuote{
			quote("AAPL", day(2026, 1, 2), "180"),
			quote("AAPL", day(2026, 1, 5), "185"),
			quote("MSFT", day(2026, 1, 5), "410"),
		}))

		quotes, err := testDB.GetLatestQuotes([]string{"AAPL", "MSFT", "NONE"})
		require.NoError(t, err)
		require.Len(t, quotes, 2)
		assert.True(t, decimal.NewFromInt(185).Equal(quotes["AAPL"].Close))
		assert.Equal(t, models.MarketStateRegular, quotes["AAPL"].MarketState)
		assert.False(t, quotes["AAPL"].PreMarketPrice.Valid)
		_, ok := quotes["NONE"]
		assert.False(t, ok)
	})

	t.Run("UpsertQuote replaces the quote of the same day", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertQuote(quote("AAPL", day(2026, 1, 5), "185")))
		q := quote("AAPL", day(2026, 1, 5), "186")
		q.MarketState = models.MarketStatePost
		q.PostMarketPrice = decimal.NewNullDecimal(decimal.RequireFromString("187.5"))
		require.NoError(t, testDB.UpsertQuote(q))

		quotes, err := testDB.GetLatestQuotes([]string{"AAPL"})
		require.NoError(t, err)
		got := quotes["AAPL"]
		assert.True(t, decimal.NewFromInt(186).Equal(got.Close))
		assert.Equal(t, models.MarketStatePost, got.MarketState)
		require.True(t, got.PostMarketPrice.Valid)
		assert.True(t, decimal.RequireFromString("187.5").Equal(got.PostMarketPrice.Decimal))
	})

	t.Run("DeleteQuotesOlderThan removes stale quotes", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertQuoteBatch([]*models.PriceQuote{
			quote("AAPL", day(2025, 1, 2), "150"),
			quote("AAPL", day(2026, 1, 5), "185"),
		}))

		deleted, err := testDB.DeleteQuotesOlderThan(day(2026, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})

	t.Run("GetLatestRate returns the newest rate of a pair", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertFXRate(&models.FXRate{From: "usd", To: "jpy", Date: day(2026, 1, 2), Rate: decimal.NewFromInt(148)}))
		require.NoError(t, testDB.UpsertFXRate(&models.FXRate{From: "USD", To: "JPY", Date: day(2026, 1, 5), Rate: decimal.NewFromInt(150)}))

		rate, err := testDB.GetLatestRate("USD", "JPY")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(150).Equal(rate))

		_, err = testDB.GetLatestRate("JPY", "USD")
		assert.True(t, IsNotFound(err))
	})
}
