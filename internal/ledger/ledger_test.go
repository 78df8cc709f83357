package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func entry(id int64, kind models.TransactionKind, d int, qty, price string) models.Transaction {
	return models.Transaction{
		ID:       id,
		Kind:     kind,
		Date:     day(d),
		Quantity: decimal.RequireFromString(qty),
		Price:    decimal.RequireFromString(price),
		Fee:      decimal.Zero,
		Currency: "USD",
	}
}

func ids(txs []models.Transaction) []int64 {
	out := make([]int64, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func TestSorted_OrdersByDayThenID(t *testing.T) {
	txs := []models.Transaction{
		entry(5, models.TransactionSell, 3, "1", "10"),
		entry(0, models.TransactionBuy, 2, "1", "10"),
		entry(2, models.TransactionBuy, 2, "1", "10"),
		entry(9, models.TransactionBuy, 1, "1", "10"),
		entry(1, models.TransactionBuy, 2, "1", "10"),
	}
	// intraday time must not affect ordering
	txs[2].Date = day(2).Add(23 * time.Hour)

	assert.Equal(t, []int64{9, 1, 2, 0, 5}, ids(Sorted(txs)))
	assert.Equal(t, int64(5), txs[0].ID, "input is not reordered")
}

func TestAppend_LeavesReceiverUnchanged(t *testing.T) {
	l := New([]models.Transaction{entry(2, models.TransactionBuy, 2, "1", "10")})
	next := l.Append(entry(1, models.TransactionBuy, 1, "1", "10"))

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 2, next.Len())
	assert.Equal(t, []int64{1, 2}, ids(next.Entries()))

	entries := next.Entries()
	entries[0].ID = 99
	assert.Equal(t, []int64{1, 2}, ids(next.Entries()), "Entries returns a copy")
}

func TestValidateTransaction(t *testing.T) {
	valid := entry(0, models.TransactionBuy, 1, "1", "10")

	tests := []struct {
		name   string
		mutate func(tx *models.Transaction)
		ok     bool
	}{
		{"valid buy", func(tx *models.Transaction) {}, true},
		{"zero quantity buy", func(tx *models.Transaction) { tx.Quantity = decimal.Zero }, false},
		{"negative sell", func(tx *models.Transaction) {
			tx.Kind = models.TransactionSell
			tx.Quantity = decimal.NewFromInt(-1)
		}, false},
		{"zero quantity dividend", func(tx *models.Transaction) {
			tx.Kind = models.TransactionDividend
			tx.Quantity = decimal.Zero
		}, true},
		{"unknown kind", func(tx *models.Transaction) { tx.Kind = "split" }, false},
		{"negative price", func(tx *models.Transaction) { tx.Price = decimal.NewFromInt(-1) }, false},
		{"negative fee", func(tx *models.Transaction) { tx.Fee = decimal.NewFromInt(-1) }, false},
		{"missing date", func(tx *models.Transaction) { tx.Date = time.Time{} }, false},
		{"currency mismatch", func(tx *models.Transaction) { tx.Currency = "JPY" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := ValidateTransaction(tx, "USD")
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestValidateTransaction_UnknownKindIsUnknownEnum(t *testing.T) {
	tx := entry(0, "split", 1, "1", "10")
	assert.ErrorIs(t, ValidateTransaction(tx, "USD"), models.ErrUnknownEnum)
}

func TestValidateEntry(t *testing.T) {
	existing := []models.Transaction{
		entry(1, models.TransactionBuy, 2, "10", "100"),
		entry(2, models.TransactionSell, 5, "6", "110"),
	}

	t.Run("sell within position", func(t *testing.T) {
		assert.NoError(t, ValidateEntry(existing, entry(0, models.TransactionSell, 6, "4", "120"), "USD"))
	})

	t.Run("oversell reports the shortfall", func(t *testing.T) {
		err := ValidateEntry(existing, entry(0, models.TransactionSell, 6, "5", "120"), "USD")
		var nq *NegativeQuantityError
		require.True(t, errors.As(err, &nq))
		assert.True(t, decimal.NewFromInt(-1).Equal(nq.Quantity))
		assert.Equal(t, day(6), nq.Date)
		assert.ErrorIs(t, err, ErrInvalidEntry)
	})

	t.Run("backdated sell breaks a later sell", func(t *testing.T) {
		err := ValidateEntry(existing, entry(0, models.TransactionSell, 3, "5", "120"), "USD")
		var nq *NegativeQuantityError
		require.True(t, errors.As(err, &nq))
		assert.Equal(t, int64(2), nq.TransactionID)
	})

	t.Run("backdated buy is fine", func(t *testing.T) {
		assert.NoError(t, ValidateEntry(existing, entry(0, models.TransactionBuy, 1, "1", "90"), "USD"))
	})

	t.Run("editing a buy below the later sell", func(t *testing.T) {
		err := ValidateEntry(existing, entry(1, models.TransactionBuy, 2, "5", "100"), "USD")
		assert.Error(t, err)
	})

	t.Run("editing a buy keeps the sell covered", func(t *testing.T) {
		assert.NoError(t, ValidateEntry(existing, entry(1, models.TransactionBuy, 2, "6", "100"), "USD"))
	})
}

func TestValidateRemoval(t *testing.T) {
	existing := []models.Transaction{
		entry(1, models.TransactionBuy, 2, "10", "100"),
		entry(2, models.TransactionBuy, 3, "5", "100"),
		entry(3, models.TransactionSell, 5, "12", "110"),
	}

	assert.NoError(t, ValidateRemoval(existing, 3))
	assert.Error(t, ValidateRemoval(existing, 2))
	assert.NoError(t, ValidateRemoval(existing, 42), "unknown ids leave the ledger intact")
}
