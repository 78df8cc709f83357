package quota

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

func yen(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func assertYen(t *testing.T, want int64, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, yen(want).Equal(got), "%s: want %d, got %s", msg, want, got)
}

func nisaTx(kind models.TransactionKind, year int, qty, price int64) models.Transaction {
	return models.Transaction{
		Kind:     kind,
		Date:     time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC),
		Quantity: yen(qty),
		Price:    yen(price),
		Fee:      decimal.Zero,
		Currency: "JPY",
	}
}

func portfolio(account models.AccountType, txs ...models.Transaction) models.Portfolio {
	return models.Portfolio{
		AccountType:  account,
		BaseCurrency: "JPY",
		Holdings:     []models.Holding{{Symbol: "EMAXIS", Market: models.MarketJP, Transactions: txs}},
	}
}

func TestCompute_AccumulationScenario(t *testing.T) {
	portfolios := []models.Portfolio{portfolio(models.AccountNISAAccumulation,
		nisaTx(models.TransactionBuy, 2025, 10, 10_000),
		nisaTx(models.TransactionSell, 2025, 4, 10_000),
	)}

	y := Compute(portfolios, 2025, DefaultLimits())
	assertYen(t, 100_000, y.Accumulation.AnnualUsed, "annual used")
	assertYen(t, 1_100_000, y.Accumulation.AnnualRemaining, "annual remaining")
	assertYen(t, 1_200_000, y.Accumulation.AnnualLimit, "annual limit")
	assertYen(t, 100_000, y.LifetimeUsed, "lifetime used in the year of the sale")
	assert.InDelta(t, 100_000.0/1_200_000.0, y.Accumulation.AnnualRatio, 1e-12)

	next := Compute(portfolios, 2026, DefaultLimits())
	assertYen(t, 0, next.Accumulation.AnnualUsed, "annual resets")
	assertYen(t, 60_000, next.LifetimeUsed, "sale frees quota the following year")
	assertYen(t, 17_940_000, next.LifetimeRemaining, "lifetime remaining")
}

func TestCompute_IgnoresGeneralAccountsAndFutureYears(t *testing.T) {
	portfolios := []models.Portfolio{
		portfolio(models.AccountGeneral, nisaTx(models.TransactionBuy, 2025, 1, 5_000_000)),
		portfolio(models.AccountNISAGrowth, nisaTx(models.TransactionBuy, 2027, 1, 500_000)),
	}

	u := Compute(portfolios, 2025, DefaultLimits())
	assertYen(t, 0, u.LifetimeUsed, "lifetime used")
	assertYen(t, 0, u.Growth.AnnualUsed, "growth annual used")
	assert.Equal(t, 0.0, u.LifetimeRatio)
}

func TestCompute_ClampsAtLimits(t *testing.T) {
	portfolios := []models.Portfolio{
		portfolio(models.AccountNISAGrowth, nisaTx(models.TransactionBuy, 2025, 1, 3_000_000)),
		portfolio(models.AccountNISAAccumulation, nisaTx(models.TransactionBuy, 2024, 1, 1_000_000)),
	}

	u := Compute(portfolios, 2025, DefaultLimits())
	assertYen(t, 3_000_000, u.Growth.AnnualUsed, "usage is reported as is")
	assertYen(t, 0, u.Growth.AnnualRemaining, "remaining never goes negative")
	assert.Equal(t, 1.0, u.Growth.AnnualRatio)
	assertYen(t, 4_000_000, u.LifetimeUsed, "buckets share the lifetime limit")
	assertYen(t, 9_000_000, u.GrowthLifetimeRemaining, "growth sub-cap")
}

func TestCompute_GrowthRemainingBoundByLifetime(t *testing.T) {
	limits := DefaultLimits()
	limits.Lifetime = yen(1_000_000)
	portfolios := []models.Portfolio{
		portfolio(models.AccountNISAAccumulation, nisaTx(models.TransactionBuy, 2025, 1, 800_000)),
	}

	u := Compute(portfolios, 2025, limits)
	assertYen(t, 200_000, u.LifetimeRemaining, "lifetime remaining")
	assertYen(t, 200_000, u.GrowthLifetimeRemaining, "growth cannot exceed the shared lifetime room")
}

func TestCompute_SellsNeverReduceAnnualUsage(t *testing.T) {
	portfolios := []models.Portfolio{portfolio(models.AccountNISAGrowth,
		nisaTx(models.TransactionBuy, 2024, 10, 100_000),
		nisaTx(models.TransactionSell, 2025, 10, 120_000),
		nisaTx(models.TransactionBuy, 2025, 1, 50_000),
	)}

	u := Compute(portfolios, 2025, DefaultLimits())
	assertYen(t, 50_000, u.Growth.AnnualUsed, "annual used")
	assertYen(t, 1_050_000, u.LifetimeUsed, "lifetime in the year of the sale")

	next := Compute(portfolios, 2026, DefaultLimits())
	assertYen(t, 0, next.LifetimeUsed, "lifetime usage never goes below zero")
}

func TestBucketFor(t *testing.T) {
	b, ok := BucketFor(models.AccountNISAAccumulation)
	assert.True(t, ok)
	assert.Equal(t, BucketAccumulation, b)

	_, ok = BucketFor(models.AccountGeneral)
	assert.False(t, ok)
}
