// Package quota computes NISA tax-free quota usage. Each bucket has an
// annual limit; both buckets share a lifetime limit and the growth bucket
// has its own lifetime sub-cap. Sales free lifetime quota only from the
// year after the sale.
package quota

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Bucket is a NISA sub-account
type Bucket string

const (
	BucketAccumulation Bucket = "accumulation"
	BucketGrowth       Bucket = "growth"
)

// BucketFor maps a portfolio account type to its bucket
func BucketFor(a models.AccountType) (Bucket, bool) {
	switch a {
	case models.AccountNISAAccumulation:
		return BucketAccumulation, true
	case models.AccountNISAGrowth:
		return BucketGrowth, true
	}
	return "", false
}

// Limits are the quota limits in yen
type Limits struct {
	AccumulationAnnual decimal.Decimal `json:"accumulation_annual"`
	GrowthAnnual       decimal.Decimal `json:"growth_annual"`
	Lifetime           decimal.Decimal `json:"lifetime"`
	GrowthLifetime     decimal.Decimal `json:"growth_lifetime"`
}

// DefaultLimits returns the limits in force since 2024
func DefaultLimits() Limits {
	return Limits{
		AccumulationAnnual: decimal.NewFromInt(1_200_000),
		GrowthAnnual:       decimal.NewFromInt(2_400_000),
		Lifetime:           decimal.NewFromInt(18_000_000),
		GrowthLifetime:     decimal.NewFromInt(12_000_000),
	}
}

// BucketUsage is the state of one bucket
type BucketUsage struct {
	AnnualLimit     decimal.Decimal `json:"annual_limit"`
	AnnualUsed      decimal.Decimal `json:"annual_used"`
	AnnualRemaining decimal.Decimal `json:"annual_remaining"`
	AnnualRatio     float64         `json:"annual_ratio"`
	LifetimeUsed    decimal.Decimal `json:"lifetime_used"`
}

// Usage is the quota state as of a year
type Usage struct {
	Year                    int             `json:"year"`
	Accumulation            BucketUsage     `json:"accumulation"`
	Growth                  BucketUsage     `json:"growth"`
	LifetimeLimit           decimal.Decimal `json:"lifetime_limit"`
	LifetimeUsed            decimal.Decimal `json:"lifetime_used"`
	LifetimeRemaining       decimal.Decimal `json:"lifetime_remaining"`
	LifetimeRatio           float64         `json:"lifetime_ratio"`
	GrowthLifetimeLimit     decimal.Decimal `json:"growth_lifetime_limit"`
	GrowthLifetimeRemaining decimal.Decimal `json:"growth_lifetime_remaining"`
}

type tally struct {
	annualBuys decimal.Decimal
	buys       decimal.Decimal
	priorSells decimal.Decimal
}

// Compute classifies the buy and sell notional of every NISA portfolio.
// Annual usage counts buys dated in asOfYear; sells never reduce it.
// Lifetime usage counts buys up to asOfYear less sells dated strictly before
// asOfYear. Remaining amounts and ratios are clamped to [0, limit].
func Compute(portfolios []models.Portfolio, asOfYear int, limits Limits) Usage {
	tallies := map[Bucket]*tally{
		BucketAccumulation: {decimal.Zero, decimal.Zero, decimal.Zero},
		BucketGrowth:       {decimal.Zero, decimal.Zero, decimal.Zero},
	}

	for _, p := range portfolios {
		bucket, ok := BucketFor(p.AccountType)
		if !ok {
			continue
		}
		t := tallies[bucket]
		for _, h := range p.Holdings {
			for _, tx := range h.Transactions {
				year := tx.Date.Year()
				if year > asOfYear {
					continue
				}
				switch tx.Kind {
				case models.TransactionBuy:
					t.buys = t.buys.Add(tx.Notional())
					if year == asOfYear {
						t.annualBuys = t.annualBuys.Add(tx.Notional())
					}
				case models.TransactionSell:
					if year < asOfYear {
						t.priorSells = t.priorSells.Add(tx.Notional())
					}
				}
			}
		}
	}

	acc := bucketUsage(tallies[BucketAccumulation], limits.AccumulationAnnual)
	growth := bucketUsage(tallies[BucketGrowth], limits.GrowthAnnual)

	used := acc.LifetimeUsed.Add(growth.LifetimeUsed)
	remaining := clamp(limits.Lifetime.Sub(used), limits.Lifetime)
	growthRemaining := clamp(limits.GrowthLifetime.Sub(growth.LifetimeUsed), limits.GrowthLifetime)
	if growthRemaining.GreaterThan(remaining) {
		growthRemaining = remaining
	}

	return Usage{
		Year:                    asOfYear,
		Accumulation:            acc,
		Growth:                  growth,
		LifetimeLimit:           limits.Lifetime,
		LifetimeUsed:            used,
		LifetimeRemaining:       remaining,
		LifetimeRatio:           ratio(used, limits.Lifetime),
		GrowthLifetimeLimit:     limits.GrowthLifetime,
		GrowthLifetimeRemaining: growthRemaining,
	}
}

func bucketUsage(t *tally, annualLimit decimal.Decimal) BucketUsage {
	lifetime := t.buys.Sub(t.priorSells)
	if lifetime.IsNegative() {
		lifetime = decimal.Zero
	}
	return BucketUsage{
		AnnualLimit:     annualLimit,
		AnnualUsed:      t.annualBuys,
		AnnualRemaining: clamp(annualLimit.Sub(t.annualBuys), annualLimit),
		AnnualRatio:     ratio(t.annualBuys, annualLimit),
		LifetimeUsed:    lifetime,
	}
}

func clamp(v, limit decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(limit) {
		return limit
	}
	return v
}

func ratio(used, limit decimal.Decimal) float64 {
	if !limit.IsPositive() {
		return 0
	}
	r := used.Div(limit).InexactFloat64()
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
