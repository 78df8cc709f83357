package valuation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/currency"
)

// Failure records a portfolio that could not be valued or aggregated
type Failure struct {
	PortfolioID int64 `json:"portfolio_id"`
	Err         error `json:"-"`
}

// Aggregate combines portfolio results into one result in the reporting
// currency. Each portfolio's rounded totals are converted exactly once;
// holdings are converted only to feed the breakdown. A portfolio whose
// totals cannot be converted is left out and returned as a Failure.
func Aggregate(results []*PortfolioPnL, reporting string, rates currency.Rates) (*PortfolioPnL, []Failure) {
	agg := &PortfolioPnL{
		Currency: reporting,
		Holdings: []HoldingPnL{},
	}
	var failures []Failure
	value, cost, daily := decimal.Zero, decimal.Zero, decimal.Zero
	realized, dividends := decimal.Zero, decimal.Zero
	missing := map[string]struct{}{}

	for _, r := range results {
		rate, err := rates.Rate(r.Currency, reporting)
		if err != nil {
			failures = append(failures, Failure{PortfolioID: r.PortfolioID, Err: err})
			continue
		}

		value = value.Add(currency.Round(r.TotalValue.Mul(rate), reporting))
		cost = cost.Add(currency.Round(r.TotalCost.Mul(rate), reporting))
		daily = daily.Add(currency.Round(r.DailyPnL.Mul(rate), reporting))
		realized = realized.Add(currency.Round(r.RealizedPnL.Mul(rate), reporting))
		dividends = dividends.Add(currency.Round(r.Dividends.Mul(rate), reporting))

		for _, h := range r.Holdings {
			h.MarketValue = h.MarketValue.Mul(rate)
			h.Cost = h.Cost.Mul(rate)
			h.UnrealizedPnL = h.UnrealizedPnL.Mul(rate)
			h.DailyPnL = h.DailyPnL.Mul(rate)
			agg.Holdings = append(agg.Holdings, h)
		}
		for _, s := range r.MissingQuotes {
			missing[s] = struct{}{}
		}
	}

	agg.TotalValue = value
	agg.TotalCost = cost
	agg.DailyPnL = daily
	agg.RealizedPnL = realized
	agg.Dividends = dividends
	agg.finish()
	for s := range missing {
		agg.MissingQuotes = append(agg.MissingQuotes, s)
	}
	sort.Strings(agg.MissingQuotes)
	return agg, failures
}
