// Package valuation marks portfolios to market in their base currency and
// aggregates portfolio totals into a reporting currency.
package valuation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/costbasis"
	"github.com/trogers1052/portfolio-tracker/internal/currency"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

var hundred = decimal.NewFromInt(100)

// HoldingPnL is the valuation of one open holding. Money fields are in the
// portfolio's base currency, prices in the holding's native currency.
type HoldingPnL struct {
	HoldingID      int64             `json:"holding_id"`
	Symbol         string            `json:"symbol"`
	AssetClass     models.AssetClass `json:"asset_class"`
	Currency       string            `json:"currency"`
	Quantity       decimal.Decimal   `json:"quantity"`
	AverageCost    decimal.Decimal   `json:"average_cost"`
	EffectivePrice decimal.Decimal   `json:"effective_price"`
	PreviousClose  decimal.Decimal   `json:"previous_close"`
	MarketValue    decimal.Decimal   `json:"market_value"`
	Cost           decimal.Decimal   `json:"cost"`
	UnrealizedPnL  decimal.Decimal   `json:"unrealized_pnl"`
	DailyPnL       decimal.Decimal   `json:"daily_pnl"`
}

// PortfolioPnL is the valuation of a portfolio, or of the global aggregate
// when PortfolioID is 0
type PortfolioPnL struct {
	PortfolioID          int64           `json:"portfolio_id,omitempty"`
	Currency             string          `json:"currency"`
	TotalValue           decimal.Decimal `json:"total_value"`
	TotalCost            decimal.Decimal `json:"total_cost"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64         `json:"unrealized_pnl_percent"`
	DailyPnL             decimal.Decimal `json:"daily_pnl"`
	DailyPnLPercent      float64         `json:"daily_pnl_percent"`
	RealizedPnL          decimal.Decimal `json:"realized_pnl"`
	Dividends            decimal.Decimal `json:"dividends"`
	Holdings             []HoldingPnL    `json:"holdings"`
	// Symbols of open holdings left out of the totals for lack of a quote
	MissingQuotes []string `json:"missing_quotes,omitempty"`
}

// EffectivePrice selects the price of the session the quote was taken in.
// Pre and post market fall back to the close when the session price is absent.
func EffectivePrice(q models.PriceQuote) decimal.Decimal {
	switch q.MarketState {
	case models.MarketStatePre:
		if q.PreMarketPrice.Valid {
			return q.PreMarketPrice.Decimal
		}
	case models.MarketStatePost:
		if q.PostMarketPrice.Valid {
			return q.PostMarketPrice.Decimal
		}
	}
	return q.Close
}

// Valuate values every open holding of p with quotes keyed by symbol and
// rates into p.BaseCurrency. Transactions dated asOf are treated as same-day
// cash flows when computing daily P&L.
//
// A holding without a quote is skipped and listed in MissingQuotes. A missing
// rate fails the whole portfolio with a *currency.MissingRateError.
func Valuate(p models.Portfolio, quotes map[string]models.PriceQuote, rates currency.Rates, asOf time.Time) (*PortfolioPnL, error) {
	base := p.BaseCurrency
	day := models.Day(asOf)

	result := &PortfolioPnL{
		PortfolioID: p.ID,
		Currency:    base,
		Holdings:    []HoldingPnL{},
	}
	value, cost, daily := decimal.Zero, decimal.Zero, decimal.Zero
	realized, dividends := decimal.Zero, decimal.Zero

	for _, h := range p.Holdings {
		cb := costbasis.Compute(h.Transactions)
		native := h.Currency()

		if !cb.RealizedPnL.IsZero() || !cb.TotalDividends.IsZero() {
			r, err := convert(cb.RealizedPnL, native, base, rates, p.ID)
			if err != nil {
				return nil, err
			}
			d, err := convert(cb.TotalDividends, native, base, rates, p.ID)
			if err != nil {
				return nil, err
			}
			realized = realized.Add(r)
			dividends = dividends.Add(d)
		}

		closedToday := cb.Quantity.IsZero() && tradedOn(h.Transactions, day)
		if !cb.Quantity.IsPositive() && !closedToday {
			continue
		}
		q, ok := quotes[h.Symbol]
		if !ok {
			result.MissingQuotes = append(result.MissingQuotes, h.Symbol)
			continue
		}

		price := EffectivePrice(q)
		prevClose := q.PreviousClose
		if !prevClose.IsPositive() {
			prevClose = price
		}

		// a position closed today still carries the day's move up to the sale
		if closedToday {
			d, err := convert(nativeDailyPnL(h.Transactions, cb.Quantity, price, prevClose, day), native, base, rates, p.ID)
			if err != nil {
				return nil, err
			}
			daily = daily.Add(d)
			continue
		}

		hv := HoldingPnL{
			HoldingID:      h.ID,
			Symbol:         h.Symbol,
			AssetClass:     h.AssetClass,
			Currency:       native,
			Quantity:       cb.Quantity,
			AverageCost:    cb.AverageCost,
			EffectivePrice: price,
			PreviousClose:  prevClose,
		}

		var err error
		if hv.MarketValue, err = convert(price.Mul(cb.Quantity), native, base, rates, p.ID); err != nil {
			return nil, err
		}
		if hv.Cost, err = convert(cb.TotalCost(), native, base, rates, p.ID); err != nil {
			return nil, err
		}
		if hv.DailyPnL, err = convert(nativeDailyPnL(h.Transactions, cb.Quantity, price, prevClose, day), native, base, rates, p.ID); err != nil {
			return nil, err
		}
		hv.UnrealizedPnL = hv.MarketValue.Sub(hv.Cost)

		value = value.Add(hv.MarketValue)
		cost = cost.Add(hv.Cost)
		daily = daily.Add(hv.DailyPnL)
		result.Holdings = append(result.Holdings, hv)
	}

	result.TotalValue = currency.Round(value, base)
	result.TotalCost = currency.Round(cost, base)
	result.DailyPnL = currency.Round(daily, base)
	result.RealizedPnL = currency.Round(realized, base)
	result.Dividends = currency.Round(dividends, base)
	result.finish()
	sort.Strings(result.MissingQuotes)
	return result, nil
}

// nativeDailyPnL is the day's value change of a holding net of the day's
// trades. Units held since the open move from the previous close, units
// bought today from their buy price, units sold today realise against the
// previous close.
func nativeDailyPnL(txs []models.Transaction, qty, price, prevClose decimal.Decimal, day time.Time) decimal.Decimal {
	heldSinceOpen := qty
	pnl := decimal.Zero
	for _, tx := range txs {
		if !models.Day(tx.Date).Equal(day) {
			continue
		}
		switch tx.Kind {
		case models.TransactionBuy:
			heldSinceOpen = heldSinceOpen.Sub(tx.Quantity)
			pnl = pnl.Add(price.Sub(tx.Price).Mul(tx.Quantity))
		case models.TransactionSell:
			pnl = pnl.Add(tx.Price.Sub(prevClose).Mul(tx.Quantity))
		}
	}
	return pnl.Add(price.Sub(prevClose).Mul(heldSinceOpen))
}

func tradedOn(txs []models.Transaction, day time.Time) bool {
	for _, tx := range txs {
		if (tx.Kind == models.TransactionBuy || tx.Kind == models.TransactionSell) && models.Day(tx.Date).Equal(day) {
			return true
		}
	}
	return false
}

// finish derives unrealized P&L and both percentages from the totals
func (r *PortfolioPnL) finish() {
	r.UnrealizedPnL = r.TotalValue.Sub(r.TotalCost)
	r.UnrealizedPnLPercent = percent(r.UnrealizedPnL, r.TotalCost)
	r.DailyPnLPercent = percent(r.DailyPnL, r.TotalValue.Sub(r.DailyPnL))
}

// percent returns part/whole*100, or 0 when whole is not positive
func percent(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

func convert(amount decimal.Decimal, from, to string, rates currency.Rates, portfolioID int64) (decimal.Decimal, error) {
	v, err := currency.Convert(amount, from, to, rates)
	if err != nil {
		return decimal.Zero, fmt.Errorf("portfolio %d: %w", portfolioID, err)
	}
	return v, nil
}
