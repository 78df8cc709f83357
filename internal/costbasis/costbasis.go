// Package costbasis replays a holding's ledger into a single pooled
// weighted-average-cost position.
package costbasis

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/ledger"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// divisionPrecision is the number of decimal places kept when averaging
const divisionPrecision = 16

// Result is the state of a position after replaying its ledger
type Result struct {
	Quantity       decimal.Decimal `json:"quantity"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	TotalDividends decimal.Decimal `json:"total_dividends"`
}

// TotalCost is AverageCost*Quantity
func (r Result) TotalCost() decimal.Decimal {
	return r.AverageCost.Mul(r.Quantity)
}

// Compute replays txs in ledger order. Buys move the average cost (fees are
// capitalised), sells realise P&L against the current average and leave it
// unchanged, dividends only accumulate income.
//
// A sell larger than the position drives Quantity negative. The result is
// still deterministic; such entries are rejected by ledger.ValidateEntry.
func Compute(txs []models.Transaction) Result {
	r := Result{
		Quantity:       decimal.Zero,
		AverageCost:    decimal.Zero,
		RealizedPnL:    decimal.Zero,
		TotalDividends: decimal.Zero,
	}

	for _, tx := range ledger.Sorted(txs) {
		switch tx.Kind {
		case models.TransactionBuy:
			newQty := r.Quantity.Add(tx.Quantity)
			if newQty.IsZero() {
				r.Quantity = decimal.Zero
				r.AverageCost = decimal.Zero
				continue
			}
			spent := r.AverageCost.Mul(r.Quantity).Add(tx.Quantity.Mul(tx.Price)).Add(tx.Fee)
			r.AverageCost = spent.DivRound(newQty, divisionPrecision)
			r.Quantity = newQty
		case models.TransactionSell:
			proceeds := tx.Quantity.Mul(tx.Price)
			basis := tx.Quantity.Mul(r.AverageCost)
			r.RealizedPnL = r.RealizedPnL.Add(proceeds.Sub(basis).Sub(tx.Fee))
			r.Quantity = r.Quantity.Sub(tx.Quantity)
		case models.TransactionDividend:
			r.TotalDividends = r.TotalDividends.Add(tx.Quantity.Mul(tx.Price))
		}
	}

	return r
}
