package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Scope identifies whose valuation a snapshot records: the global aggregate
// when PortfolioID is nil, a single portfolio otherwise
type Scope struct {
	PortfolioID *int64 `json:"portfolio_id,omitempty"`
}

// GlobalScope is the aggregate across all portfolios
var GlobalScope = Scope{}

// PortfolioScope returns the scope of a single portfolio
func PortfolioScope(id int64) Scope {
	return Scope{PortfolioID: &id}
}

// IsGlobal reports whether the scope is the global aggregate
func (s Scope) IsGlobal() bool {
	return s.PortfolioID == nil
}

// Key is the stable string form used for unique indexes and cache keys
func (s Scope) Key() string {
	if s.PortfolioID == nil {
		return "global"
	}
	return "portfolio:" + strconv.FormatInt(*s.PortfolioID, 10)
}

// DailySnapshot is the valuation record of one scope on one day
type DailySnapshot struct {
	ID              int64           `json:"id"`
	Scope           Scope           `json:"scope"`
	Date            time.Time       `json:"date"`
	Currency        string          `json:"currency"`
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	DailyPnL        decimal.Decimal `json:"daily_pnl"`
	DailyPnLPercent float64         `json:"daily_pnl_percent"`
	CumulativePnL   decimal.Decimal `json:"cumulative_pnl"`
	Breakdown       []byte          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AssetBreakdown is one entry of a snapshot's breakdown. Amounts are in the
// snapshot currency, Currency is the native currency of the grouped holdings.
type AssetBreakdown struct {
	AssetClass AssetClass      `json:"asset_class"`
	Currency   string          `json:"currency"`
	Value      decimal.Decimal `json:"value"`
	Cost       decimal.Decimal `json:"cost"`
	PnL        decimal.Decimal `json:"pnl"`
}
