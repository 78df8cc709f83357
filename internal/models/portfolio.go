package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrAccountTypeLocked is returned when changing the account type of a
// portfolio that already owns holdings
var ErrAccountTypeLocked = errors.New("account type cannot change once the portfolio has holdings")

// ErrBaseCurrencyLocked is returned when changing the base currency of a
// portfolio that already owns holdings
var ErrBaseCurrencyLocked = errors.New("base currency cannot change once the portfolio has holdings")

// ErrNISACurrency is returned when a NISA portfolio is given a holding whose
// currency is not yen. NISA quota is counted in yen.
var ErrNISACurrency = errors.New("NISA portfolios only hold JPY instruments")

// CheckHoldingCurrency reports whether p may own h
func CheckHoldingCurrency(p *Portfolio, h *Holding) error {
	if p.AccountType.IsNISA() && h.Currency() != "JPY" {
		return fmt.Errorf("%w: %s trades in %s", ErrNISACurrency, h.Symbol, h.Currency())
	}
	return nil
}

// Portfolio is an account owning a set of holdings
type Portfolio struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	AccountType  AccountType `json:"account_type"`
	BaseCurrency string      `json:"base_currency"`
	SortOrder    int         `json:"sort_order"`
	Color        string      `json:"color,omitempty"`
	Holdings     []Holding   `json:"holdings,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Holding is one instrument held in a portfolio
type Holding struct {
	ID           int64         `json:"id"`
	PortfolioID  int64         `json:"portfolio_id"`
	Symbol       string        `json:"symbol"`
	Name         string        `json:"name"`
	AssetClass   AssetClass    `json:"asset_class"`
	Market       Market        `json:"market"`
	Transactions []Transaction `json:"transactions,omitempty"`

	// Written by the refresh job, read by the widget projection
	LastPrice      decimal.Decimal `json:"last_price"`
	MarketValue    decimal.Decimal `json:"market_value"`
	ReportingValue decimal.Decimal `json:"reporting_value"`
	ValuedAt       *time.Time      `json:"valued_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Currency returns the holding's native currency
func (h *Holding) Currency() string {
	return h.Market.Currency()
}

// HoldingValuation is the per-holding result of a refresh, persisted for
// the top holdings projection
type HoldingValuation struct {
	HoldingID      int64           `json:"holding_id"`
	LastPrice      decimal.Decimal `json:"last_price"`
	MarketValue    decimal.Decimal `json:"market_value"`
	ReportingValue decimal.Decimal `json:"reporting_value"`
}
