package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is one quote per (symbol, date) from the quote provider
type PriceQuote struct {
	ID              int64               `json:"id"`
	Symbol          string              `json:"symbol"`
	Date            time.Time           `json:"date"`
	Open            decimal.Decimal     `json:"open"`
	High            decimal.Decimal     `json:"high"`
	Low             decimal.Decimal     `json:"low"`
	Close           decimal.Decimal     `json:"close"`
	PreviousClose   decimal.Decimal     `json:"previous_close"`
	Currency        string              `json:"currency"`
	PreMarketPrice  decimal.NullDecimal `json:"pre_market_price"`
	PostMarketPrice decimal.NullDecimal `json:"post_market_price"`
	MarketState     MarketState         `json:"market_state"`
	CreatedAt       time.Time           `json:"created_at"`
}

// FXRate is the number of To units per one From unit on a date
type FXRate struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Date      time.Time       `json:"date"`
	Rate      decimal.Decimal `json:"rate"`
	CreatedAt time.Time       `json:"created_at"`
}
