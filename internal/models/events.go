package models

import (
	"encoding/json"
	"time"
)

// Event type constants
const (
	EventTransactionRecorded = "TRANSACTION_RECORDED"
	EventQuoteUpdated        = "QUOTE_UPDATED"
	EventQuotesUpdated       = "QUOTES_UPDATED"
	EventFXRateUpdated       = "FX_RATE_UPDATED"
	EventSnapshotUpdated     = "SNAPSHOT_UPDATED"
)

// Event is the envelope of every message on the portfolio topics
type Event struct {
	EventID   string          `json:"event_id,omitempty"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TransactionEventData is a broker fill or manual entry coming from a feed.
// Numbers are strings so that no precision is lost in transit.
type TransactionEventData struct {
	ExternalID  string  `json:"external_id"`
	PortfolioID int64   `json:"portfolio_id"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name,omitempty"`
	AssetClass  string  `json:"asset_class,omitempty"`
	Market      string  `json:"market"`
	Kind        string  `json:"kind"`
	Quantity    string  `json:"quantity"`
	Price       string  `json:"price"`
	Fee         string  `json:"fee,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Note        string  `json:"note,omitempty"`
	ExecutedAt  *string `json:"executed_at,omitempty"`
}

// SnapshotEventData is published after a refresh stored a snapshot
type SnapshotEventData struct {
	RunID    string           `json:"run_id"`
	Snapshot DailySnapshot    `json:"snapshot"`
	Assets   []AssetBreakdown `json:"assets"`
}

// QuoteEventData is a quote pushed by the market data feed. Date is
// YYYY-MM-DD; an empty date means today.
type QuoteEventData struct {
	Symbol          string `json:"symbol"`
	Date            string `json:"date,omitempty"`
	Open            string `json:"open,omitempty"`
	High            string `json:"high,omitempty"`
	Low             string `json:"low,omitempty"`
	Close           string `json:"close"`
	PreviousClose   string `json:"previous_close,omitempty"`
	Currency        string `json:"currency"`
	PreMarketPrice  string `json:"pre_market_price,omitempty"`
	PostMarketPrice string `json:"post_market_price,omitempty"`
	MarketState     string `json:"market_state,omitempty"`
}

// QuoteBatchEventData carries the quotes of one feed poll
type QuoteBatchEventData struct {
	Quotes []QuoteEventData `json:"quotes"`
}

// FXRateEventData is an exchange rate pushed by the FX feed
type FXRateEventData struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date,omitempty"`
	Rate string `json:"rate"`
}
