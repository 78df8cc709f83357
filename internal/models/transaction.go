package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one ledger entry of a holding.
// For dividends Quantity*Price is the total distribution.
type Transaction struct {
	ID        int64           `json:"id"`
	HoldingID int64           `json:"holding_id"`
	Kind      TransactionKind `json:"kind"`
	Date      time.Time       `json:"date"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	Currency  string          `json:"currency"`
	Note      string          `json:"note,omitempty"`

	// Set for entries ingested from a broker feed, used for deduplication
	ExternalID string `json:"external_id,omitempty"`
	Source     string `json:"source,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Notional returns Quantity*Price
func (t *Transaction) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}
