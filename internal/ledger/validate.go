package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// ErrInvalidEntry is wrapped by every entry validation failure
var ErrInvalidEntry = errors.New("invalid transaction")

// NegativeQuantityError reports the first point at which a ledger would hold
// fewer than zero units
type NegativeQuantityError struct {
	TransactionID int64
	Date          time.Time
	Quantity      decimal.Decimal
}

func (e *NegativeQuantityError) Error() string {
	return fmt.Sprintf("sell on %s leaves quantity %s below zero",
		e.Date.Format(models.DateLayout), e.Quantity)
}

func (e *NegativeQuantityError) Unwrap() error {
	return ErrInvalidEntry
}

// ValidateTransaction checks a single entry against the holding's currency
func ValidateTransaction(tx models.Transaction, currency string) error {
	switch tx.Kind {
	case models.TransactionBuy, models.TransactionSell:
		if !tx.Quantity.IsPositive() {
			return fmt.Errorf("%w: %s quantity must be positive", ErrInvalidEntry, tx.Kind)
		}
	case models.TransactionDividend:
		if tx.Quantity.IsNegative() {
			return fmt.Errorf("%w: dividend quantity must not be negative", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: %w: transaction kind %q", ErrInvalidEntry, models.ErrUnknownEnum, tx.Kind)
	}
	if tx.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidEntry)
	}
	if tx.Fee.IsNegative() {
		return fmt.Errorf("%w: fee must not be negative", ErrInvalidEntry)
	}
	if tx.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	}
	if tx.Currency != currency {
		return fmt.Errorf("%w: currency %s does not match holding currency %s", ErrInvalidEntry, tx.Currency, currency)
	}
	return nil
}

// Check replays txs and returns a NegativeQuantityError at the first entry
// that takes the position below zero
func Check(txs []models.Transaction) error {
	qty := decimal.Zero
	for _, tx := range Sorted(txs) {
		switch tx.Kind {
		case models.TransactionBuy:
			qty = qty.Add(tx.Quantity)
		case models.TransactionSell:
			qty = qty.Sub(tx.Quantity)
			if qty.IsNegative() {
				return &NegativeQuantityError{TransactionID: tx.ID, Date: models.Day(tx.Date), Quantity: qty}
			}
		}
	}
	return nil
}

// ValidateEntry validates tx as a new entry (ID 0) or as an edit of the
// existing entry with the same ID, including the effect on every later entry
// of a backdated insert.
func ValidateEntry(existing []models.Transaction, tx models.Transaction, currency string) error {
	if err := ValidateTransaction(tx, currency); err != nil {
		return err
	}
	candidate := make([]models.Transaction, 0, len(existing)+1)
	replaced := false
	for _, e := range existing {
		if tx.ID != 0 && e.ID == tx.ID {
			candidate = append(candidate, tx)
			replaced = true
			continue
		}
		candidate = append(candidate, e)
	}
	if !replaced {
		candidate = append(candidate, tx)
	}
	return Check(candidate)
}

// ValidateRemoval checks that deleting the entry with the given ID keeps
// every later sell covered
func ValidateRemoval(existing []models.Transaction, id int64) error {
	candidate := make([]models.Transaction, 0, len(existing))
	for _, e := range existing {
		if e.ID != id {
			candidate = append(candidate, e)
		}
	}
	return Check(candidate)
}
