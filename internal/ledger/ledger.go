// Package ledger holds the ordered transaction log of a holding and the
// checks applied before an entry is accepted into it.
package ledger

import (
	"sort"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Ledger is an immutable, date-ordered log of a holding's transactions.
// Append returns a new Ledger and never modifies the receiver.
type Ledger struct {
	entries []models.Transaction
}

// New builds a ledger from transactions in any order
func New(txs []models.Transaction) *Ledger {
	entries := make([]models.Transaction, len(txs))
	copy(entries, txs)
	sortEntries(entries)
	return &Ledger{entries: entries}
}

// Append returns a ledger containing the receiver's entries plus tx
func (l *Ledger) Append(tx models.Transaction) *Ledger {
	entries := make([]models.Transaction, len(l.entries), len(l.entries)+1)
	copy(entries, l.entries)
	entries = append(entries, tx)
	sortEntries(entries)
	return &Ledger{entries: entries}
}

// Entries returns a copy of the entries in replay order
func (l *Ledger) Entries() []models.Transaction {
	out := make([]models.Transaction, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Sorted returns a copy of txs in replay order: ascending calendar day, then
// ascending ID. Entries not yet persisted (ID 0) replay after persisted
// entries of the same day, in the order given.
func Sorted(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(txs))
	copy(out, txs)
	sortEntries(out)
	return out
}

func sortEntries(entries []models.Transaction) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := models.Day(entries[i].Date), models.Day(entries[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return orderKey(entries[i].ID) < orderKey(entries[j].ID)
	})
}

func orderKey(id int64) uint64 {
	if id == 0 {
		return ^uint64(0)
	}
	return uint64(id)
}
