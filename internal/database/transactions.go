package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/ledger"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

const transactionSelect = `
		SELECT id, holding_id, kind, trade_date, quantity, price, fee, currency,
		       note, external_id, source, created_at
		FROM transactions
`

// CreateTransaction validates t against the holding's ledger and inserts
// it. The holding row stays locked from the ledger read until commit, so
// concurrent writers to the same holding are checked one after another.
func (db *DB) CreateTransaction(t *models.Transaction) error {
	return db.withLedgerLock(t.HoldingID, func(tx *sql.Tx, currency string, existing []models.Transaction) error {
		if err := ledger.ValidateEntry(existing, *t, currency); err != nil {
			return err
		}
		query := `
			INSERT INTO transactions (
				holding_id, kind, trade_date, quantity, price, fee, currency,
				note, external_id, source, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`
		now := time.Now()
		err := tx.QueryRow(query,
			t.HoldingID, t.Kind, models.Day(t.Date), t.Quantity, t.Price, t.Fee, t.Currency,
			nullString(t.Note), nullString(t.ExternalID), nullString(t.Source), now,
		).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		t.Date = models.Day(t.Date)
		t.CreatedAt = now
		return nil
	})
}

// withLedgerLock locks the holding row, loads its ledger inside the same
// transaction and commits when fn succeeds
func (db *DB) withLedgerLock(holdingID int64, fn func(tx *sql.Tx, currency string, existing []models.Transaction) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var market models.Market
	err = tx.QueryRow(`SELECT market FROM holdings WHERE id = $1 FOR UPDATE`, holdingID).Scan(&market)
	if err == sql.ErrNoRows {
		return fmt.Errorf("holding %d: %w", holdingID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock holding: %w", err)
	}

	ptrs, err := scanTransactions(tx.Query(transactionSelect+`
		WHERE holding_id = $1
		ORDER BY trade_date ASC, id ASC
	`, holdingID))
	if err != nil {
		return err
	}
	existing := make([]models.Transaction, len(ptrs))
	for i, t := range ptrs {
		existing[i] = *t
	}

	if err := fn(tx, market.Currency(), existing); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// holdingOf returns the holding a stored ledger entry belongs to
func (db *DB) holdingOf(transactionID int64) (int64, error) {
	var holdingID int64
	err := db.conn.QueryRow(`SELECT holding_id FROM transactions WHERE id = $1`, transactionID).Scan(&holdingID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("transaction %d: %w", transactionID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction: %w", err)
	}
	return holdingID, nil
}

func containsEntry(existing []models.Transaction, id int64) bool {
	for _, e := range existing {
		if e.ID == id {
			return true
		}
	}
	return false
}

// GetTransactionByID retrieves a ledger entry by ID
func (db *DB) GetTransactionByID(id int64) (*models.Transaction, error) {
	txs, err := scanTransactions(db.conn.Query(transactionSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return txs[0], nil
}

// GetTransactionsByHolding retrieves a holding's ledger in replay order
func (db *DB) GetTransactionsByHolding(holdingID int64) ([]*models.Transaction, error) {
	return scanTransactions(db.conn.Query(transactionSelect+`
		WHERE holding_id = $1
		ORDER BY trade_date ASC, id ASC
	`, holdingID))
}

// TransactionExistsByExternalID checks whether a feed entry was already ingested
func (db *DB) TransactionExistsByExternalID(externalID, source string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE external_id = $1 AND source = $2)`
	var exists bool
	if err := db.conn.QueryRow(query, externalID, source).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", err)
	}
	return exists, nil
}

// UpdateTransaction replaces the fields of an existing ledger entry after
// validating the edited ledger under the holding lock
func (db *DB) UpdateTransaction(t *models.Transaction) error {
	holdingID, err := db.holdingOf(t.ID)
	if err != nil {
		return err
	}
	t.HoldingID = holdingID
	return db.withLedgerLock(holdingID, func(tx *sql.Tx, currency string, existing []models.Transaction) error {
		if !containsEntry(existing, t.ID) {
			return fmt.Errorf("transaction %d: %w", t.ID, ErrNotFound)
		}
		if err := ledger.ValidateEntry(existing, *t, currency); err != nil {
			return err
		}
		query := `
			UPDATE transactions SET
				kind = $2, trade_date = $3, quantity = $4, price = $5, fee = $6, currency = $7, note = $8
			WHERE id = $1
		`
		_, err := tx.Exec(query,
			t.ID, t.Kind, models.Day(t.Date), t.Quantity, t.Price, t.Fee, t.Currency, nullString(t.Note),
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		t.Date = models.Day(t.Date)
		return nil
	})
}

// DeleteTransaction removes a ledger entry by ID when every later sell
// stays covered without it
func (db *DB) DeleteTransaction(id int64) error {
	holdingID, err := db.holdingOf(id)
	if err != nil {
		return err
	}
	return db.withLedgerLock(holdingID, func(tx *sql.Tx, _ string, existing []models.Transaction) error {
		if !containsEntry(existing, id) {
			return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}
		if err := ledger.ValidateRemoval(existing, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM transactions WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		return nil
	})
}

func scanTransactions(rows *sql.Rows, err error) ([]*models.Transaction, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		var note, externalID, source sql.NullString

		err := rows.Scan(
			&t.ID, &t.HoldingID, &t.Kind, &t.Date, &t.Quantity, &t.Price, &t.Fee, &t.Currency,
			&note, &externalID, &source, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Note = note.String
		t.ExternalID = externalID.String
		t.Source = source.String
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}
