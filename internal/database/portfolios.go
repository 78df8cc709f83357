package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// CreatePortfolio inserts a new portfolio
func (db *DB) CreatePortfolio(p *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (name, account_type, base_currency, sort_order, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		p.Name, p.AccountType, p.BaseCurrency, p.SortOrder, nullString(p.Color), now, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPortfolioByID retrieves a portfolio without its holdings
func (db *DB) GetPortfolioByID(id int64) (*models.Portfolio, error) {
	query := `
		SELECT id, name, account_type, base_currency, sort_order, color, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`
	var p models.Portfolio
	var color sql.NullString
	err := db.conn.QueryRow(query, id).Scan(
		&p.ID, &p.Name, &p.AccountType, &p.BaseCurrency, &p.SortOrder, &color, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("portfolio %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	p.Color = color.String
	return &p, nil
}

// GetAllPortfolios retrieves all portfolios in display order, without holdings
func (db *DB) GetAllPortfolios() ([]*models.Portfolio, error) {
	query := `
		SELECT id, name, account_type, base_currency, sort_order, color, created_at, updated_at
		FROM portfolios
		ORDER BY sort_order ASC, id ASC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		var color sql.NullString
		if err := rows.Scan(
			&p.ID, &p.Name, &p.AccountType, &p.BaseCurrency, &p.SortOrder, &color, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.Color = color.String
		portfolios = append(portfolios, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolios: %w", err)
	}
	return portfolios, nil
}

// UpdatePortfolio updates a portfolio. Changing the account type or base
// currency of a portfolio that owns holdings returns
// models.ErrAccountTypeLocked or models.ErrBaseCurrencyLocked.
func (db *DB) UpdatePortfolio(p *models.Portfolio) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		current    models.AccountType
		currentCcy string
	)
	err = tx.QueryRow(`SELECT account_type, base_currency FROM portfolios WHERE id = $1 FOR UPDATE`, p.ID).Scan(&current, &currentCcy)
	if err == sql.ErrNoRows {
		return fmt.Errorf("portfolio %d: %w", p.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock portfolio: %w", err)
	}

	if current != p.AccountType || currentCcy != p.BaseCurrency {
		var holdings int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM holdings WHERE portfolio_id = $1`, p.ID).Scan(&holdings); err != nil {
			return fmt.Errorf("failed to count holdings: %w", err)
		}
		if holdings > 0 && current != p.AccountType {
			return models.ErrAccountTypeLocked
		}
		if holdings > 0 {
			return models.ErrBaseCurrencyLocked
		}
	}

	now := time.Now()
	_, err = tx.Exec(`
		UPDATE portfolios SET
			name = $2, account_type = $3, base_currency = $4, sort_order = $5, color = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Name, p.AccountType, p.BaseCurrency, p.SortOrder, nullString(p.Color), now)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	p.UpdatedAt = now
	return nil
}

// DeletePortfolio removes a portfolio with its holdings, their transactions
// and the portfolio's snapshots in one transaction
func (db *DB) DeletePortfolio(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		query string
		what  string
	}{
		{`DELETE FROM transactions WHERE holding_id IN (SELECT id FROM holdings WHERE portfolio_id = $1)`, "transactions"},
		{`DELETE FROM holdings WHERE portfolio_id = $1`, "holdings"},
		{`DELETE FROM daily_snapshots WHERE portfolio_id = $1`, "snapshots"},
	}
	for _, s := range steps {
		if _, err := tx.Exec(s.query, id); err != nil {
			return fmt.Errorf("failed to delete %s of portfolio %d: %w", s.what, id, err)
		}
	}

	result, err := tx.Exec(`DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("portfolio %d: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadPortfolios returns every portfolio with its holdings and their
// transactions, read inside one repeatable-read transaction so that the
// valuation sees a consistent ledger
func (db *DB) LoadPortfolios() ([]models.Portfolio, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`SET TRANSACTION ISOLATION LEVEL REPEATABLE READ READ ONLY`); err != nil {
		return nil, fmt.Errorf("failed to set isolation level: %w", err)
	}

	rows, err := tx.Query(`
		SELECT id, name, account_type, base_currency, sort_order, color, created_at, updated_at
		FROM portfolios
		ORDER BY sort_order ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	var portfolios []models.Portfolio
	index := map[int64]int{}
	for rows.Next() {
		var p models.Portfolio
		var color sql.NullString
		if err := rows.Scan(
			&p.ID, &p.Name, &p.AccountType, &p.BaseCurrency, &p.SortOrder, &color, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.Color = color.String
		index[p.ID] = len(portfolios)
		portfolios = append(portfolios, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolios: %w", err)
	}

	holdings, err := scanHoldings(tx.Query(holdingSelect + ` ORDER BY portfolio_id ASC, id ASC`))
	if err != nil {
		return nil, err
	}
	txs, err := scanTransactions(tx.Query(transactionSelect + ` ORDER BY holding_id ASC, trade_date ASC, id ASC`))
	if err != nil {
		return nil, err
	}

	byHolding := map[int64][]models.Transaction{}
	for _, t := range txs {
		byHolding[t.HoldingID] = append(byHolding[t.HoldingID], *t)
	}
	for _, h := range holdings {
		i, ok := index[h.PortfolioID]
		if !ok {
			continue
		}
		h.Transactions = byHolding[h.ID]
		portfolios[i].Holdings = append(portfolios[i].Holdings, *h)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return portfolios, nil
}

// IsNotFound reports whether err is a missing-row error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation reports whether err comes from a unique constraint
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
