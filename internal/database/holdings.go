package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

const holdingSelect = `
		SELECT id, portfolio_id, symbol, name, asset_class, market,
		       last_price, market_value, reporting_value, valued_at, created_at, updated_at
		FROM holdings
`

// CreateHolding inserts a new holding
func (db *DB) CreateHolding(h *models.Holding) error {
	query := `
		INSERT INTO holdings (portfolio_id, symbol, name, asset_class, market, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		h.PortfolioID, h.Symbol, h.Name, h.AssetClass, h.Market, now, now,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}
	h.CreatedAt = now
	h.UpdatedAt = now
	return nil
}

// GetHoldingByID retrieves a holding without its transactions
func (db *DB) GetHoldingByID(id int64) (*models.Holding, error) {
	holdings, err := scanHoldings(db.conn.Query(holdingSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, fmt.Errorf("holding %d: %w", id, ErrNotFound)
	}
	return holdings[0], nil
}

// GetHoldingBySymbol retrieves the holding of a symbol in a portfolio
func (db *DB) GetHoldingBySymbol(portfolioID int64, symbol string) (*models.Holding, error) {
	holdings, err := scanHoldings(db.conn.Query(holdingSelect+` WHERE portfolio_id = $1 AND symbol = $2`, portfolioID, symbol))
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, fmt.Errorf("holding %s in portfolio %d: %w", symbol, portfolioID, ErrNotFound)
	}
	return holdings[0], nil
}

// GetHoldingsByPortfolio retrieves the holdings of a portfolio
func (db *DB) GetHoldingsByPortfolio(portfolioID int64) ([]*models.Holding, error) {
	return scanHoldings(db.conn.Query(holdingSelect+` WHERE portfolio_id = $1 ORDER BY id ASC`, portfolioID))
}

// GetTopHoldings returns the open holdings with the largest value in the
// reporting currency as of the last refresh
func (db *DB) GetTopHoldings(limit int) ([]*models.Holding, error) {
	return scanHoldings(db.conn.Query(holdingSelect+`
		WHERE valued_at IS NOT NULL AND reporting_value > 0
		ORDER BY reporting_value DESC, id ASC
		LIMIT $1
	`, limit))
}

// UpdateHolding updates the descriptive fields of a holding
func (db *DB) UpdateHolding(h *models.Holding) error {
	query := `
		UPDATE holdings SET
			symbol = $2, name = $3, asset_class = $4, market = $5, updated_at = $6
		WHERE id = $1
	`
	now := time.Now()
	result, err := db.conn.Exec(query, h.ID, h.Symbol, h.Name, h.AssetClass, h.Market, now)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("holding %d: %w", h.ID, ErrNotFound)
	}
	h.UpdatedAt = now
	return nil
}

// DeleteHolding removes a holding and its transactions in one transaction
func (db *DB) DeleteHolding(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM transactions WHERE holding_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transactions of holding %d: %w", id, err)
	}
	result, err := tx.Exec(`DELETE FROM holdings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("holding %d: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateHoldingValuations writes the latest valuation of each holding in a
// single transaction. Holdings not listed keep their previous values.
func (db *DB) UpdateHoldingValuations(valuations []models.HoldingValuation, valuedAt time.Time) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE holdings SET
			last_price = $2, market_value = $3, reporting_value = $4, valued_at = $5
		WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range valuations {
		if _, err := stmt.Exec(v.HoldingID, v.LastPrice, v.MarketValue, v.ReportingValue, valuedAt); err != nil {
			return fmt.Errorf("failed to update valuation of holding %d: %w", v.HoldingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanHoldings(rows *sql.Rows, err error) ([]*models.Holding, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		var h models.Holding
		var lastPrice, marketValue, reportingValue decimal.NullDecimal
		var valuedAt sql.NullTime

		err := rows.Scan(
			&h.ID, &h.PortfolioID, &h.Symbol, &h.Name, &h.AssetClass, &h.Market,
			&lastPrice, &marketValue, &reportingValue, &valuedAt, &h.CreatedAt, &h.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}

		h.LastPrice = lastPrice.Decimal
		h.MarketValue = marketValue.Decimal
		h.ReportingValue = reportingValue.Decimal
		if valuedAt.Valid {
			h.ValuedAt = &valuedAt.Time
		}
		holdings = append(holdings, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	return holdings, nil
}
