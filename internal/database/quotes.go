package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

const quoteUpsert = `
		INSERT INTO price_quotes (
			symbol, quote_date, open, high, low, close, previous_close, currency,
			pre_market_price, post_market_price, market_state, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, quote_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			previous_close = EXCLUDED.previous_close,
			currency = EXCLUDED.currency,
			pre_market_price = EXCLUDED.pre_market_price,
			post_market_price = EXCLUDED.post_market_price,
			market_state = EXCLUDED.market_state
`

// UpsertQuote stores the quote of (symbol, date), replacing an earlier one
func (db *DB) UpsertQuote(q *models.PriceQuote) error {
	err := db.conn.QueryRow(quoteUpsert+` RETURNING id`, quoteArgs(q, time.Now())...).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert quote for %s: %w", q.Symbol, err)
	}
	q.Date = models.Day(q.Date)
	return nil
}

// UpsertQuoteBatch stores multiple quotes in one transaction
func (db *DB) UpsertQuoteBatch(quotes []*models.PriceQuote) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(quoteUpsert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, q := range quotes {
		if _, err := stmt.Exec(quoteArgs(q, now)...); err != nil {
			return fmt.Errorf("failed to upsert quote for %s: %w", q.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetLatestQuotes returns the most recent quote of each symbol. Symbols
// without any quote are absent from the result.
func (db *DB) GetLatestQuotes(symbols []string) (map[string]models.PriceQuote, error) {
	query := `
		SELECT DISTINCT ON (symbol)
		       id, symbol, quote_date, open, high, low, close, previous_close, currency,
		       pre_market_price, post_market_price, market_state, created_at
		FROM price_quotes
		WHERE symbol = ANY($1)
		ORDER BY symbol, quote_date DESC
	`
	rows, err := db.conn.Query(query, pq.Array(symbols))
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make(map[string]models.PriceQuote, len(symbols))
	for rows.Next() {
		var q models.PriceQuote
		if err := rows.Scan(
			&q.ID, &q.Symbol, &q.Date, &q.Open, &q.High, &q.Low, &q.Close, &q.PreviousClose, &q.Currency,
			&q.PreMarketPrice, &q.PostMarketPrice, &q.MarketState, &q.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes[q.Symbol] = q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}
	return quotes, nil
}

// DeleteQuotesOlderThan removes quotes dated before date
func (db *DB) DeleteQuotesOlderThan(date time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM price_quotes WHERE quote_date < $1`, models.Day(date))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old quotes: %w", err)
	}
	return result.RowsAffected()
}

// UpsertFXRate stores the rate of a pair on a day
func (db *DB) UpsertFXRate(r *models.FXRate) error {
	query := `
		INSERT INTO fx_rates (from_currency, to_currency, rate_date, rate, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (from_currency, to_currency, rate_date) DO UPDATE SET
			rate = EXCLUDED.rate
	`
	now := time.Now()
	_, err := db.conn.Exec(query,
		strings.ToUpper(r.From), strings.ToUpper(r.To), models.Day(r.Date), r.Rate, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fx rate %s/%s: %w", r.From, r.To, err)
	}
	r.CreatedAt = now
	return nil
}

// GetLatestRate returns the most recent rate of a pair
func (db *DB) GetLatestRate(from, to string) (decimal.Decimal, error) {
	query := `
		SELECT rate FROM fx_rates
		WHERE from_currency = $1 AND to_currency = $2
		ORDER BY rate_date DESC
		LIMIT 1
	`
	var rate decimal.Decimal
	err := db.conn.QueryRow(query, strings.ToUpper(from), strings.ToUpper(to)).Scan(&rate)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("fx rate %s/%s: %w", from, to, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get fx rate: %w", err)
	}
	return rate, nil
}

func quoteArgs(q *models.PriceQuote, now time.Time) []interface{} {
	state := q.MarketState
	if state == "" {
		state = models.MarketStateRegular
	}
	return []interface{}{
		q.Symbol, models.Day(q.Date), q.Open, q.High, q.Low, q.Close, q.PreviousClose, q.Currency,
		q.PreMarketPrice, q.PostMarketPrice, state, now,
	}
}
