package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// QuoteProvider returns the latest quote of each requested symbol. Symbols it
// has no quote for are absent from the result; that is not an error.
type QuoteProvider interface {
	FetchQuotes(ctx context.Context, symbols []string) (map[string]models.PriceQuote, error)
}

// RateProvider returns the number of `to` units per one `from` unit
type RateProvider interface {
	FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// QuoteStore is the persistence used by StoreProvider
type QuoteStore interface {
	GetLatestQuotes(symbols []string) (map[string]models.PriceQuote, error)
	GetLatestRate(from, to string) (decimal.Decimal, error)
}

// StoreProvider serves quotes and rates from the database, where the
// ingest consumer keeps them current
type StoreProvider struct {
	store QuoteStore
}

// NewStoreProvider creates a provider backed by store
func NewStoreProvider(store QuoteStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// FetchQuotes implements QuoteProvider
func (p *StoreProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]models.PriceQuote, error) {
	if len(symbols) == 0 {
		return map[string]models.PriceQuote{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	quotes, err := p.store.GetLatestQuotes(symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to load quotes: %w", err)
	}
	return quotes, nil
}

// FetchRate implements RateProvider
func (p *StoreProvider) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1), nil
	}
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	rate, err := p.store.GetLatestRate(from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load rate %s/%s: %w", from, to, err)
	}
	return rate, nil
}
