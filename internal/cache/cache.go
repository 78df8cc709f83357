package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/logger"
	"github.com/trogers1052/portfolio-tracker/internal/models"
	"github.com/trogers1052/portfolio-tracker/internal/provider"
)

// Cache is a read-through Redis cache in front of the quote and rate
// providers. Redis failures never fail a fetch; the request falls through
// to the wrapped provider.
type Cache struct {
	client   redis.Cmdable
	quotes   provider.QuoteProvider
	rates    provider.RateProvider
	quoteTTL time.Duration
	rateTTL  time.Duration
}

// New creates a cache with the given TTLs
func New(client redis.Cmdable, quotes provider.QuoteProvider, rates provider.RateProvider, quoteTTL, rateTTL time.Duration) *Cache {
	return &Cache{
		client:   client,
		quotes:   quotes,
		rates:    rates,
		quoteTTL: quoteTTL,
		rateTTL:  rateTTL,
	}
}

// QuoteKey is the Redis key of a symbol's latest quote
func QuoteKey(symbol string) string {
	return "quote:" + symbol
}

// RateKey is the Redis key of a currency pair's latest rate
func RateKey(from, to string) string {
	return "fx:" + strings.ToUpper(from) + ":" + strings.ToUpper(to)
}

// FetchQuotes implements provider.QuoteProvider
func (c *Cache) FetchQuotes(ctx context.Context, symbols []string) (map[string]models.PriceQuote, error) {
	log := logger.FromContext(ctx)
	quotes := make(map[string]models.PriceQuote, len(symbols))
	if len(symbols) == 0 {
		return quotes, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = QuoteKey(s)
	}

	var missing []string
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		log.Warn().Err(err).Msg("quote cache unavailable")
		missing = symbols
	} else {
		for i, v := range values {
			q, ok := decodeQuote(v)
			if !ok {
				missing = append(missing, symbols[i])
				continue
			}
			quotes[symbols[i]] = q
		}
	}

	if len(missing) == 0 {
		return quotes, nil
	}

	fetched, err := c.quotes.FetchQuotes(ctx, missing)
	if err != nil {
		return nil, err
	}
	for symbol, q := range fetched {
		quotes[symbol] = q
		c.store(ctx, log, QuoteKey(symbol), q, c.quoteTTL)
	}
	return quotes, nil
}

// FetchRate implements provider.RateProvider
func (c *Cache) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1), nil
	}
	log := logger.FromContext(ctx)
	key := RateKey(from, to)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if rate, perr := decimal.NewFromString(cached); perr == nil {
			return rate, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("pair", key).Msg("rate cache unavailable")
	}

	rate, err := c.rates.FetchRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.client.Set(ctx, key, rate.String(), c.rateTTL).Err(); err != nil {
		log.Warn().Err(err).Str("pair", key).Msg("failed to cache rate")
	}
	return rate, nil
}

// InvalidateQuote drops the cached quote of a symbol
func (c *Cache) InvalidateQuote(ctx context.Context, symbol string) error {
	if err := c.client.Del(ctx, QuoteKey(symbol)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate quote %s: %w", symbol, err)
	}
	return nil
}

// InvalidateRate drops the cached rate of a pair
func (c *Cache) InvalidateRate(ctx context.Context, from, to string) error {
	if err := c.client.Del(ctx, RateKey(from, to)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate rate %s/%s: %w", from, to, err)
	}
	return nil
}

func (c *Cache) store(ctx context.Context, log zerolog.Logger, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to write cache entry")
	}
}

func decodeQuote(v interface{}) (models.PriceQuote, bool) {
	s, ok := v.(string)
	if !ok {
		return models.PriceQuote{}, false
	}
	var q models.PriceQuote
	if err := json.Unmarshal([]byte(s), &q); err != nil {
		return models.PriceQuote{}, false
	}
	return q, true
}
