package provider

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
	"golang.org/x/time/rate"
)

// Limited throttles calls to the wrapped providers. A single limiter is
// shared by quote and rate calls.
type Limited struct {
	quotes  QuoteProvider
	rates   RateProvider
	limiter *rate.Limiter
}

// NewLimited wraps the providers with a limit of rps calls per second.
// A non-positive rps disables throttling.
func NewLimited(quotes QuoteProvider, rates RateProvider, rps float64) *Limited {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		if b := int(rps); b > burst {
			burst = b
		}
	}
	return &Limited{
		quotes:  quotes,
		rates:   rates,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// FetchQuotes waits for a token, then delegates
func (l *Limited) FetchQuotes(ctx context.Context, symbols []string) (map[string]models.PriceQuote, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.quotes.FetchQuotes(ctx, symbols)
}

// FetchRate waits for a token, then delegates
func (l *Limited) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	return l.rates.FetchRate(ctx, from, to)
}
