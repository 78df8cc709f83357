// Package refresh runs the valuation pipeline: it gathers quotes and rates
// for every portfolio, values them, writes the daily snapshots and publishes
// the results.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/costbasis"
	"github.com/trogers1052/portfolio-tracker/internal/currency"
	"github.com/trogers1052/portfolio-tracker/internal/logger"
	"github.com/trogers1052/portfolio-tracker/internal/models"
	"github.com/trogers1052/portfolio-tracker/internal/provider"
	"github.com/trogers1052/portfolio-tracker/internal/snapshot"
	"github.com/trogers1052/portfolio-tracker/internal/valuation"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// maxConcurrentFetches bounds the rate lookups in flight during one run
const maxConcurrentFetches = 8

// Store is the persistence a refresh reads from and writes to
type Store interface {
	snapshot.Store
	LoadPortfolios() ([]models.Portfolio, error)
	UpdateHoldingValuations(valuations []models.HoldingValuation, valuedAt time.Time) error
}

// Publisher announces stored snapshots
type Publisher interface {
	PublishSnapshotUpdated(ctx context.Context, runID string, snap *models.DailySnapshot, assets []models.AssetBreakdown) error
}

// Result is the outcome of one refresh run
type Result struct {
	RunID      string                    `json:"run_id"`
	Date       time.Time                 `json:"date"`
	Portfolios []*valuation.PortfolioPnL `json:"portfolios"`
	Global     *valuation.PortfolioPnL   `json:"global"`
	Snapshots  []*models.DailySnapshot   `json:"snapshots"`
	Failures   []Failure                 `json:"failures,omitempty"`
}

// Failure is a portfolio left out of a run
type Failure struct {
	PortfolioID int64  `json:"portfolio_id"`
	Error       string `json:"error"`
}

// Service runs refreshes. At most one run is in flight; concurrent callers
// share its result.
type Service struct {
	store      Store
	quotes     provider.QuoteProvider
	rates      provider.RateProvider
	publisher  Publisher
	aggregator *snapshot.Aggregator
	reporting  string
	now        func() time.Time

	group singleflight.Group
}

// NewService creates a refresh service. publisher may be nil.
func NewService(store Store, quotes provider.QuoteProvider, rates provider.RateProvider, publisher Publisher, reporting string) *Service {
	return &Service{
		store:      store,
		quotes:     quotes,
		rates:      rates,
		publisher:  publisher,
		aggregator: snapshot.NewAggregator(store),
		reporting:  reporting,
		now:        time.Now,
	}
}

// ReportingCurrency is the currency of the global scope
func (s *Service) ReportingCurrency() string {
	return s.reporting
}

// Refresh runs the pipeline, or joins the run already in flight. The run
// itself is not cancelled when ctx is; ctx only bounds the wait.
func (s *Service) Refresh(ctx context.Context) (*Result, error) {
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		return s.run(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

// Run refreshes on every tick of interval until ctx is done
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("refresh loop stopped")
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("scheduled refresh failed")
			}
		}
	}
}

func (s *Service) run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	started := s.now()
	date := models.Day(started)
	log.Info().Str("date", date.Format(models.DateLayout)).Msg("refresh started")

	portfolios, err := s.store.LoadPortfolios()
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolios: %w", err)
	}

	quotes, rates, err := s.gather(ctx, portfolios)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: runID, Date: date, Portfolios: []*valuation.PortfolioPnL{}}
	failed := map[int64]bool{}
	for _, p := range portfolios {
		v, err := valuation.Valuate(p, quotes, rates, started)
		if err != nil {
			log.Warn().Err(err).Int64("portfolio_id", p.ID).Msg("portfolio left out of refresh")
			result.Failures = append(result.Failures, Failure{PortfolioID: p.ID, Error: err.Error()})
			failed[p.ID] = true
			continue
		}
		if len(v.MissingQuotes) > 0 {
			log.Warn().Int64("portfolio_id", p.ID).Strs("symbols", v.MissingQuotes).Msg("holdings without quote")
		}
		result.Portfolios = append(result.Portfolios, v)
	}

	global, aggFailures := valuation.Aggregate(result.Portfolios, s.reporting, rates)
	for _, f := range aggFailures {
		log.Warn().Err(f.Err).Int64("portfolio_id", f.PortfolioID).Msg("portfolio left out of global aggregate")
		result.Failures = append(result.Failures, Failure{PortfolioID: f.PortfolioID, Error: f.Err.Error()})
	}
	result.Global = global

	for _, v := range result.Portfolios {
		snap, err := s.aggregator.Upsert(models.PortfolioScope(v.PortfolioID), date, v)
		if err != nil {
			return nil, err
		}
		result.Snapshots = append(result.Snapshots, snap)
	}
	snap, err := s.aggregator.Upsert(models.GlobalScope, date, global)
	if err != nil {
		return nil, err
	}
	result.Snapshots = append(result.Snapshots, snap)

	valuations := holdingValuations(portfolios, failed, result.Portfolios, global, s.reporting)
	if err := s.store.UpdateHoldingValuations(valuations, started); err != nil {
		return nil, fmt.Errorf("failed to store holding valuations: %w", err)
	}

	s.publish(ctx, log, runID, result.Snapshots)

	log.Info().
		Int("portfolios", len(result.Portfolios)).
		Int("failures", len(result.Failures)).
		Str("total_value", global.TotalValue.String()).
		Str("currency", global.Currency).
		Dur("elapsed", s.now().Sub(started)).
		Msg("refresh finished")
	return result, nil
}

// gather fetches every distinct quote and rate the portfolios need. Quotes
// come in one batch; each rate is fetched separately and a failed rate is
// left out so that only the portfolios needing it fail.
func (s *Service) gather(ctx context.Context, portfolios []models.Portfolio) (map[string]models.PriceQuote, currency.Rates, error) {
	log := logger.FromContext(ctx)
	symbols, pairs := requirements(portfolios, s.reporting)

	var quotes map[string]models.PriceQuote
	rates := currency.Rates{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	g.Go(func() error {
		q, err := s.quotes.FetchQuotes(gctx, symbols)
		if err != nil {
			return fmt.Errorf("failed to fetch quotes: %w", err)
		}
		quotes = q
		return nil
	})
	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			rate, err := s.rates.FetchRate(gctx, pair.From, pair.To)
			if err != nil {
				log.Warn().Err(err).Str("pair", pair.String()).Msg("rate unavailable")
				return nil
			}
			mu.Lock()
			rates[pair] = rate
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if quotes == nil {
		quotes = map[string]models.PriceQuote{}
	}
	return quotes, rates, nil
}

// requirements lists the distinct symbols and currency pairs needed to value
// every portfolio and aggregate it into the reporting currency
func requirements(portfolios []models.Portfolio, reporting string) ([]string, []currency.Pair) {
	seen := map[string]bool{}
	var symbols []string
	pairs := currency.PairSet{}

	for _, p := range portfolios {
		pairs.Add(p.BaseCurrency, reporting)
		for _, h := range p.Holdings {
			pairs.Add(h.Currency(), p.BaseCurrency)
			if !seen[h.Symbol] {
				seen[h.Symbol] = true
				symbols = append(symbols, h.Symbol)
			}
		}
	}
	return symbols, pairs.Sorted()
}

// holdingValuations projects the run onto the holdings for the top-N view.
// Closed holdings of valued portfolios are zeroed; holdings without a quote
// and holdings of failed portfolios keep their previous values.
func holdingValuations(portfolios []models.Portfolio, failed map[int64]bool, results []*valuation.PortfolioPnL, global *valuation.PortfolioPnL, reporting string) []models.HoldingValuation {
	valued := map[int64]valuation.HoldingPnL{}
	for _, r := range results {
		for _, h := range r.Holdings {
			valued[h.HoldingID] = h
		}
	}
	inReporting := map[int64]decimal.Decimal{}
	for _, h := range global.Holdings {
		inReporting[h.HoldingID] = currency.Round(h.MarketValue, reporting)
	}

	var out []models.HoldingValuation
	for _, p := range portfolios {
		if failed[p.ID] {
			continue
		}
		for _, h := range p.Holdings {
			if v, ok := valued[h.ID]; ok {
				rv, ok := inReporting[h.ID]
				if !ok {
					continue
				}
				out = append(out, models.HoldingValuation{
					HoldingID:      h.ID,
					LastPrice:      v.EffectivePrice,
					MarketValue:    currency.Round(v.MarketValue, p.BaseCurrency),
					ReportingValue: rv,
				})
				continue
			}
			if !costbasis.Compute(h.Transactions).Quantity.IsPositive() {
				out = append(out, models.HoldingValuation{HoldingID: h.ID})
			}
		}
	}
	return out
}

func (s *Service) publish(ctx context.Context, log zerolog.Logger, runID string, snaps []*models.DailySnapshot) {
	if s.publisher == nil {
		return
	}
	for _, snap := range snaps {
		if err := s.publisher.PublishSnapshotUpdated(ctx, runID, snap, snapshot.Breakdown(snap)); err != nil {
			log.Warn().Err(err).Str("scope", snap.Scope.Key()).Msg("failed to publish snapshot")
		}
	}
}
