package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/database"
	"github.com/trogers1052/portfolio-tracker/internal/ledger"
	"github.com/trogers1052/portfolio-tracker/internal/logger"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Repository defines the persistence the ingest consumer writes to
type Repository interface {
	GetPortfolioByID(id int64) (*models.Portfolio, error)
	GetHoldingBySymbol(portfolioID int64, symbol string) (*models.Holding, error)
	CreateHolding(h *models.Holding) error
	// CreateTransaction validates t against the holding's ledger atomically
	// with the insert
	CreateTransaction(t *models.Transaction) error
	TransactionExistsByExternalID(externalID, source string) (bool, error)
	UpsertQuote(q *models.PriceQuote) error
	UpsertQuoteBatch(quotes []*models.PriceQuote) error
	UpsertFXRate(r *models.FXRate) error
}

// Invalidator drops cached market data after the consumer stored a newer value
type Invalidator interface {
	InvalidateQuote(ctx context.Context, symbol string) error
	InvalidateRate(ctx context.Context, from, to string) error
}

// Consumer ingests transaction, quote and FX rate events from Kafka
type Consumer struct {
	reader *kafka.Reader
	repo   Repository
	cache  Invalidator
	now    func() time.Time
}

// NewConsumer creates a new Kafka consumer for ingest events. cache may be nil.
func NewConsumer(brokers []string, topic, groupID string, repo Repository, cache Invalidator) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		repo:   repo,
		cache:  cache,
		now:    time.Now,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().Str("topic", c.reader.Config().Topic).Msg("starting kafka consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg.Value); err != nil {
				log.Error().Err(err).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("error processing message")
			}
		}
	}
}

// processMessage handles a single event payload
func (c *Consumer) processMessage(ctx context.Context, value []byte) error {
	var event models.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch event.EventType {
	case models.EventTransactionRecorded:
		var data models.TransactionEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("failed to unmarshal transaction event: %w", err)
		}
		return c.recordTransaction(ctx, event.Source, data)
	case models.EventQuoteUpdated:
		var data models.QuoteEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("failed to unmarshal quote event: %w", err)
		}
		return c.storeQuote(ctx, data)
	case models.EventQuotesUpdated:
		var data models.QuoteBatchEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("failed to unmarshal quote batch event: %w", err)
		}
		return c.storeQuotes(ctx, data)
	case models.EventFXRateUpdated:
		var data models.FXRateEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("failed to unmarshal fx rate event: %w", err)
		}
		return c.storeRate(ctx, data)
	default:
		log := logger.FromContext(ctx)
		log.Debug().Str("event_type", event.EventType).Msg("ignoring event")
		return nil
	}
}

// recordTransaction appends a fill to the holding's ledger, creating the
// holding on its first transaction. Fills already recorded are skipped.
func (c *Consumer) recordTransaction(ctx context.Context, source string, data models.TransactionEventData) error {
	log := logger.FromContext(ctx).With().
		Int64("portfolio_id", data.PortfolioID).
		Str("symbol", data.Symbol).
		Str("external_id", data.ExternalID).
		Logger()

	if data.ExternalID != "" {
		exists, err := c.repo.TransactionExistsByExternalID(data.ExternalID, source)
		if err != nil {
			return fmt.Errorf("failed to check for duplicate transaction: %w", err)
		}
		if exists {
			log.Info().Str("source", source).Msg("transaction already recorded, skipping")
			return nil
		}
	}

	portfolio, err := c.repo.GetPortfolioByID(data.PortfolioID)
	if err != nil {
		return fmt.Errorf("failed to get portfolio: %w", err)
	}

	market, err := models.ParseMarket(data.Market)
	if err != nil {
		return err
	}
	tx, err := c.convertTransaction(source, market, data)
	if err != nil {
		return fmt.Errorf("failed to convert event to transaction: %w", err)
	}

	holding, err := c.repo.GetHoldingBySymbol(data.PortfolioID, data.Symbol)
	switch {
	case errors.Is(err, database.ErrNotFound):
		holding, err = c.newHolding(data, market)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to get holding: %w", err)
	}

	if holding.ID == 0 {
		// an unknown holding has an empty ledger; reject before creating it
		if err := ledger.ValidateEntry(nil, *tx, holding.Currency()); err != nil {
			return fmt.Errorf("rejected transaction %s: %w", data.ExternalID, err)
		}
		if err := models.CheckHoldingCurrency(portfolio, holding); err != nil {
			return fmt.Errorf("rejected transaction %s: %w", data.ExternalID, err)
		}
		if err := c.repo.CreateHolding(holding); err != nil {
			return fmt.Errorf("failed to create holding: %w", err)
		}
		log.Info().Int64("holding_id", holding.ID).Msg("created holding")
	}

	tx.HoldingID = holding.ID
	if err := c.repo.CreateTransaction(tx); err != nil {
		if errors.Is(err, ledger.ErrInvalidEntry) {
			return fmt.Errorf("rejected transaction %s: %w", data.ExternalID, err)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	log.Info().
		Str("kind", string(tx.Kind)).
		Str("quantity", tx.Quantity.String()).
		Str("price", tx.Price.String()).
		Msg("recorded transaction")
	return nil
}

// newHolding builds an unsaved holding for the first fill of a symbol
func (c *Consumer) newHolding(data models.TransactionEventData, market models.Market) (*models.Holding, error) {
	class := models.AssetEquity
	if data.AssetClass != "" {
		parsed, err := models.ParseAssetClass(data.AssetClass)
		if err != nil {
			return nil, err
		}
		class = parsed
	}
	name := data.Name
	if name == "" {
		name = data.Symbol
	}
	return &models.Holding{
		PortfolioID: data.PortfolioID,
		Symbol:      data.Symbol,
		Name:        name,
		AssetClass:  class,
		Market:      market,
	}, nil
}

// convertTransaction maps an event payload to an unsaved ledger entry
func (c *Consumer) convertTransaction(source string, market models.Market, data models.TransactionEventData) (*models.Transaction, error) {
	kind, err := models.ParseTransactionKind(data.Kind)
	if err != nil {
		return nil, err
	}

	quantity, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %s: %w", data.Quantity, err)
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %s: %w", data.Price, err)
	}

	fee := decimal.Zero
	if data.Fee != "" {
		fee, err = decimal.NewFromString(data.Fee)
		if err != nil {
			return nil, fmt.Errorf("invalid fee %s: %w", data.Fee, err)
		}
	}

	currency := strings.ToUpper(data.Currency)
	if currency == "" {
		currency = market.Currency()
	}

	return &models.Transaction{
		Kind:       kind,
		Date:       models.Day(c.parseExecutedAt(data.ExecutedAt)),
		Quantity:   quantity,
		Price:      price,
		Fee:        fee,
		Currency:   currency,
		Note:       data.Note,
		ExternalID: data.ExternalID,
		Source:     source,
	}, nil
}

// parseExecutedAt accepts RFC3339, a timestamp without zone, or a bare date.
// Anything else falls back to now.
func (c *Consumer) parseExecutedAt(s *string) time.Time {
	if s == nil || *s == "" {
		return c.now()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", models.DateLayout} {
		if t, err := time.Parse(layout, *s); err == nil {
			return t
		}
	}
	return c.now()
}

// storeQuote upserts a pushed quote and drops its cached copy
func (c *Consumer) storeQuote(ctx context.Context, data models.QuoteEventData) error {
	q, err := c.convertQuote(data)
	if err != nil {
		return fmt.Errorf("failed to convert quote event: %w", err)
	}
	if err := c.repo.UpsertQuote(q); err != nil {
		return err
	}
	if c.cache != nil {
		if err := c.cache.InvalidateQuote(ctx, q.Symbol); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("symbol", q.Symbol).Msg("failed to invalidate cached quote")
		}
	}
	return nil
}

// storeQuotes upserts a batch of quotes in one transaction. Malformed
// entries are skipped so that one bad symbol does not drop the whole poll.
func (c *Consumer) storeQuotes(ctx context.Context, data models.QuoteBatchEventData) error {
	log := logger.FromContext(ctx)
	quotes := make([]*models.PriceQuote, 0, len(data.Quotes))
	for _, d := range data.Quotes {
		q, err := c.convertQuote(d)
		if err != nil {
			log.Warn().Err(err).Str("symbol", d.Symbol).Msg("skipping malformed quote")
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 {
		return nil
	}
	if err := c.repo.UpsertQuoteBatch(quotes); err != nil {
		return err
	}
	if c.cache != nil {
		for _, q := range quotes {
			if err := c.cache.InvalidateQuote(ctx, q.Symbol); err != nil {
				log.Warn().Err(err).Str("symbol", q.Symbol).Msg("failed to invalidate cached quote")
			}
		}
	}
	return nil
}

func (c *Consumer) convertQuote(data models.QuoteEventData) (*models.PriceQuote, error) {
	if data.Symbol == "" {
		return nil, errors.New("symbol is required")
	}
	date, err := c.parseDate(data.Date)
	if err != nil {
		return nil, err
	}
	state, err := models.ParseMarketState(data.MarketState)
	if err != nil {
		return nil, err
	}

	closePrice, err := decimal.NewFromString(data.Close)
	if err != nil {
		return nil, fmt.Errorf("invalid close %s: %w", data.Close, err)
	}
	optional := func(field, s string) (decimal.Decimal, error) {
		if s == "" {
			return closePrice, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid %s %s: %w", field, s, err)
		}
		return d, nil
	}
	nullable := func(field, s string) (decimal.NullDecimal, error) {
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("invalid %s %s: %w", field, s, err)
		}
		return decimal.NewNullDecimal(d), nil
	}

	q := &models.PriceQuote{
		Symbol:      data.Symbol,
		Date:        date,
		Close:       closePrice,
		Currency:    strings.ToUpper(data.Currency),
		MarketState: state,
	}
	if q.Open, err = optional("open", data.Open); err != nil {
		return nil, err
	}
	if q.High, err = optional("high", data.High); err != nil {
		return nil, err
	}
	if q.Low, err = optional("low", data.Low); err != nil {
		return nil, err
	}
	// previous close defaults to zero, which valuation treats as missing
	if data.PreviousClose != "" {
		if q.PreviousClose, err = decimal.NewFromString(data.PreviousClose); err != nil {
			return nil, fmt.Errorf("invalid previous_close %s: %w", data.PreviousClose, err)
		}
	}
	if q.PreMarketPrice, err = nullable("pre_market_price", data.PreMarketPrice); err != nil {
		return nil, err
	}
	if q.PostMarketPrice, err = nullable("post_market_price", data.PostMarketPrice); err != nil {
		return nil, err
	}
	return q, nil
}

// storeRate upserts a pushed FX rate and drops its cached copy
func (c *Consumer) storeRate(ctx context.Context, data models.FXRateEventData) error {
	rate, err := decimal.NewFromString(data.Rate)
	if err != nil {
		return fmt.Errorf("invalid rate %s: %w", data.Rate, err)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("rate %s/%s must be positive, got %s", data.From, data.To, rate)
	}
	date, err := c.parseDate(data.Date)
	if err != nil {
		return err
	}

	r := &models.FXRate{
		From: strings.ToUpper(data.From),
		To:   strings.ToUpper(data.To),
		Date: date,
		Rate: rate,
	}
	if err := c.repo.UpsertFXRate(r); err != nil {
		return err
	}
	if c.cache != nil {
		if err := c.cache.InvalidateRate(ctx, r.From, r.To); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("pair", r.From+"/"+r.To).Msg("failed to invalidate cached rate")
		}
	}
	return nil
}

func (c *Consumer) parseDate(s string) (time.Time, error) {
	if s == "" {
		return models.Day(c.now()), nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %s: %w", s, err)
	}
	return t, nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
