package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/currency"
	"github.com/trogers1052/portfolio-tracker/internal/models"
	"github.com/trogers1052/portfolio-tracker/internal/valuation"
)

var assetClassOrder = map[models.AssetClass]int{
	models.AssetEquity: 0,
	models.AssetFund:   1,
	models.AssetBond:   2,
	models.AssetMetal:  3,
	models.AssetCrypto: 4,
	models.AssetCash:   5,
}

type breakdownKey struct {
	class    models.AssetClass
	currency string
}

// BuildBreakdown groups valued holdings by asset class and native currency.
// Amounts stay in the valuation currency, rounded to its minor unit.
func BuildBreakdown(v *valuation.PortfolioPnL) []models.AssetBreakdown {
	groups := map[breakdownKey]*models.AssetBreakdown{}
	for _, h := range v.Holdings {
		k := breakdownKey{class: h.AssetClass, currency: h.Currency}
		b, ok := groups[k]
		if !ok {
			b = &models.AssetBreakdown{
				AssetClass: h.AssetClass,
				Currency:   h.Currency,
				Value:      decimal.Zero,
				Cost:       decimal.Zero,
				PnL:        decimal.Zero,
			}
			groups[k] = b
		}
		b.Value = b.Value.Add(h.MarketValue)
		b.Cost = b.Cost.Add(h.Cost)
	}

	out := make([]models.AssetBreakdown, 0, len(groups))
	for _, b := range groups {
		b.Value = currency.Round(b.Value, v.Currency)
		b.Cost = currency.Round(b.Cost, v.Currency)
		b.PnL = b.Value.Sub(b.Cost)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := assetClassOrder[out[i].AssetClass], assetClassOrder[out[j].AssetClass]
		if oi != oj {
			return oi < oj
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

// EncodeBreakdown serialises a breakdown into the snapshot blob
func EncodeBreakdown(entries []models.AssetBreakdown) ([]byte, error) {
	if entries == nil {
		entries = []models.AssetBreakdown{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode breakdown: %w", err)
	}
	return b, nil
}

// DecodeBreakdown parses a snapshot blob. An empty blob is an empty breakdown.
func DecodeBreakdown(blob []byte) ([]models.AssetBreakdown, error) {
	entries := []models.AssetBreakdown{}
	if len(blob) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(blob, &entries); err != nil {
		return []models.AssetBreakdown{}, fmt.Errorf("failed to decode breakdown: %w", err)
	}
	return entries, nil
}

// Breakdown returns the decoded breakdown of s, or an empty breakdown when
// the blob cannot be read
func Breakdown(s *models.DailySnapshot) []models.AssetBreakdown {
	entries, err := DecodeBreakdown(s.Breakdown)
	if err != nil {
		return []models.AssetBreakdown{}
	}
	return entries
}
