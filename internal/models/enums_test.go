package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	m, err := ParseMarket("jp")
	require.NoError(t, err)
	assert.Equal(t, MarketJP, m)
	assert.Equal(t, "JPY", m.Currency())

	k, err := ParseTransactionKind("BUY")
	require.NoError(t, err)
	assert.Equal(t, TransactionBuy, k)

	s, err := ParseMarketState("")
	require.NoError(t, err)
	assert.Equal(t, MarketStateRegular, s)

	_, err = ParseAccountType("ira")
	assert.ErrorIs(t, err, ErrUnknownEnum)
	_, err = ParseAssetClass("")
	assert.ErrorIs(t, err, ErrUnknownEnum)
}

func TestMarketCurrencies(t *testing.T) {
	for _, m := range markets {
		assert.Len(t, m.Currency(), 3, string(m))
	}
	assert.Equal(t, "USD", MarketMetal.Currency())
	assert.Equal(t, "", Market("MARS").Currency())
}

func TestEnumScanRejectsUnknownValues(t *testing.T) {
	var a AssetClass
	require.NoError(t, a.Scan([]byte("metal")))
	assert.Equal(t, AssetMetal, a)

	var m Market
	assert.ErrorIs(t, m.Scan("NASDAQ"), ErrUnknownEnum)
	assert.ErrorIs(t, m.Scan(42), ErrUnknownEnum)

	var k TransactionKind
	assert.ErrorIs(t, k.Scan("transfer"), ErrUnknownEnum)
}

func TestEnumJSON(t *testing.T) {
	var h Holding
	require.NoError(t, json.Unmarshal([]byte(`{"market":"us","asset_class":"fund"}`), &h))
	assert.Equal(t, MarketUS, h.Market)
	assert.Equal(t, AssetFund, h.AssetClass)

	err := json.Unmarshal([]byte(`{"market":"moon"}`), &h)
	assert.ErrorIs(t, err, ErrUnknownEnum)
}

func TestAccountTypeIsNISA(t *testing.T) {
	assert.True(t, AccountNISAAccumulation.IsNISA())
	assert.True(t, AccountNISAGrowth.IsNISA())
	assert.False(t, AccountGeneral.IsNISA())
}

func TestScopeKey(t *testing.T) {
	assert.Equal(t, "global", GlobalScope.Key())
	assert.True(t, GlobalScope.IsGlobal())
	assert.Equal(t, "portfolio:7", PortfolioScope(7).Key())
	assert.False(t, PortfolioScope(7).IsGlobal())
}
