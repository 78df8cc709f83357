package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEnum is returned when a stored or submitted value is not one of
// the known variants. Callers must migrate the data rather than guess.
var ErrUnknownEnum = errors.New("unknown enum value")

// AccountType tags a portfolio with its tax treatment
type AccountType string

const (
	AccountGeneral          AccountType = "general"
	AccountNISAAccumulation AccountType = "nisa_accumulation"
	AccountNISAGrowth       AccountType = "nisa_growth"
)

// AssetClass groups holdings for breakdowns
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetFund   AssetClass = "fund"
	AssetMetal  AssetClass = "metal"
	AssetCrypto AssetClass = "crypto"
	AssetBond   AssetClass = "bond"
	AssetCash   AssetClass = "cash"
)

// Market is the venue a holding trades on. It fixes the holding's native currency.
type Market string

const (
	MarketUS     Market = "US"
	MarketJP     Market = "JP"
	MarketHK     Market = "HK"
	MarketCN     Market = "CN"
	MarketUK     Market = "UK"
	MarketEU     Market = "EU"
	MarketCrypto Market = "CRYPTO"
	MarketMetal  Market = "METAL"
)

// TransactionKind is the type of ledger entry
type TransactionKind string

const (
	TransactionBuy      TransactionKind = "buy"
	TransactionSell     TransactionKind = "sell"
	TransactionDividend TransactionKind = "dividend"
)

// MarketState is the trading session a quote was taken in
type MarketState string

const (
	MarketStatePre     MarketState = "pre"
	MarketStateRegular MarketState = "regular"
	MarketStatePost    MarketState = "post"
	MarketStateClosed  MarketState = "closed"
)

var (
	accountTypes     = []AccountType{AccountGeneral, AccountNISAAccumulation, AccountNISAGrowth}
	assetClasses     = []AssetClass{AssetEquity, AssetFund, AssetMetal, AssetCrypto, AssetBond, AssetCash}
	markets          = []Market{MarketUS, MarketJP, MarketHK, MarketCN, MarketUK, MarketEU, MarketCrypto, MarketMetal}
	transactionKinds = []TransactionKind{TransactionBuy, TransactionSell, TransactionDividend}
	marketStates     = []MarketState{MarketStatePre, MarketStateRegular, MarketStatePost, MarketStateClosed}
)

var marketCurrencies = map[Market]string{
	MarketUS:     "USD",
	MarketJP:     "JPY",
	MarketHK:     "HKD",
	MarketCN:     "CNY",
	MarketUK:     "GBP",
	MarketEU:     "EUR",
	MarketCrypto: "USD",
	MarketMetal:  "USD",
}

func parse[T ~string](kind, s string, known []T) (T, error) {
	for _, v := range known {
		if string(v) == s {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %q", ErrUnknownEnum, kind, s)
}

func scanEnum[T ~string](kind string, src interface{}, known []T) (T, error) {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		var zero T
		return zero, fmt.Errorf("%w: cannot scan %T into %s", ErrUnknownEnum, src, kind)
	}
	return parse(kind, s, known)
}

// ParseAccountType parses an account type
func ParseAccountType(s string) (AccountType, error) {
	return parse("account type", s, accountTypes)
}

// ParseAssetClass parses an asset class
func ParseAssetClass(s string) (AssetClass, error) {
	return parse("asset class", s, assetClasses)
}

// ParseMarket parses a market tag. Market tags are case-insensitive.
func ParseMarket(s string) (Market, error) {
	return parse("market", strings.ToUpper(s), markets)
}

// ParseTransactionKind parses a transaction kind. Kinds are case-insensitive
// so that broker feeds sending "BUY" are accepted.
func ParseTransactionKind(s string) (TransactionKind, error) {
	return parse("transaction kind", strings.ToLower(s), transactionKinds)
}

// ParseMarketState parses a market state. An empty state means regular session.
func ParseMarketState(s string) (MarketState, error) {
	if s == "" {
		return MarketStateRegular, nil
	}
	return parse("market state", strings.ToLower(s), marketStates)
}

// IsNISA reports whether the account type consumes tax-free quota
func (a AccountType) IsNISA() bool {
	return a == AccountNISAAccumulation || a == AccountNISAGrowth
}

// Currency returns the native currency of the market
func (m Market) Currency() string {
	return marketCurrencies[m]
}

func (a AccountType) Value() (driver.Value, error) { return string(a), nil }
func (a *AccountType) Scan(src interface{}) (err error) {
	*a, err = scanEnum("account type", src, accountTypes)
	return err
}
func (a *AccountType) UnmarshalText(b []byte) (err error) {
	*a, err = ParseAccountType(string(b))
	return err
}

func (c AssetClass) Value() (driver.Value, error) { return string(c), nil }
func (c *AssetClass) Scan(src interface{}) (err error) {
	*c, err = scanEnum("asset class", src, assetClasses)
	return err
}
func (c *AssetClass) UnmarshalText(b []byte) (err error) {
	*c, err = ParseAssetClass(string(b))
	return err
}

func (m Market) Value() (driver.Value, error) { return string(m), nil }
func (m *Market) Scan(src interface{}) (err error) {
	*m, err = scanEnum("market", src, markets)
	return err
}
func (m *Market) UnmarshalText(b []byte) (err error) {
	*m, err = ParseMarket(string(b))
	return err
}

func (k TransactionKind) Value() (driver.Value, error) { return string(k), nil }
func (k *TransactionKind) Scan(src interface{}) (err error) {
	*k, err = scanEnum("transaction kind", src, transactionKinds)
	return err
}
func (k *TransactionKind) UnmarshalText(b []byte) (err error) {
	*k, err = ParseTransactionKind(string(b))
	return err
}

func (s MarketState) Value() (driver.Value, error) { return string(s), nil }
func (s *MarketState) Scan(src interface{}) (err error) {
	*s, err = scanEnum("market state", src, marketStates)
	return err
}
func (s *MarketState) UnmarshalText(b []byte) (err error) {
	*s, err = ParseMarketState(string(b))
	return err
}
