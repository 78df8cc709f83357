// Package currency converts amounts between currencies using a frozen rate
// table supplied by the caller. Cross rates are never derived.
package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrMissingRate matches every MissingRateError
var ErrMissingRate = errors.New("missing exchange rate")

// MissingRateError names the pair that had no usable rate
type MissingRateError struct {
	From string
	To   string
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("missing exchange rate %s->%s", e.From, e.To)
}

func (e *MissingRateError) Is(target error) bool {
	return target == ErrMissingRate
}

// Pair is a directed currency pair: one From unit is worth Rate To units
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewPair normalises both codes to upper case
func NewPair(from, to string) Pair {
	return Pair{From: strings.ToUpper(from), To: strings.ToUpper(to)}
}

func (p Pair) String() string {
	return p.From + "/" + p.To
}

// Rates is an immutable view of the rates gathered for one computation
type Rates map[Pair]decimal.Decimal

// Rate returns the factor converting from into to. Identical currencies
// return 1 without a lookup. Non-positive rates count as missing.
func (r Rates) Rate(from, to string) (decimal.Decimal, error) {
	p := NewPair(from, to)
	if p.From == p.To {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := r[p]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, &MissingRateError{From: p.From, To: p.To}
	}
	return rate, nil
}

// Convert converts amount from one currency into another
func Convert(amount decimal.Decimal, from, to string, rates Rates) (decimal.Decimal, error) {
	rate, err := rates.Rate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// Validate reports whether code is a known ISO 4217 currency
func Validate(code string) error {
	if money.GetCurrency(strings.ToUpper(code)) == nil {
		return fmt.Errorf("unknown currency %q", code)
	}
	return nil
}

// Fraction returns the number of minor-unit digits of a currency, 2 when unknown
func Fraction(code string) int32 {
	c := money.GetCurrency(strings.ToUpper(code))
	if c == nil {
		return 2
	}
	return int32(c.Fraction)
}

// Round rounds amount to the minor unit of the currency
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Fraction(code))
}

// Format renders amount with the currency's symbol and grouping
func Format(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(code)
	minor := Round(amount, code).Shift(Fraction(code)).IntPart()
	return money.New(minor, code).Display()
}

// PairSet collects the distinct pairs a computation needs
type PairSet map[Pair]struct{}

// Add records the pair unless both sides are the same currency
func (s PairSet) Add(from, to string) {
	p := NewPair(from, to)
	if p.From == p.To {
		return
	}
	s[p] = struct{}{}
}

// Sorted returns the pairs in a stable order
func (s PairSet) Sorted() []Pair {
	out := make([]Pair, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}
