package currency

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRates_Rate(t *testing.T) {
	rates := Rates{
		NewPair("USD", "JPY"): decimal.NewFromInt(150),
		NewPair("EUR", "JPY"): decimal.Zero,
	}

	t.Run("identity needs no rate", func(t *testing.T) {
		r, err := Rates{}.Rate("jpy", "JPY")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1).Equal(r))
	})

	t.Run("known pair is case insensitive", func(t *testing.T) {
		r, err := rates.Rate("usd", "jpy")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(150).Equal(r))
	})

	t.Run("inverse is never derived", func(t *testing.T) {
		_, err := rates.Rate("JPY", "USD")
		var missing *MissingRateError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "JPY", missing.From)
		assert.Equal(t, "USD", missing.To)
		assert.ErrorIs(t, err, ErrMissingRate)
	})

	t.Run("non-positive rate counts as missing", func(t *testing.T) {
		_, err := rates.Rate("EUR", "JPY")
		assert.ErrorIs(t, err, ErrMissingRate)
	})
}

func TestConvert(t *testing.T) {
	rates := Rates{NewPair("USD", "JPY"): decimal.RequireFromString("150.5")}

	v, err := Convert(decimal.NewFromInt(10), "USD", "JPY", rates)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1505).Equal(v))

	_, err = Convert(decimal.NewFromInt(10), "GBP", "JPY", rates)
	assert.EqualError(t, err, "missing exchange rate GBP->JPY")
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int32(0), Fraction("JPY"))
	assert.Equal(t, int32(2), Fraction("usd"))
	assert.Equal(t, int32(2), Fraction("NOPE"))

	assert.True(t, decimal.NewFromInt(278).Equal(Round(decimal.RequireFromString("277.5"), "JPY")))
	assert.True(t, decimal.RequireFromString("12.35").Equal(Round(decimal.RequireFromString("12.345"), "USD")))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("JPY"))
	assert.NoError(t, Validate("usd"))
	assert.Error(t, Validate("NOPE"))
	assert.Error(t, Validate(""))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "¥277,500", Format(decimal.NewFromInt(277500), "JPY"))
	assert.Equal(t, "$1,234.57", Format(decimal.RequireFromString("1234.567"), "USD"))
}

func TestPairSet(t *testing.T) {
	s := PairSet{}
	s.Add("usd", "JPY")
	s.Add("USD", "JPY")
	s.Add("JPY", "JPY")
	s.Add("EUR", "JPY")
	s.Add("EUR", "USD")

	assert.Equal(t, []Pair{
		{From: "EUR", To: "JPY"},
		{From: "EUR", To: "USD"},
		{From: "USD", To: "JPY"},
	}, s.Sorted())
	assert.Equal(t, "USD/JPY", NewPair("usd", "jpy").String())
}
