package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, true},
		{"0.00", 0, true},
		{"1", 100, false},
		{"1.2", 120, false},
		{"1,2", 120, false},
		{"1.23", 123, false},
		{"1,23", 123, false},
		{"1.234", 123, false},
		{"1.235", 124, false},
		{"  10.00  ", 1000, false},
		{"-1", 0, true},
		{"+1", 0, true},
		{"1e3", 0, true},
		{"1.2.3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"99999999999999999999", 0, true},
		{"100000000000", 10_000_000_000_000, false},
		{"100000000000.01", 0, true},
		{"92233720368547758.07", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Cents)
		})
	}
}

func TestParseMoneyAcceptsZero(t *testing.T) {
	m, err := ParseMoney("0")
	require.NoError(t, err)
	assert.True(t, m.IsZero())
}

func TestMoneyFromFloat(t *testing.T) {
	m, err := MoneyFromFloat(33.33)
	require.NoError(t, err)
	assert.Equal(t, int64(3333), m.Cents)

	m, err = MoneyFromFloat(0.1 + 0.2)
	require.NoError(t, err)
	assert.Equal(t, int64(30), m.Cents)

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1} {
		_, err := MoneyFromFloat(f)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %v", f)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoney(1050)
	b := NewMoney(-300)

	assert.Equal(t, NewMoney(750), a.Add(b))
	assert.Equal(t, NewMoney(1350), a.Sub(b))
	assert.Equal(t, NewMoney(300), b.Abs())
	assert.Equal(t, NewMoney(-1050), a.Neg())
	assert.Equal(t, b, Min(a, b))
	assert.True(t, b.IsNegative())
	assert.True(t, a.IsPositive())
}

func TestMoneyFormatting(t *testing.T) {
	assert.Equal(t, "12.30", NewMoney(1230).String())
	assert.Equal(t, "-0.05", NewMoney(-5).String())
	assert.Equal(t, "₹12.30", NewMoney(1230).Format("₹"))
	assert.Equal(t, "-₹12.30", NewMoney(-1230).Format("₹"))
	assert.InDelta(t, 12.3, NewMoney(1230).Float64(), 1e-9)
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(NewMoney(33300))
	require.NoError(t, err)
	assert.JSONEq(t, `"333.00"`, string(b))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"12.34"`), &m))
	assert.Equal(t, int64(1234), m.Cents)

	require.NoError(t, json.Unmarshal([]byte(`12.5`), &m))
	assert.Equal(t, int64(1250), m.Cents)

	require.NoError(t, json.Unmarshal([]byte(`"-4.00"`), &m))
	assert.Equal(t, int64(-400), m.Cents)

	assert.Error(t, json.Unmarshal([]byte(`"twelve"`), &m))
}

func TestMoneyValidate(t *testing.T) {
	assert.NoError(t, NewMoney(1).Validate())
	assert.ErrorIs(t, NewMoney(0).Validate(), ErrInvalidAmount)
	assert.ErrorIs(t, NewMoney(-1).Validate(), ErrInvalidAmount)
	assert.NoError(t, NewMoney(MaxAmountCents).Validate())
	assert.ErrorIs(t, NewMoney(MaxAmountCents+1).Validate(), ErrInvalidAmount)
}
