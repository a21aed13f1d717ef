// Package core provides the ledger domain types and money handling.
//
// Money is held as integer minor units (cents, paise). Decimal strings and
// floats only appear at I/O boundaries, where conversion goes through
// shopspring/decimal so no float rounding leaks into stored amounts.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents caps a single amount at one hundred billion major units.
// Balances fold many amounts together, so the cap keeps those sums far from
// the int64 range.
const MaxAmountCents int64 = 10_000_000_000_000

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.New(MaxAmountCents, -2)
	maxMoney  = decimal.New(math.MaxInt64, -2)
)

// NewMoney returns an amount of the given minor units.
func NewMoney(cents int64) Money {
	return Money{Cents: cents}
}

// ParseAmount parses a strictly positive decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) separators and rounds half-up
// on the third decimal place.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,34")  -> 1234
//	ParseAmount("12.346") -> 1235
//	ParseAmount("0")      -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ParseMoney parses a non-negative decimal amount. Zero is accepted.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r < '0' || r > '9':
			// signs and exponents are rejected
			return Money{}, ErrInvalidAmount
		}
	}
	if dots > 1 || s == "." {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d half away from zero to two places.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	r := d.Round(2)
	if r.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: r.Shift(2).IntPart()}, nil
}

// MoneyFromFloat converts a float amount, rejecting NaN, infinities and negatives.
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }
func (m Money) IsPositive() bool { return m.Cents > 0 }

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a.Cents < b.Cents {
		return a
	}
	return b
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 returns the major-unit value for display only.
func (m Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

// String renders the amount with two decimals, e.g. "-12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format prefixes the currency symbol, keeping the sign in front: "-₹12.30".
func (m Money) Format(symbol string) string {
	if m.Cents < 0 {
		return "-" + symbol + m.Abs().String()
	}
	return symbol + m.String()
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
// Negative values are allowed here because balances are carried as Money too.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return ErrInvalidAmount
	}
	r := d.Round(2)
	if r.Abs().GreaterThan(maxMoney) {
		return ErrInvalidAmount
	}
	m.Cents = r.Shift(2).IntPart()
	return nil
}
