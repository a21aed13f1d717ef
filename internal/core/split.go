package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PercentTolerance is how far percentages may drift from 100 before a split is rejected.
var PercentTolerance = decimal.RequireFromString("0.01")

// SplitEqual divides amount into n shares. The first n-1 shares are floored,
// the last one takes the remainder.
func SplitEqual(amount Money, n int) ([]Money, error) {
	if n <= 0 {
		return nil, ErrNoParticipants
	}
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	base := amount.Cents / int64(n)
	shares := make([]Money, n)
	for i := 0; i < n-1; i++ {
		shares[i] = Money{Cents: base}
	}
	shares[n-1] = Money{Cents: amount.Cents - base*int64(n-1)}
	return shares, nil
}

// SplitPercentages rounds each share to the nearest minor unit and assigns
// amount minus the rounded shares to the last participant.
// Percentages must sum to 100 within PercentTolerance.
func SplitPercentages(amount Money, pcts []decimal.Decimal) ([]Money, error) {
	if len(pcts) == 0 {
		return nil, ErrNoParticipants
	}
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	total := decimal.Zero
	for _, p := range pcts {
		if p.IsNegative() {
			return nil, ErrInvalidAmount
		}
		total = total.Add(p)
	}
	if total.Sub(hundred).Abs().GreaterThan(PercentTolerance) {
		return nil, fmt.Errorf("percentages sum to %s: %w", total.String(), ErrSplitMismatch)
	}

	base := decimal.NewFromInt(amount.Cents)
	shares := make([]Money, len(pcts))
	var sum int64
	for i := 0; i < len(pcts)-1; i++ {
		c := base.Mul(pcts[i]).Div(hundred).Round(0).IntPart()
		shares[i] = Money{Cents: c}
		sum += c
	}
	last := amount.Cents - sum
	if last < 0 {
		return nil, ErrSplitMismatch
	}
	shares[len(pcts)-1] = Money{Cents: last}
	return shares, nil
}

// SplitWeights divides amount proportionally to weights, flooring every share
// except the last, which takes the remainder.
func SplitWeights(amount Money, weights []decimal.Decimal) ([]Money, error) {
	if len(weights) == 0 {
		return nil, ErrNoParticipants
	}
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	total := decimal.Zero
	for _, w := range weights {
		if !w.IsPositive() {
			return nil, fmt.Errorf("weight %s: %w", w.String(), ErrInvalidAmount)
		}
		total = total.Add(w)
	}

	base := decimal.NewFromInt(amount.Cents)
	shares := make([]Money, len(weights))
	var sum int64
	for i := 0; i < len(weights)-1; i++ {
		c := base.Mul(weights[i]).DivRound(total, 8).Floor().IntPart()
		shares[i] = Money{Cents: c}
		sum += c
	}
	shares[len(weights)-1] = Money{Cents: amount.Cents - sum}
	return shares, nil
}

// SplitCustom checks caller supplied shares. A difference of one minor unit
// is absorbed by the last share; anything larger is a mismatch.
func SplitCustom(amount Money, values []Money) ([]Money, error) {
	if len(values) == 0 {
		return nil, ErrNoParticipants
	}
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	var sum int64
	for _, v := range values {
		if v.IsNegative() {
			return nil, ErrInvalidAmount
		}
		sum += v.Cents
	}
	diff := amount.Cents - sum
	if diff < -1 || diff > 1 {
		return nil, fmt.Errorf("custom shares sum to %s, expected %s: %w",
			Money{Cents: sum}.String(), amount.String(), ErrSplitMismatch)
	}
	shares := make([]Money, len(values))
	copy(shares, values)
	shares[len(shares)-1] = shares[len(shares)-1].Add(Money{Cents: diff})
	if shares[len(shares)-1].IsNegative() {
		return nil, ErrSplitMismatch
	}
	return shares, nil
}

// SplitStrategy resolves an amount into normalized splits.
type SplitStrategy interface {
	Kind() string
	Resolve(amount Money) ([]Split, error)
}

// Strategy kinds as accepted from forms.
const (
	KindEqual      = "equal"
	KindPercentage = "percentage"
	KindWeight     = "weight"
	KindCustom     = "custom"
)

type (
	EqualSplit struct {
		Participants []ParticipantID
	}

	PercentageShare struct {
		ParticipantID ParticipantID
		Percent       decimal.Decimal
	}

	PercentageSplit struct {
		Shares []PercentageShare
	}

	WeightShare struct {
		ParticipantID ParticipantID
		Weight        decimal.Decimal
	}

	WeightSplit struct {
		Shares []WeightShare
	}

	CustomSplit struct {
		Shares []Split
	}
)

func (EqualSplit) Kind() string      { return KindEqual }
func (PercentageSplit) Kind() string { return KindPercentage }
func (WeightSplit) Kind() string     { return KindWeight }
func (CustomSplit) Kind() string     { return KindCustom }

func (s EqualSplit) Resolve(amount Money) ([]Split, error) {
	values, err := SplitEqual(amount, len(s.Participants))
	if err != nil {
		return nil, err
	}
	return zipSplits(s.Participants, values), nil
}

func (s PercentageSplit) Resolve(amount Money) ([]Split, error) {
	ids := make([]ParticipantID, len(s.Shares))
	pcts := make([]decimal.Decimal, len(s.Shares))
	for i, sh := range s.Shares {
		ids[i], pcts[i] = sh.ParticipantID, sh.Percent
	}
	values, err := SplitPercentages(amount, pcts)
	if err != nil {
		return nil, err
	}
	return zipSplits(ids, values), nil
}

func (s WeightSplit) Resolve(amount Money) ([]Split, error) {
	ids := make([]ParticipantID, len(s.Shares))
	weights := make([]decimal.Decimal, len(s.Shares))
	for i, sh := range s.Shares {
		ids[i], weights[i] = sh.ParticipantID, sh.Weight
	}
	values, err := SplitWeights(amount, weights)
	if err != nil {
		return nil, err
	}
	return zipSplits(ids, values), nil
}

func (s CustomSplit) Resolve(amount Money) ([]Split, error) {
	ids := make([]ParticipantID, len(s.Shares))
	raw := make([]Money, len(s.Shares))
	for i, sh := range s.Shares {
		ids[i], raw[i] = sh.ParticipantID, sh.Value
	}
	values, err := SplitCustom(amount, raw)
	if err != nil {
		return nil, err
	}
	return zipSplits(ids, values), nil
}

func zipSplits(ids []ParticipantID, values []Money) []Split {
	out := make([]Split, len(ids))
	for i := range ids {
		out[i] = Split{ParticipantID: ids[i], Value: values[i]}
	}
	return out
}
