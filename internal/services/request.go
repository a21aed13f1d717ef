package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"dividi/internal/core"
)

// ErrInvalidRequest marks input that cannot be turned into an expense.
var ErrInvalidRequest = errors.New("invalid request")

// ShareInput is one participant of a create-expense form. Ref is a
// participant id or a display name. Which of the value fields is read
// depends on the split kind.
type ShareInput struct {
	Ref        string `json:"ref"`
	Value      string `json:"value,omitempty"`
	Percentage string `json:"percentage,omitempty"`
	Weight     string `json:"weight,omitempty"`
}

// CreateExpenseRequest is the loosely typed input collected by a client.
// Amounts and ratios are decimal strings; Split defaults to equal.
type CreateExpenseRequest struct {
	Title        string       `json:"title"`
	Amount       string       `json:"amount"`
	Payer        string       `json:"payer"`
	Category     string       `json:"category,omitempty"`
	Split        string       `json:"split,omitempty"`
	Participants []ShareInput `json:"participants"`
}

// normalized is a request that passed every check not requiring the directory.
type normalized struct {
	title    string
	amount   core.Money
	payer    string
	category string
	kind     string
	refs     []string
	values   []core.Split
}

// normalize validates the request and resolves the split against positional
// placeholder ids, so that a request that would fail never creates participants.
func (r CreateExpenseRequest) normalize() (normalized, error) {
	n := normalized{
		title:    strings.TrimSpace(r.Title),
		payer:    strings.TrimSpace(r.Payer),
		category: strings.TrimSpace(r.Category),
		kind:     strings.ToLower(strings.TrimSpace(r.Split)),
	}
	if n.title == "" {
		return n, core.ErrEmptyTitle
	}
	if n.payer == "" {
		return n, core.ErrEmptyPayer
	}
	if n.kind == "" {
		n.kind = core.KindEqual
	}

	amount, err := core.ParseAmount(r.Amount)
	if err != nil {
		return n, err
	}
	n.amount = amount

	if len(r.Participants) == 0 {
		return n, core.ErrNoParticipants
	}

	seen := make(map[string]bool, len(r.Participants))
	for _, p := range r.Participants {
		ref := strings.TrimSpace(p.Ref)
		if ref == "" {
			return n, fmt.Errorf("%w: participant without name", ErrInvalidRequest)
		}
		key := strings.ToLower(ref)
		if seen[key] {
			return n, fmt.Errorf("%w: participant %q listed twice", ErrInvalidRequest, ref)
		}
		seen[key] = true
		n.refs = append(n.refs, ref)
	}

	strategy, err := buildStrategy(n.kind, placeholders(len(n.refs)), r.Participants)
	if err != nil {
		return n, err
	}
	n.values, err = strategy.Resolve(amount)
	if err != nil {
		return n, err
	}
	return n, nil
}

func placeholders(n int) []core.ParticipantID {
	ids := make([]core.ParticipantID, n)
	for i := range ids {
		ids[i] = core.ParticipantID(fmt.Sprintf("#%d", i))
	}
	return ids
}

func buildStrategy(kind string, ids []core.ParticipantID, in []ShareInput) (core.SplitStrategy, error) {
	switch kind {
	case core.KindEqual:
		return core.EqualSplit{Participants: ids}, nil

	case core.KindPercentage:
		s := core.PercentageSplit{}
		for i, p := range in {
			pct, err := parseRatio(p.Percentage, "percentage")
			if err != nil {
				return nil, err
			}
			s.Shares = append(s.Shares, core.PercentageShare{ParticipantID: ids[i], Percent: pct})
		}
		return s, nil

	case core.KindWeight:
		s := core.WeightSplit{}
		for i, p := range in {
			w, err := parseRatio(p.Weight, "weight")
			if err != nil {
				return nil, err
			}
			s.Shares = append(s.Shares, core.WeightShare{ParticipantID: ids[i], Weight: w})
		}
		return s, nil

	case core.KindCustom:
		s := core.CustomSplit{}
		for i, p := range in {
			v, err := core.ParseMoney(p.Value)
			if err != nil {
				return nil, err
			}
			s.Shares = append(s.Shares, core.Split{ParticipantID: ids[i], Value: v})
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownStrategy, kind)
	}
}

func parseRatio(s, field string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: missing %s", ErrInvalidRequest, field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad %s %q", ErrInvalidRequest, field, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %s", ErrInvalidRequest, field)
	}
	return d, nil
}
