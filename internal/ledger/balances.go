package ledger

import (
	"sort"

	"dividi/internal/core"
)

// Balances maps a participant to their net position.
// Positive means the participant is owed money, negative means they owe.
type Balances map[core.ParticipantID]core.Money

// ComputeBalances folds the unsettled expenses into net balances.
// Every participant referenced by any expense appears, possibly at zero.
func ComputeBalances(expenses []core.Expense) Balances {
	b := make(Balances)
	for _, e := range expenses {
		for _, id := range e.Participants() {
			if _, ok := b[id]; !ok {
				b[id] = core.Money{}
			}
		}
		if e.Settled {
			continue
		}
		b[e.PayerID] = b[e.PayerID].Add(e.Amount)
		for _, s := range e.Splits {
			b[s.ParticipantID] = b[s.ParticipantID].Sub(s.Value)
		}
	}
	return b
}

// Total sums all balances. It is zero for any ledger built through Store.Add.
func (b Balances) Total() core.Money {
	var t core.Money
	for _, m := range b {
		t = t.Add(m)
	}
	return t
}

// AllZero reports whether everyone is settled up.
func (b Balances) AllZero() bool {
	for _, m := range b {
		if !m.IsZero() {
			return false
		}
	}
	return true
}

// IDs returns the participant ids in ascending order.
func (b Balances) IDs() []core.ParticipantID {
	ids := make([]core.ParticipantID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MemberSummary splits a net balance into what was paid and what was consumed.
type MemberSummary struct {
	ParticipantID core.ParticipantID `json:"participantId"`
	TotalPaid     core.Money         `json:"totalPaid"`
	TotalOwed     core.Money         `json:"totalOwed"`
	Net           core.Money         `json:"net"`
}

// Summarize reports paid and owed totals over unsettled expenses, sorted by id.
// Settlement expenses count like any other: paying a debt raises TotalPaid.
func Summarize(expenses []core.Expense) []MemberSummary {
	byID := make(map[core.ParticipantID]*MemberSummary)
	get := func(id core.ParticipantID) *MemberSummary {
		if m, ok := byID[id]; ok {
			return m
		}
		m := &MemberSummary{ParticipantID: id}
		byID[id] = m
		return m
	}

	for _, e := range expenses {
		for _, id := range e.Participants() {
			get(id)
		}
		if e.Settled {
			continue
		}
		payer := get(e.PayerID)
		payer.TotalPaid = payer.TotalPaid.Add(e.Amount)
		for _, s := range e.Splits {
			m := get(s.ParticipantID)
			m.TotalOwed = m.TotalOwed.Add(s.Value)
		}
	}

	out := make([]MemberSummary, 0, len(byID))
	for _, m := range byID {
		m.Net = m.TotalPaid.Sub(m.TotalOwed)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}
