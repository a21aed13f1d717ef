package ledger

import (
	"sort"

	"dividi/internal/core"
)

// Epsilon is the smallest balance treated as outstanding: one minor unit.
var Epsilon = core.NewMoney(1)

type party struct {
	id     core.ParticipantID
	amount core.Money // absolute value still to settle
}

// ReduceToTransfers turns net balances into a short list of payments.
//
// Creditors are sorted by amount descending, debtors by debt descending, ties
// broken by participant id so the plan is deterministic. The two lists are
// walked greedily: each step pays min(credit, debt) from the current debtor to
// the current creditor and advances whichever side reached zero. With k
// non-zero parties this emits at most k-1 transfers. Balances whose absolute
// value is below Epsilon are ignored.
func ReduceToTransfers(balances Balances) []core.Transfer {
	var creditors, debtors []party
	for id, m := range balances {
		switch {
		case m.Cents >= Epsilon.Cents:
			creditors = append(creditors, party{id: id, amount: m})
		case m.Cents <= -Epsilon.Cents:
			debtors = append(debtors, party{id: id, amount: m.Abs()})
		}
	}
	byAmountDesc := func(ps []party) func(i, j int) bool {
		return func(i, j int) bool {
			if ps[i].amount != ps[j].amount {
				return ps[i].amount.Cents > ps[j].amount.Cents
			}
			return ps[i].id < ps[j].id
		}
	}
	sort.Slice(creditors, byAmountDesc(creditors))
	sort.Slice(debtors, byAmountDesc(debtors))

	var transfers []core.Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		d, c := &debtors[i], &creditors[j]
		amount := core.Min(d.amount, c.amount)
		transfers = append(transfers, core.Transfer{From: d.id, To: c.id, Amount: amount})

		d.amount = d.amount.Sub(amount)
		c.amount = c.amount.Sub(amount)
		if d.amount.Cents < Epsilon.Cents {
			i++
		}
		if c.amount.Cents < Epsilon.Cents {
			j++
		}
	}
	return transfers
}
