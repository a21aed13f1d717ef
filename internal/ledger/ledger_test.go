package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividi/internal/core"
	"dividi/internal/storage"
)

func money(cents int64) core.Money { return core.NewMoney(cents) }

func TestScenarioDinnerForThree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(storage.NewMemoryStore())

	_, err := s.Add(ctx, equal(t, "Dinner", "A", 30000, "A", "B", "C"))
	require.NoError(t, err)

	es, err := s.List(ctx, Unsettled())
	require.NoError(t, err)
	b := ComputeBalances(es)
	assert.Equal(t, Balances{"A": money(20000), "B": money(-10000), "C": money(-10000)}, b)

	plan := ReduceToTransfers(b)
	assert.Equal(t, []core.Transfer{
		{From: "B", To: "A", Amount: money(10000)},
		{From: "C", To: "A", Amount: money(10000)},
	}, plan)

	rec := NewRecorder(s, "test")
	for _, tr := range plan {
		e, err := rec.RecordSettlement(ctx, tr)
		require.NoError(t, err)
		assert.True(t, e.IsSettlement())
		assert.Equal(t, SettlementTitle, e.Title)
	}

	es, err = s.List(ctx, Unsettled())
	require.NoError(t, err)
	b = ComputeBalances(es)
	assert.True(t, b.AllZero(), "balances after settling: %v", b)
	assert.Empty(t, ReduceToTransfers(b))
}

func TestScenarioSettlementClosesTheLoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(storage.NewMemoryStore())

	dinner, err := s.Add(ctx, equal(t, "Dinner", "P", 10000, "P", "S"))
	require.NoError(t, err)

	es, err := s.List(ctx, Unsettled())
	require.NoError(t, err)
	plan := ReduceToTransfers(ComputeBalances(es))
	require.Equal(t, []core.Transfer{{From: "S", To: "P", Amount: money(5000)}}, plan)

	paid, err := NewRecorder(s, "test").RecordSettlement(ctx, plan[0])
	require.NoError(t, err)
	assert.Equal(t, core.ParticipantID("S"), paid.PayerID)

	changed, err := s.MarkSettled(ctx, dinner.ID, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, e := range all {
		assert.True(t, e.Settled, "expense %s", e.ID)
	}
	assert.Equal(t, Balances{"P": money(0), "S": money(0)}, ComputeBalances(all))
}

func TestScenarioPercentageSplit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(storage.NewMemoryStore())

	splits, err := core.PercentageSplit{Shares: []core.PercentageShare{
		{ParticipantID: "A", Percent: decimal.RequireFromString("33.33")},
		{ParticipantID: "B", Percent: decimal.RequireFromString("33.33")},
		{ParticipantID: "C", Percent: decimal.RequireFromString("33.34")},
	}}.Resolve(money(33300))
	require.NoError(t, err)

	e, err := s.Add(ctx, NewExpense{Title: "Hotel", Amount: money(33300), PayerID: "A", Splits: splits})
	require.NoError(t, err)

	var sum core.Money
	for _, sp := range e.Splits {
		sum = sum.Add(sp.Value)
	}
	assert.Equal(t, money(33300), sum)
	assert.True(t, ComputeBalances([]core.Expense{e}).Total().IsZero())
}

func TestRecordSettlementRejects(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(newTestStore(storage.NewMemoryStore()), "test")

	_, err := rec.RecordSettlement(ctx, core.Transfer{From: "a", To: "a", Amount: money(10)})
	assert.ErrorIs(t, err, core.ErrSelfTransfer)

	_, err = rec.RecordSettlement(ctx, core.Transfer{From: "a", To: "b", Amount: money(0)})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestRecordSettlementIsNotDeduplicated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(storage.NewMemoryStore())
	rec := NewRecorder(s, "test")

	tr := core.Transfer{From: "b", To: "a", Amount: money(500)}
	_, err := rec.RecordSettlement(ctx, tr)
	require.NoError(t, err)
	_, err = rec.RecordSettlement(ctx, tr)
	require.NoError(t, err)

	es, err := s.List(ctx, Unsettled())
	require.NoError(t, err)
	assert.Len(t, es, 2)
	assert.Equal(t, Balances{"a": money(-1000), "b": money(1000)}, ComputeBalances(es))
}

func TestComputeBalancesSkipsSettled(t *testing.T) {
	es := []core.Expense{
		{Amount: money(1000), PayerID: "a", Splits: []core.Split{{ParticipantID: "b", Value: money(1000)}}, Settled: true},
		{Amount: money(600), PayerID: "c", Splits: []core.Split{{ParticipantID: "a", Value: money(600)}}},
	}
	b := ComputeBalances(es)
	assert.Equal(t, Balances{"a": money(-600), "b": money(0), "c": money(600)}, b)
	assert.Equal(t, []core.ParticipantID{"a", "b", "c"}, b.IDs())
}

func TestComputeBalancesDoesNotMutateInput(t *testing.T) {
	es := []core.Expense{
		{ID: "x", Amount: money(900), PayerID: "a", Splits: []core.Split{
			{ParticipantID: "a", Value: money(450)},
			{ParticipantID: "b", Value: money(450)},
		}},
	}
	snapshot := fmt.Sprintf("%+v", es)
	ComputeBalances(es)
	Summarize(es)
	assert.Equal(t, snapshot, fmt.Sprintf("%+v", es))
}

func TestSummarize(t *testing.T) {
	es := []core.Expense{
		{Amount: money(30000), PayerID: "a", Splits: []core.Split{
			{ParticipantID: "a", Value: money(10000)},
			{ParticipantID: "b", Value: money(10000)},
			{ParticipantID: "c", Value: money(10000)},
		}},
	}
	got := Summarize(es)
	assert.Equal(t, []MemberSummary{
		{ParticipantID: "a", TotalPaid: money(30000), TotalOwed: money(10000), Net: money(20000)},
		{ParticipantID: "b", TotalOwed: money(10000), Net: money(-10000)},
		{ParticipantID: "c", TotalOwed: money(10000), Net: money(-10000)},
	}, got)
}

func TestReduceToTransfers(t *testing.T) {
	tests := []struct {
		name     string
		balances Balances
		want     []core.Transfer
	}{
		{"empty", Balances{}, nil},
		{"all zero", Balances{"a": money(0), "b": money(0)}, nil},
		{
			name:     "one pair",
			balances: Balances{"a": money(500), "b": money(-500)},
			want:     []core.Transfer{{From: "b", To: "a", Amount: money(500)}},
		},
		{
			name:     "largest first",
			balances: Balances{"a": money(700), "b": money(300), "c": money(-600), "d": money(-400)},
			want: []core.Transfer{
				{From: "c", To: "a", Amount: money(600)},
				{From: "d", To: "a", Amount: money(100)},
				{From: "d", To: "b", Amount: money(300)},
			},
		},
		{
			name:     "ties broken by id",
			balances: Balances{"z": money(100), "y": money(100), "x": money(-200)},
			want: []core.Transfer{
				{From: "x", To: "y", Amount: money(100)},
				{From: "x", To: "z", Amount: money(100)},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReduceToTransfers(tt.balances))
		})
	}
}

// randomLedger builds a valid unsettled ledger using every split strategy.
func randomLedger(t *testing.T, r *rand.Rand, people []core.ParticipantID, n int) []core.Expense {
	t.Helper()
	var es []core.Expense
	for i := 0; i < n; i++ {
		amount := money(int64(r.Intn(100000) + 1))
		payer := people[r.Intn(len(people))]
		k := r.Intn(len(people)) + 1
		members := append([]core.ParticipantID(nil), people[:k]...)

		var strategy core.SplitStrategy
		switch r.Intn(3) {
		case 0:
			strategy = core.EqualSplit{Participants: members}
		case 1:
			shares := make([]core.WeightShare, k)
			for j, id := range members {
				shares[j] = core.WeightShare{ParticipantID: id, Weight: decimal.NewFromInt(int64(r.Intn(5) + 1))}
			}
			strategy = core.WeightSplit{Shares: shares}
		default:
			shares := make([]core.PercentageShare, k)
			rest := decimal.NewFromInt(100)
			for j, id := range members {
				p := rest
				if j < k-1 {
					p = rest.Div(decimal.NewFromInt(2)).Round(2)
				}
				rest = rest.Sub(p)
				shares[j] = core.PercentageShare{ParticipantID: id, Percent: p}
			}
			strategy = core.PercentageSplit{Shares: shares}
		}

		splits, err := strategy.Resolve(amount)
		require.NoError(t, err)
		e := core.Expense{ID: core.ExpenseID(fmt.Sprint(i)), Title: "x", Amount: amount, PayerID: payer, Splits: splits}
		require.NoError(t, e.Validate())
		es = append(es, e)
	}
	return es
}

func TestLedgerProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	people := []core.ParticipantID{"p1", "p2", "p3", "p4", "p5", "p6"}

	for round := 0; round < 200; round++ {
		es := randomLedger(t, r, people, r.Intn(12)+1)
		b := ComputeBalances(es)
		require.True(t, b.Total().IsZero(), "round %d: balances do not sum to zero", round)

		plan := ReduceToTransfers(b)

		nonZero := 0
		for _, m := range b {
			if !m.IsZero() {
				nonZero++
			}
		}
		if nonZero > 0 {
			assert.LessOrEqual(t, len(plan), nonZero-1, "round %d", round)
		}

		// applying the plan nets every party to exactly zero
		net := make(Balances, len(b))
		for id, m := range b {
			net[id] = m
		}
		for _, tr := range plan {
			require.True(t, tr.Amount.IsPositive())
			net[tr.From] = net[tr.From].Add(tr.Amount)
			net[tr.To] = net[tr.To].Sub(tr.Amount)
		}
		assert.True(t, net.AllZero(), "round %d: residual %v", round, net)

		// and recording it as settlement expenses closes the loop
		for _, tr := range plan {
			es = append(es, core.Expense{
				Title: SettlementTitle, Amount: tr.Amount, PayerID: tr.From,
				Splits: []core.Split{{ParticipantID: tr.To, Value: tr.Amount}},
				Meta:   &core.Meta{Settlement: true},
			})
		}
		assert.True(t, ComputeBalances(es).AllZero(), "round %d", round)
	}
}
