package ledger

import (
	"context"
	"fmt"

	"dividi/internal/core"
)

// SettlementTitle is the title given to recorded settlement expenses.
const SettlementTitle = "Settlement"

// Recorder writes confirmed transfers back into the ledger.
type Recorder struct {
	store  *Store
	source string
}

// NewRecorder returns a Recorder that tags its expenses with source.
func NewRecorder(store *Store, source string) *Recorder {
	return &Recorder{store: store, source: source}
}

// RecordSettlement appends an expense paid by t.From with a single split
// crediting t.To the full amount, which moves both balances toward zero by
// t.Amount. Calls are not deduplicated: recording the same transfer twice
// applies it twice.
func (r *Recorder) RecordSettlement(ctx context.Context, t core.Transfer) (core.Expense, error) {
	if err := t.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("record settlement: %w", err)
	}
	e, err := r.store.Add(ctx, NewExpense{
		Title:   SettlementTitle,
		Amount:  t.Amount,
		PayerID: t.From,
		Splits:  []core.Split{{ParticipantID: t.To, Value: t.Amount}},
		Meta:    &core.Meta{Settlement: true, Source: r.source},
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("record settlement: %w", err)
	}
	return e, nil
}
