package sheets

import (
	"context"
	"errors"
	"strings"
	"time"

	"dividi/internal/core"
)

// LedgerRow is one exported ledger event.
type LedgerRow struct {
	Timestamp    time.Time
	Event        string
	ExpenseID    string
	Title        string
	Payer        string
	Amount       core.Money
	Participants []string
	Category     string
	Settlement   bool
}

// Ports for outbound adapters.
type (
	// LedgerExporter appends rows to an external spreadsheet.
	LedgerExporter interface {
		AppendRow(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}
)

var ErrInvalidRow = errors.New("invalid ledger row")

func (r LedgerRow) Validate() error {
	if r.ExpenseID == "" || r.Event == "" {
		return ErrInvalidRow
	}
	if r.Timestamp.IsZero() {
		return ErrInvalidRow
	}
	return nil
}

// Values renders the row as spreadsheet cells:
// timestamp, event, expense id, title, payer, amount, participants, category, settlement.
func (r LedgerRow) Values() []any {
	return []any{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Event,
		r.ExpenseID,
		r.Title,
		r.Payer,
		r.Amount.String(),
		strings.Join(r.Participants, ", "),
		r.Category,
		r.Settlement,
	}
}
