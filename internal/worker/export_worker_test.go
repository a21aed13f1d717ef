package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividi/internal/amqp"
	"dividi/internal/core"
	"dividi/internal/sheets"
	"dividi/internal/sheets/memory"
)

type failingExporter struct{ calls int }

func (f *failingExporter) AppendRow(context.Context, sheets.LedgerRow) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func testEvent() *amqp.LedgerEvent {
	return &amqp.LedgerEvent{
		Type:         amqp.EventExpenseCreated,
		ExpenseID:    "e1",
		Title:        "Dinner",
		PayerID:      "p1",
		PayerName:    "Alice",
		Amount:       core.NewMoney(30000),
		Participants: []string{"Alice", "Bob", "Carol"},
		Category:     "food",
		Timestamp:    time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC),
	}
}

func TestHandleLedgerEvent(t *testing.T) {
	store := memory.New()
	w := NewExportWorker(store)

	require.NoError(t, w.HandleLedgerEvent(context.Background(), testEvent()))

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "expense.created", rows[0].Event)
	assert.Equal(t, "Alice", rows[0].Payer)
	assert.Equal(t, "300.00", rows[0].Amount.String())
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, rows[0].Participants)
}

func TestHandleLedgerEvent_Redelivery(t *testing.T) {
	store := memory.New()
	w := NewExportWorker(store)
	ctx := context.Background()

	require.NoError(t, w.HandleLedgerEvent(ctx, testEvent()))
	require.NoError(t, w.HandleLedgerEvent(ctx, testEvent()))
	assert.Len(t, store.Rows(), 1)

	settled := testEvent()
	settled.Type = amqp.EventExpenseSettled
	require.NoError(t, w.HandleLedgerEvent(ctx, settled))
	assert.Len(t, store.Rows(), 2)
}

func TestHandleLedgerEvent_ExporterError(t *testing.T) {
	exp := &failingExporter{}
	w := NewExportWorker(exp)

	err := w.HandleLedgerEvent(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	// not remembered, so a retry reaches the exporter again
	_ = w.HandleLedgerEvent(context.Background(), testEvent())
	assert.Equal(t, 2, exp.calls)
}

func TestRowFromEvent_Fallbacks(t *testing.T) {
	msg := testEvent()
	msg.PayerName = ""
	msg.Timestamp = time.Time{}

	row := RowFromEvent(msg)
	assert.Equal(t, "p1", row.Payer)
	assert.False(t, row.Timestamp.IsZero())
	assert.NoError(t, row.Validate())
}

func TestSeenIsCleanable(t *testing.T) {
	w := NewExportWorker(memory.New())
	assert.NotNil(t, w.Seen())
}
