package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dividi/internal/amqp"
	"dividi/internal/cache"
	"dividi/internal/sheets"
)

const (
	seenCacheSize = 4096
	seenCacheTTL  = 24 * time.Hour
)

// ExportWorker appends every consumed ledger event as one spreadsheet row.
// Events already exported recently are skipped so that a redelivered message
// does not produce a duplicate row.
type ExportWorker struct {
	exporter sheets.LedgerExporter
	seen     *cache.LRUCache[string]
}

func NewExportWorker(exporter sheets.LedgerExporter) *ExportWorker {
	return &ExportWorker{
		exporter: exporter,
		seen:     cache.NewLRUCache[string](seenCacheSize, seenCacheTTL),
	}
}

// Seen exposes the dedupe cache so that it can be registered for cleanup.
func (w *ExportWorker) Seen() cache.Cleaner {
	return w.seen
}

// HandleLedgerEvent processes a single ledger event from AMQP.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEvent) error {
	key := string(msg.Type) + ":" + string(msg.ExpenseID)
	if ref, ok := w.seen.Get(key); ok {
		slog.DebugContext(ctx, "Skipping already exported event",
			"type", msg.Type,
			"expense_id", msg.ExpenseID,
			"sheets_ref", ref)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		"type", msg.Type,
		"expense_id", msg.ExpenseID)

	ref, err := w.exporter.AppendRow(ctx, RowFromEvent(msg))
	if err != nil {
		return fmt.Errorf("export ledger event: %w", err)
	}
	if !w.seen.Add(key, ref) {
		slog.WarnContext(ctx, "Ledger event exported twice by concurrent deliveries",
			"type", msg.Type,
			"expense_id", msg.ExpenseID)
	}

	slog.InfoContext(ctx, "Successfully exported ledger event",
		"type", msg.Type,
		"expense_id", msg.ExpenseID,
		"sheets_ref", ref,
		"amount", msg.Amount.String())

	return nil
}

// RowFromEvent maps an event onto the spreadsheet layout.
func RowFromEvent(msg *amqp.LedgerEvent) sheets.LedgerRow {
	payer := msg.PayerName
	if payer == "" {
		payer = string(msg.PayerID)
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return sheets.LedgerRow{
		Timestamp:    ts,
		Event:        string(msg.Type),
		ExpenseID:    string(msg.ExpenseID),
		Title:        msg.Title,
		Payer:        payer,
		Amount:       msg.Amount,
		Participants: msg.Participants,
		Category:     msg.Category,
		Settlement:   msg.Settlement,
	}
}
