package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"dividi/internal/amqp"
	"dividi/internal/core"
	"dividi/internal/directory"
	"dividi/internal/ledger"
	"dividi/internal/metrics"
	"dividi/internal/storage"
)

// ErrUnsettledBalances is returned by CloseOut while someone still owes money.
var ErrUnsettledBalances = errors.New("balances are not settled")

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEvent) error
	Close() error
}

// DefaultSource tags settlements recorded through the service.
const DefaultSource = "api"

// LedgerService orchestrates the directory, the expense store and event
// publishing. Publishing is best effort: the ledger write is what counts.
type LedgerService struct {
	kv        storage.KV
	dir       *directory.Directory
	store     *ledger.Store
	recorder  *ledger.Recorder
	publisher EventPublisher
	metrics   *metrics.Metrics
	symbol    string
}

type Option func(*LedgerService)

func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

func WithCurrencySymbol(symbol string) Option {
	return func(s *LedgerService) { s.symbol = symbol }
}

// WithStoreOptions forwards clock and id generator overrides to the store.
func WithStoreOptions(opts ...ledger.StoreOption) Option {
	return func(s *LedgerService) { s.store = ledger.NewStore(s.kv, opts...) }
}

func WithDirectoryOptions(opts ...directory.Option) Option {
	return func(s *LedgerService) { s.dir = directory.New(s.kv, opts...) }
}

func NewLedgerService(kv storage.KV, opts ...Option) *LedgerService {
	s := &LedgerService{
		kv:     kv,
		dir:    directory.New(kv),
		store:  ledger.NewStore(kv),
		symbol: "₹",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = ledger.NewRecorder(s.store, DefaultSource)
	return s
}

func (s *LedgerService) Directory() *directory.Directory { return s.dir }
func (s *LedgerService) Store() *ledger.Store            { return s.store }

// Ping checks the persistence backend.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// CreateExpense validates the request, resolves every participant reference
// and records the expense.
func (s *LedgerService) CreateExpense(ctx context.Context, req CreateExpenseRequest) (core.Expense, error) {
	n, err := req.normalize()
	if err != nil {
		return core.Expense{}, err
	}

	// Match every reference before creating anyone, so a rejected request
	// leaves the directory untouched.
	payer, err := s.lookupRef(ctx, n.payer)
	if err != nil {
		return core.Expense{}, fmt.Errorf("resolve payer: %w", err)
	}
	refs := make([]resolvedRef, len(n.refs))
	for i, ref := range n.refs {
		if refs[i], err = s.lookupRef(ctx, ref); err != nil {
			return core.Expense{}, fmt.Errorf("resolve participant: %w", err)
		}
	}
	if dup := duplicateRef(refs); dup != "" {
		return core.Expense{}, fmt.Errorf("%w: participant %q listed twice", ErrInvalidRequest, dup)
	}

	payerID, err := s.ensure(ctx, payer)
	if err != nil {
		return core.Expense{}, fmt.Errorf("resolve payer: %w", err)
	}
	splits := make([]core.Split, len(refs))
	for i, r := range refs {
		id, err := s.ensure(ctx, r)
		if err != nil {
			return core.Expense{}, fmt.Errorf("resolve participant: %w", err)
		}
		splits[i] = core.Split{ParticipantID: id, Value: n.values[i].Value}
	}

	e, err := s.store.Add(ctx, ledger.NewExpense{
		Title:    n.title,
		Amount:   n.amount,
		PayerID:  payerID,
		Splits:   splits,
		Category: n.category,
	})
	if err != nil {
		return core.Expense{}, err
	}

	s.metrics.ExpenseCreated(n.kind)
	s.publish(ctx, amqp.EventExpenseCreated, e)
	return e, nil
}

// resolvedRef is a reference matched against the directory. id is empty
// when nobody matched and a participant named ref has to be created.
type resolvedRef struct {
	ref string
	id  core.ParticipantID
}

// key identifies the participant a reference stands for.
func (r resolvedRef) key() string {
	if r.id != "" {
		return "id:" + string(r.id)
	}
	return "name:" + strings.ToLower(r.ref)
}

// lookupRef matches ref by id or name without touching the directory.
func (s *LedgerService) lookupRef(ctx context.Context, ref string) (resolvedRef, error) {
	p, err := s.dir.Resolve(ctx, ref)
	switch {
	case err == nil:
		return resolvedRef{ref: ref, id: p.ID}, nil
	case errors.Is(err, core.ErrNotFound):
		return resolvedRef{ref: ref}, nil
	default:
		return resolvedRef{}, err
	}
}

// ensure returns the matched id or creates the participant.
func (s *LedgerService) ensure(ctx context.Context, r resolvedRef) (core.ParticipantID, error) {
	if r.id != "" {
		return r.id, nil
	}
	p, err := s.dir.GetOrCreateByName(ctx, r.ref)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func duplicateRef(refs []resolvedRef) string {
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		k := r.key()
		if seen[k] {
			if r.id != "" {
				return string(r.id)
			}
			return r.ref
		}
		seen[k] = true
	}
	return ""
}

// ListExpenses returns the expenses matching f.
func (s *LedgerService) ListExpenses(ctx context.Context, f ledger.Filter) ([]core.Expense, error) {
	return s.store.List(ctx, f)
}

// BalanceView is a participant balance prepared for display.
type BalanceView struct {
	ParticipantID core.ParticipantID `json:"participantId"`
	Name          string             `json:"name"`
	Balance       core.Money         `json:"balance"`
	Display       string             `json:"display"`
	Status        string             `json:"status"`
}

const (
	StatusOwed    = "owed"
	StatusOwes    = "owes"
	StatusSettled = "settled"
)

func (s *LedgerService) balances(ctx context.Context) (ledger.Balances, error) {
	es, err := s.store.List(ctx, ledger.Unsettled())
	if err != nil {
		return nil, err
	}
	return ledger.ComputeBalances(es), nil
}

// Balances returns every participant's net balance, sorted by name.
// Participants without any expense are listed at zero.
func (s *LedgerService) Balances(ctx context.Context) ([]BalanceView, error) {
	b, err := s.balances(ctx)
	if err != nil {
		return nil, err
	}
	names := s.dir.Names(ctx)
	for id := range names {
		if _, ok := b[id]; !ok {
			b[id] = core.Money{}
		}
	}

	out := make([]BalanceView, 0, len(b))
	for _, id := range b.IDs() {
		m := b[id]
		v := BalanceView{
			ParticipantID: id,
			Name:          nameOf(names, id),
			Balance:       m,
			Display:       m.Abs().Format(s.symbol),
			Status:        StatusSettled,
		}
		switch {
		case m.IsPositive():
			v.Status = StatusOwed
		case m.IsNegative():
			v.Status = StatusOwes
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// TransferView is one suggested payment with display names.
type TransferView struct {
	core.Transfer
	FromName string `json:"fromName"`
	ToName   string `json:"toName"`
	Display  string `json:"display"`
}

// SettlementPlan returns the reduced set of transfers that clears all balances.
func (s *LedgerService) SettlementPlan(ctx context.Context) ([]TransferView, error) {
	b, err := s.balances(ctx)
	if err != nil {
		return nil, err
	}
	ts := ledger.ReduceToTransfers(b)
	if len(ts) == 0 {
		return []TransferView{}, nil
	}
	names := s.dir.Names(ctx)
	out := make([]TransferView, len(ts))
	for i, t := range ts {
		out[i] = TransferView{
			Transfer: t,
			FromName: nameOf(names, t.From),
			ToName:   nameOf(names, t.To),
			Display:  t.Amount.Format(s.symbol),
		}
	}
	return out, nil
}

// SettleUp records a confirmed transfer. Both parties must be known.
// Other expenses between the two are left untouched.
func (s *LedgerService) SettleUp(ctx context.Context, t core.Transfer) (core.Expense, error) {
	if err := t.Validate(); err != nil {
		return core.Expense{}, err
	}
	for _, id := range []core.ParticipantID{t.From, t.To} {
		if _, err := s.dir.Get(ctx, id); err != nil {
			return core.Expense{}, err
		}
	}

	e, err := s.recorder.RecordSettlement(ctx, t)
	if err != nil {
		return core.Expense{}, err
	}

	s.metrics.SettlementRecorded()
	s.publish(ctx, amqp.EventSettlementRecorded, e)
	return e, nil
}

// MarkSettled flags the expenses as settled and returns how many changed.
func (s *LedgerService) MarkSettled(ctx context.Context, ids []core.ExpenseID) (int, error) {
	changed, err := s.store.MarkSettled(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		for _, id := range ids {
			e, err := s.store.Get(ctx, id)
			if err != nil {
				slog.WarnContext(ctx, "Settled expense lookup failed", "expense_id", id, "error", err)
				continue
			}
			s.publish(ctx, amqp.EventExpenseSettled, e)
		}
	}
	return changed, nil
}

// CloseOut archives a fully settled ledger by flagging every open expense.
// It refuses while any balance is non-zero.
func (s *LedgerService) CloseOut(ctx context.Context) (int, error) {
	es, err := s.store.List(ctx, ledger.Unsettled())
	if err != nil {
		return 0, err
	}
	if !ledger.ComputeBalances(es).AllZero() {
		return 0, ErrUnsettledBalances
	}
	ids := make([]core.ExpenseID, len(es))
	for i, e := range es {
		ids[i] = e.ID
	}

	changed, err := s.store.MarkSettled(ctx, ids...)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Ledger closed out", "expenses", changed)
	return changed, nil
}

// SummaryView adds the display name to a member summary.
type SummaryView struct {
	ledger.MemberSummary
	Name string `json:"name"`
}

func (s *LedgerService) Summary(ctx context.Context) ([]SummaryView, error) {
	es, err := s.store.List(ctx, ledger.Unsettled())
	if err != nil {
		return nil, err
	}
	names := s.dir.Names(ctx)
	sums := ledger.Summarize(es)
	out := make([]SummaryView, len(sums))
	for i, m := range sums {
		out[i] = SummaryView{MemberSummary: m, Name: nameOf(names, m.ParticipantID)}
	}
	return out, nil
}

func (s *LedgerService) publish(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping ledger event", "type", t)
		s.metrics.EventPublished("skipped")
		return
	}
	msg := amqp.NewLedgerEvent(t, e, s.dir.Names(ctx))
	if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", t,
			"expense_id", e.ID,
			"error", err)
		s.metrics.EventPublished("error")
		return
	}
	s.metrics.EventPublished("ok")
}

func nameOf(names map[core.ParticipantID]string, id core.ParticipantID) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return string(id)
}

// Close releases the storage backend and the AMQP connection.
func (s *LedgerService) Close() error {
	var errs []error

	if s.kv != nil {
		if err := s.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
