// Package ledger holds the expense record store and the pure computations
// built on it: balances, the settlement plan and settlement recording.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dividi/internal/core"
	"dividi/internal/log"
	"dividi/internal/storage"
)

// NewExpense is the input to Store.Add. Splits must already be normalized.
type NewExpense struct {
	Title    string
	Amount   core.Money
	PayerID  core.ParticipantID
	Splits   []core.Split
	Category string
	Meta     *core.Meta
}

// Filter narrows List. Zero-valued fields do not filter; set fields are ANDed.
type Filter struct {
	Settled       *bool
	Settlement    *bool
	From          time.Time // inclusive
	To            time.Time // exclusive
	ParticipantID core.ParticipantID
	Category      string
}

func (f Filter) match(e core.Expense) bool {
	if f.Settled != nil && e.Settled != *f.Settled {
		return false
	}
	if f.Settlement != nil && e.IsSettlement() != *f.Settlement {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	if f.ParticipantID != "" && !e.Involves(f.ParticipantID) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
		return false
	}
	return true
}

// Unsettled is the filter the balance views use.
func Unsettled() Filter {
	settled := false
	return Filter{Settled: &settled}
}

// Store is the append-only expense log persisted under storage.KeyExpenses.
// Every write is a full read-modify-write of the document, serialized by mu.
type Store struct {
	mu    sync.Mutex
	kv    storage.KV
	now   func() time.Time
	newID func() core.ExpenseID
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithExpenseIDs(fn func() core.ExpenseID) StoreOption {
	return func(s *Store) { s.newID = fn }
}

func NewStore(kv storage.KV, opts ...StoreOption) *Store {
	s := &Store{
		kv:  kv,
		now: time.Now,
		newID: func() core.ExpenseID {
			return core.ExpenseID(uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) load(ctx context.Context) ([]core.Expense, error) {
	es, err := storage.LoadOr(ctx, s.kv, storage.KeyExpenses, []core.Expense{})
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	return es, nil
}

// Add validates and appends an expense. Nothing is persisted on error.
func (s *Store) Add(ctx context.Context, in NewExpense) (core.Expense, error) {
	e := core.Expense{
		Title:    strings.TrimSpace(in.Title),
		Amount:   in.Amount,
		PayerID:  in.PayerID,
		Splits:   append([]core.Split(nil), in.Splits...),
		Category: strings.TrimSpace(in.Category),
		Meta:     in.Meta,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	es, err := s.load(ctx)
	if err != nil {
		return core.Expense{}, err
	}

	e.ID = s.newID()
	e.CreatedAt = s.now().UTC()
	if err := s.kv.Save(ctx, storage.KeyExpenses, append(es, e)); err != nil {
		return core.Expense{}, fmt.Errorf("save expenses: %w", err)
	}

	fields := log.NewFields().
		WithExpense(string(e.ID), e.Title, string(e.PayerID), e.Amount.Cents, e.IsSettlement()).
		WithOperation(log.OpCreate).
		WithComponent(log.ComponentLedger)
	slog.InfoContext(ctx, "Expense recorded", fields.ToSlice()...)

	return e, nil
}

// List returns the matching expenses ordered by creation time, then id.
func (s *Store) List(ctx context.Context, f Filter) ([]core.Expense, error) {
	s.mu.Lock()
	es, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]core.Expense, 0, len(es))
	for _, e := range es {
		if f.match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get returns a single expense by id.
func (s *Store) Get(ctx context.Context, id core.ExpenseID) (core.Expense, error) {
	s.mu.Lock()
	es, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return core.Expense{}, err
	}
	for _, e := range es {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("expense %q: %w", id, core.ErrNotFound)
}

// MarkSettled flags the given expenses as settled and returns how many changed.
// Already settled expenses are left alone. An unknown id fails the whole call.
func (s *Store) MarkSettled(ctx context.Context, ids ...core.ExpenseID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	es, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	index := make(map[core.ExpenseID]int, len(es))
	for i, e := range es {
		index[e.ID] = i
	}
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			return 0, fmt.Errorf("expense %q: %w", id, core.ErrNotFound)
		}
	}

	changed := 0
	for _, id := range ids {
		i := index[id]
		if es[i].Settled {
			continue
		}
		es[i].Settled = true
		changed++
	}
	if changed == 0 {
		return 0, nil
	}

	if err := s.kv.Save(ctx, storage.KeyExpenses, es); err != nil {
		return 0, fmt.Errorf("save expenses: %w", err)
	}

	slog.InfoContext(ctx, "Expenses marked settled", "requested", len(ids), "changed", changed)
	return changed, nil
}
