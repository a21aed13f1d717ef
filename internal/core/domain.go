package core

import (
	"errors"
	"strings"
	"time"
)

type (
	ParticipantID string
	ExpenseID     string

	Money struct {
		Cents int64
	}

	Participant struct {
		ID   ParticipantID `json:"id"`
		Name string        `json:"name"`
	}

	// Split is one participant's share of an expense.
	Split struct {
		ParticipantID ParticipantID `json:"participantId"`
		Value         Money         `json:"value"`
	}

	// Meta marks expenses that were not entered by hand.
	Meta struct {
		Settlement bool   `json:"settlement"`
		Source     string `json:"source,omitempty"`
	}

	Expense struct {
		ID        ExpenseID     `json:"id"`
		Title     string        `json:"title"`
		Amount    Money         `json:"amount"`
		PayerID   ParticipantID `json:"payerId"`
		Splits    []Split       `json:"splits"`
		Category  string        `json:"category,omitempty"`
		CreatedAt time.Time     `json:"createdAt"`
		Settled   bool          `json:"settled"`
		Meta      *Meta         `json:"meta,omitempty"`
	}

	// Transfer is a single debtor to creditor payment.
	Transfer struct {
		From   ParticipantID `json:"from"`
		To     ParticipantID `json:"to"`
		Amount Money         `json:"amount"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrSplitMismatch   = errors.New("splits do not sum to amount")
	ErrNotFound        = errors.New("not found")
	ErrEmptyTitle      = errors.New("empty title")
	ErrEmptyPayer      = errors.New("empty payer")
	ErrEmptyName       = errors.New("empty participant name")
	ErrNoParticipants  = errors.New("no participants")
	ErrUnknownStrategy = errors.New("unknown split strategy")
	ErrSelfTransfer    = errors.New("transfer to self")
)

// IsSettlement reports whether the expense was produced by a recorded settlement.
func (e Expense) IsSettlement() bool {
	return e.Meta != nil && e.Meta.Settlement
}

// Participants returns the payer followed by every split participant, without duplicates.
func (e Expense) Participants() []ParticipantID {
	seen := make(map[ParticipantID]bool, len(e.Splits)+1)
	out := make([]ParticipantID, 0, len(e.Splits)+1)
	add := func(id ParticipantID) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	add(e.PayerID)
	for _, s := range e.Splits {
		add(s.ParticipantID)
	}
	return out
}

// Involves reports whether id paid for or shares in the expense.
func (e Expense) Involves(id ParticipantID) bool {
	if e.PayerID == id {
		return true
	}
	for _, s := range e.Splits {
		if s.ParticipantID == id {
			return true
		}
	}
	return false
}

// Validate checks the write-boundary invariants of an expense.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(string(e.PayerID)) == "" {
		return ErrEmptyPayer
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Splits) == 0 {
		return ErrNoParticipants
	}
	var sum Money
	for _, s := range e.Splits {
		if strings.TrimSpace(string(s.ParticipantID)) == "" {
			return ErrNoParticipants
		}
		if s.Value.IsNegative() {
			return ErrInvalidAmount
		}
		sum = sum.Add(s.Value)
	}
	if sum != e.Amount {
		return ErrSplitMismatch
	}
	return nil
}

func (t Transfer) Validate() error {
	if t.From == "" || t.To == "" {
		return ErrEmptyPayer
	}
	if t.From == t.To {
		return ErrSelfTransfer
	}
	return t.Amount.Validate()
}

// Validate rejects zero, negative and oversized amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}
