package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"dividi/internal/core"
)

// EventType names a ledger change. The routing key is "ledger." + type.
type EventType string

const (
	EventExpenseCreated     EventType = "expense.created"
	EventExpenseSettled     EventType = "expense.settled"
	EventSettlementRecorded EventType = "settlement.recorded"
)

// RoutingPrefix is shared by every ledger routing key.
const RoutingPrefix = "ledger."

// LedgerEvent describes one change to the ledger. It carries display names so
// consumers do not need access to the participant directory.
type LedgerEvent struct {
	Type         EventType          `json:"type"`
	ExpenseID    core.ExpenseID     `json:"expenseId"`
	Title        string             `json:"title"`
	PayerID      core.ParticipantID `json:"payerId"`
	PayerName    string             `json:"payerName"`
	Amount       core.Money         `json:"amount"`
	Participants []string           `json:"participants"`
	Category     string             `json:"category,omitempty"`
	Settlement   bool               `json:"settlement"`
	Timestamp    time.Time          `json:"timestamp"`
}

// NewLedgerEvent builds an event for e. names maps participant ids to display
// names; ids missing from it are used as-is.
func NewLedgerEvent(t EventType, e core.Expense, names map[core.ParticipantID]string) *LedgerEvent {
	name := func(id core.ParticipantID) string {
		if n, ok := names[id]; ok && n != "" {
			return n
		}
		return string(id)
	}
	participants := make([]string, 0, len(e.Splits))
	for _, s := range e.Splits {
		participants = append(participants, name(s.ParticipantID))
	}
	return &LedgerEvent{
		Type:         t,
		ExpenseID:    e.ID,
		Title:        e.Title,
		PayerID:      e.PayerID,
		PayerName:    name(e.PayerID),
		Amount:       e.Amount,
		Participants: participants,
		Category:     e.Category,
		Settlement:   e.IsSettlement(),
		Timestamp:    time.Now().UTC(),
	}
}

// RoutingKey returns the topic routing key for the event.
func (m *LedgerEvent) RoutingKey() string {
	return RoutingPrefix + string(m.Type)
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and validates an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventExpenseCreated, EventExpenseSettled, EventSettlementRecorded:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ExpenseID == "" {
		return nil, fmt.Errorf("event without expense id")
	}
	return &msg, nil
}
