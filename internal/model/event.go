package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTransactionCreated EventType = "created"
	EventTransactionDeleted EventType = "deleted"
)

// TransactionEvent announces a change that may invalidate cached insights.
// Month is empty when the transaction carries no date.
type TransactionEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	TransactionID int64     `json:"transactionId"`
	Month         string    `json:"month,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// AffectedMonths lists the months whose insight text may change: the
// transaction's own month and the next one, whose trend clause compares
// against it.
func (e *TransactionEvent) AffectedMonths() ([]Month, error) {
	if e.Month == "" {
		return nil, nil
	}
	m, err := ParseMonth(e.Month)
	if err != nil {
		return nil, err
	}
	return []Month{m, m.Next()}, nil
}

func NewTransactionEvent(typ EventType, t *Transaction, now time.Time) *TransactionEvent {
	e := &TransactionEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		TransactionID: t.ID,
		OccurredAt:    now.UTC(),
	}
	if m, ok := t.Month(); ok {
		e.Month = m.String()
	}
	return e
}
