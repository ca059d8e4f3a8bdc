package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType is the direction of a monetary operation.
type OperationType string

const (
	OperationCredit OperationType = "CREDIT"
	OperationDebit  OperationType = "DEBIT"
)

// Valid reports whether t is one of the known operation types.
func (t OperationType) Valid() bool {
	return t == OperationCredit || t == OperationDebit
}

// Operation is a single immutable ledger event. Amount holds the pre-signed
// delta: positive for credits, negative for debits. Operations are append
// only; nothing ever updates or deletes one.
type Operation struct {
	ID          string          `json:"id"`
	ContactID   string          `json:"contactId"`
	Amount      decimal.Decimal `json:"amount"`
	Type        OperationType   `json:"type"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
