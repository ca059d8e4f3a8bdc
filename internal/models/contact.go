package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contact is a ledger participant. Balance is a cached aggregate of all
// operations belonging to the contact; the operation log stays authoritative
// and the engine rewrites Balance whenever the two diverge.
type Contact struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"` // normalized: trimmed, lowercased, unique
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ContactProfile pairs a contact with its full operation history,
// newest first.
type ContactProfile struct {
	Contact    Contact     `json:"contact"`
	Operations []Operation `json:"operations"`
}

// BalanceReport is the read-only audit result for one contact. Unlike the
// self-healing reads, producing a report never mutates the stored balance.
type BalanceReport struct {
	Valid             bool            `json:"valid"`
	StoredBalance     decimal.Decimal `json:"storedBalance"`
	CalculatedBalance decimal.Decimal `json:"calculatedBalance"`
	Difference        decimal.Decimal `json:"difference"`
	OperationCount    int             `json:"operationCount"`
}
