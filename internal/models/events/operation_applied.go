package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationApplied is published after an operation has been committed and the
// contact balance updated.
type OperationApplied struct {
	OperationID string          `json:"operation_id"`
	ContactID   string          `json:"contact_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Balance     decimal.Decimal `json:"balance"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// BalanceHealed is published whenever a read or write found the cached
// balance diverging from the operation sum and overwrote it.
type BalanceHealed struct {
	ContactID         string          `json:"contact_id"`
	StoredBalance     decimal.Decimal `json:"stored_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	OccurredAt        time.Time       `json:"occurred_at"`
}
