package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/sheikh-saqib/fintrack-ledger-service/internal/models"
	"github.com/shopspring/decimal"
)

// ErrAtomicityUnavailable is returned by Store.Atomically when the backing
// store cannot provide a multi-write unit of work. The ledger engine catches
// it and falls back to discrete writes.
var ErrAtomicityUnavailable = errors.New("store does not support atomic units of work")

// ErrDuplicateEmail is returned by CreateContact when the email is already
// taken. Uniqueness is ultimately enforced by the store, not the engine, so
// two racing creates still resolve to exactly one winner.
var ErrDuplicateEmail = errors.New("email already registered")

// OperationFilter selects operations for FindOperations. Zero-value fields
// are ignored; From/To bound CreatedAt inclusively.
type OperationFilter struct {
	ContactID string
	From      *time.Time
	To        *time.Time
}

// Store is the document-store contract both entity collections live behind.
// Lookups return (nil, nil) when the record does not exist. List and
// by-contact reads are ordered by creation time descending.
type Store interface {
	CreateContact(ctx context.Context, contact models.Contact) error
	ContactByID(ctx context.Context, id string) (*models.Contact, error)
	ContactByEmail(ctx context.Context, email string) (*models.Contact, error)
	Contacts(ctx context.Context) ([]models.Contact, error)
	UpdateContactName(ctx context.Context, id, name string, updatedAt time.Time) error
	UpdateContactBalance(ctx context.Context, id string, balance decimal.Decimal, updatedAt time.Time) error

	SaveOperation(ctx context.Context, op models.Operation) error
	OperationsByContact(ctx context.Context, contactID string) ([]models.Operation, error)
	FindOperations(ctx context.Context, filter OperationFilter) ([]models.Operation, error)

	// Atomically runs fn inside a unit of work: every write fn issues through
	// tx is committed together or not at all. Returning an error from fn
	// rolls the unit back and propagates the error. Stores configured
	// without this capability fail with ErrAtomicityUnavailable before fn
	// runs.
	Atomically(ctx context.Context, fn func(tx Store) error) error
}
