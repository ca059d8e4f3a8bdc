package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/fintrack-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/models"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every query method below works both standalone and inside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the PostgreSQL implementation of interfaces.Store.
type Store struct {
	db *sql.DB // nil on transaction-scoped views
	q  querier
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Init creates the schema when it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS contacts (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		balance    NUMERIC(16,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS operations (
		id          TEXT PRIMARY KEY,
		contact_id  TEXT NOT NULL REFERENCES contacts(id),
		amount      NUMERIC(16,2) NOT NULL,
		type        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS operations_contact_created_idx
		ON operations (contact_id, created_at DESC);`

	_, err := s.q.ExecContext(ctx, schema)
	return err
}

func (s *Store) CreateContact(ctx context.Context, contact models.Contact) error {
	const query = `INSERT INTO contacts (id, email, name, balance, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.q.ExecContext(ctx, query,
		contact.ID, contact.Email, contact.Name, contact.Balance, contact.CreatedAt, contact.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return interfaces.ErrDuplicateEmail
	}
	return err
}

func (s *Store) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `SELECT id, email, name, balance, created_at, updated_at FROM contacts WHERE id = $1`
	if s.db == nil {
		// Inside a unit of work: lock the row so concurrent units against
		// the same contact serialize instead of reading a stale balance.
		query += ` FOR UPDATE`
	}
	return scanContact(s.q.QueryRowContext(ctx, query, id))
}

func (s *Store) ContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	const query = `SELECT id, email, name, balance, created_at, updated_at FROM contacts WHERE email = $1`
	return scanContact(s.q.QueryRowContext(ctx, query, email))
}

func (s *Store) Contacts(ctx context.Context) ([]models.Contact, error) {
	const query = `SELECT id, email, name, balance, created_at, updated_at
	FROM contacts ORDER BY created_at DESC`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Balance, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *Store) UpdateContactName(ctx context.Context, id, name string, updatedAt time.Time) error {
	const query = `UPDATE contacts SET name = $2, updated_at = $3 WHERE id = $1`
	_, err := s.q.ExecContext(ctx, query, id, name, updatedAt)
	return err
}

func (s *Store) UpdateContactBalance(ctx context.Context, id string, balance decimal.Decimal, updatedAt time.Time) error {
	const query = `UPDATE contacts SET balance = $2, updated_at = $3 WHERE id = $1`
	_, err := s.q.ExecContext(ctx, query, id, balance, updatedAt)
	return err
}

func (s *Store) SaveOperation(ctx context.Context, op models.Operation) error {
	const query = `INSERT INTO operations (id, contact_id, amount, type, description, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.q.ExecContext(ctx, query,
		op.ID, op.ContactID, op.Amount, string(op.Type), op.Description, op.CreatedAt)
	return err
}

func (s *Store) OperationsByContact(ctx context.Context, contactID string) ([]models.Operation, error) {
	return s.FindOperations(ctx, interfaces.OperationFilter{ContactID: contactID})
}

func (s *Store) FindOperations(ctx context.Context, filter interfaces.OperationFilter) ([]models.Operation, error) {
	query := `SELECT id, contact_id, amount, type, description, created_at FROM operations WHERE 1=1`
	var args []any

	if filter.ContactID != "" {
		args = append(args, filter.ContactID)
		query += ` AND contact_id = $` + strconv.Itoa(len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += ` AND created_at <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		var op models.Operation
		if err := rows.Scan(&op.ID, &op.ContactID, &op.Amount, &op.Type, &op.Description, &op.CreatedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Atomically runs fn against a transaction-scoped view of the store. Any
// error from fn rolls the whole unit back.
func (s *Store) Atomically(ctx context.Context, fn func(tx interfaces.Store) error) error {
	if s.db == nil {
		// Already transaction-scoped; nest flatly.
		return fn(s)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&Store{q: dbTx}); err != nil {
		dbTx.Rollback()
		return err
	}
	return dbTx.Commit()
}

func scanContact(row *sql.Row) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(&c.ID, &c.Email, &c.Name, &c.Balance, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ interfaces.Store = (*Store)(nil)
