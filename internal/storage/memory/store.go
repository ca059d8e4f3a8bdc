package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/fintrack-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/models"
)

// Store is an in-memory implementation of interfaces.Store, used for tests
// and for running the service without a database. It is safe for concurrent
// use.
//
// The unit of work is implemented by cloning the state, running the function
// against the clone, and swapping the clone in on success; the store mutex is
// held for the whole unit, which also serializes concurrent units touching
// the same contact.
type Store struct {
	mu     sync.Mutex
	atomic bool
	state  *state
}

type state struct {
	contacts map[string]models.Contact
	ops      []models.Operation
}

func (s *state) clone() *state {
	contacts := make(map[string]models.Contact, len(s.contacts))
	for id, c := range s.contacts {
		contacts[id] = c
	}
	ops := make([]models.Operation, len(s.ops))
	copy(ops, s.ops)
	return &state{contacts: contacts, ops: ops}
}

// NewStore creates an empty store with unit-of-work support.
func NewStore() *Store {
	return &Store{
		atomic: true,
		state:  &state{contacts: make(map[string]models.Contact)},
	}
}

// NewStoreWithoutAtomicity creates a store whose Atomically always fails with
// interfaces.ErrAtomicityUnavailable, mirroring a document store deployed
// without multi-write transactions. It exercises the engine's fallback path.
func NewStoreWithoutAtomicity() *Store {
	s := NewStore()
	s.atomic = false
	return s
}

func (s *Store) CreateContact(ctx context.Context, contact models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createContact(contact)
}

func (s *Store) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.contactByID(id)
}

func (s *Store) ContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.contactByEmail(email)
}

func (s *Store) Contacts(ctx context.Context) ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.allContacts()
}

func (s *Store) UpdateContactName(ctx context.Context, id, name string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateContactName(id, name, updatedAt)
}

func (s *Store) UpdateContactBalance(ctx context.Context, id string, balance decimal.Decimal, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateContactBalance(id, balance, updatedAt)
}

func (s *Store) SaveOperation(ctx context.Context, op models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.saveOperation(op)
}

func (s *Store) OperationsByContact(ctx context.Context, contactID string) ([]models.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.findOperations(interfaces.OperationFilter{ContactID: contactID})
}

func (s *Store) FindOperations(ctx context.Context, filter interfaces.OperationFilter) ([]models.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.findOperations(filter)
}

func (s *Store) Atomically(ctx context.Context, fn func(tx interfaces.Store) error) error {
	if !s.atomic {
		return interfaces.ErrAtomicityUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&txStore{state: snapshot}); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

// txStore is the unit-of-work view handed to Atomically's function. It works
// on the snapshot directly and needs no locking: the parent store's mutex is
// held for the duration of the unit.
type txStore struct {
	state *state
}

func (t *txStore) CreateContact(ctx context.Context, contact models.Contact) error {
	return t.state.createContact(contact)
}

func (t *txStore) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	return t.state.contactByID(id)
}

func (t *txStore) ContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	return t.state.contactByEmail(email)
}

func (t *txStore) Contacts(ctx context.Context) ([]models.Contact, error) {
	return t.state.allContacts()
}

func (t *txStore) UpdateContactName(ctx context.Context, id, name string, updatedAt time.Time) error {
	return t.state.updateContactName(id, name, updatedAt)
}

func (t *txStore) UpdateContactBalance(ctx context.Context, id string, balance decimal.Decimal, updatedAt time.Time) error {
	return t.state.updateContactBalance(id, balance, updatedAt)
}

func (t *txStore) SaveOperation(ctx context.Context, op models.Operation) error {
	return t.state.saveOperation(op)
}

func (t *txStore) OperationsByContact(ctx context.Context, contactID string) ([]models.Operation, error) {
	return t.state.findOperations(interfaces.OperationFilter{ContactID: contactID})
}

func (t *txStore) FindOperations(ctx context.Context, filter interfaces.OperationFilter) ([]models.Operation, error) {
	return t.state.findOperations(filter)
}

func (t *txStore) Atomically(ctx context.Context, fn func(tx interfaces.Store) error) error {
	// Already inside a unit; nest flatly.
	return fn(t)
}

func (s *state) createContact(contact models.Contact) error {
	for _, c := range s.contacts {
		if c.Email == contact.Email {
			return interfaces.ErrDuplicateEmail
		}
	}
	s.contacts[contact.ID] = contact
	return nil
}

func (s *state) contactByID(id string) (*models.Contact, error) {
	c, ok := s.contacts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *state) contactByEmail(email string) (*models.Contact, error) {
	for _, c := range s.contacts {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *state) allContacts() ([]models.Contact, error) {
	contacts := make([]models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, c)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
	})
	return contacts, nil
}

func (s *state) updateContactName(id, name string, updatedAt time.Time) error {
	c, ok := s.contacts[id]
	if !ok {
		return nil
	}
	c.Name = name
	c.UpdatedAt = updatedAt
	s.contacts[id] = c
	return nil
}

func (s *state) updateContactBalance(id string, balance decimal.Decimal, updatedAt time.Time) error {
	c, ok := s.contacts[id]
	if !ok {
		return nil
	}
	c.Balance = balance
	c.UpdatedAt = updatedAt
	s.contacts[id] = c
	return nil
}

func (s *state) saveOperation(op models.Operation) error {
	s.ops = append(s.ops, op)
	return nil
}

func (s *state) findOperations(filter interfaces.OperationFilter) ([]models.Operation, error) {
	var result []models.Operation
	for _, op := range s.ops {
		if filter.ContactID != "" && op.ContactID != filter.ContactID {
			continue
		}
		if filter.From != nil && op.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && op.CreatedAt.After(*filter.To) {
			continue
		}
		result = append(result, op)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

var _ interfaces.Store = (*Store)(nil)
var _ interfaces.Store = (*txStore)(nil)
