package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/fintrack-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/models"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/models/events"
)

// MaxOperationAmount caps the magnitude of a single operation.
var MaxOperationAmount = decimal.NewFromInt(10_000_000)

// balanceTolerance is the floating-point slack below which a stored balance
// and the operation sum count as equal. At or above it the stored value is
// overwritten with the recomputed one.
var balanceTolerance = decimal.New(1, -2) // 0.01

const (
	TopicOperationApplied = "ledger.operation_applied"
	TopicBalanceHealed    = "ledger.balance_healed"
)

// Ledger is the balance-consistency engine. It treats the operation log as
// the source of truth and the contact's balance field as a rebuildable cache:
// every entry point recomputes the sum and heals the cache when the two
// diverge. The engine holds no state between calls; serialization of writes
// to one contact is the store's job, inside its unit of work.
type Ledger struct {
	store     interfaces.Store
	publisher interfaces.EventPublisher // optional
	log       zerolog.Logger
}

// NewLedger wires the engine to a store. publisher may be nil, in which case
// events are dropped.
func NewLedger(store interfaces.Store, publisher interfaces.EventPublisher, log zerolog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// CreateContact registers a new contact with a zero balance. Email and name
// are normalized (email trimmed and lowercased, name trimmed) before
// validation and storage.
func (l *Ledger) CreateContact(ctx context.Context, email, name string) (*models.Contact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" || name == "" {
		return nil, &ValidationError{Reason: "email and name are required"}
	}

	existing, err := l.store.ContactByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicateEmailError{Email: email}
	}

	now := time.Now().UTC()
	contact := models.Contact{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.store.CreateContact(ctx, contact); err != nil {
		// The pre-check above races with concurrent creates; the store's
		// uniqueness constraint is what actually decides.
		if errors.Is(err, interfaces.ErrDuplicateEmail) {
			return nil, &DuplicateEmailError{Email: email}
		}
		return nil, err
	}

	return &contact, nil
}

// RenameContact updates only the display name. Balance and email are
// untouched.
func (l *Ledger) RenameContact(ctx context.Context, contactID, newName string) (*models.Contact, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, &ValidationError{Reason: "name is required"}
	}

	contact, err := l.store.ContactByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, &NotFoundError{ContactID: contactID}
	}

	if err := l.store.UpdateContactName(ctx, contactID, newName, time.Now().UTC()); err != nil {
		return nil, err
	}
	return l.store.ContactByID(ctx, contactID)
}

// ListContacts returns all contacts, newest first.
func (l *Ledger) ListContacts(ctx context.Context) ([]models.Contact, error) {
	return l.store.Contacts(ctx)
}

// GetContact returns the contact or nil when it does not exist.
func (l *Ledger) GetContact(ctx context.Context, contactID string) (*models.Contact, error) {
	return l.store.ContactByID(ctx, contactID)
}

// ApplyOperation appends a credit or debit to the contact's log and moves the
// cached balance accordingly. amount is the unsigned magnitude; the sign is
// derived from opType before anything is persisted.
//
// The write runs inside the store's atomic unit of work when available:
// load, reconcile, append, update balance, commit — all or nothing. When the
// store signals that atomicity is unavailable, the same steps run as discrete
// writes followed by a second reconcile pass, trading the atomicity guarantee
// for eventual consistency on the next read or write.
func (l *Ledger) ApplyOperation(ctx context.Context, contactID string, amount decimal.Decimal, opType models.OperationType, description string) (*models.Contact, error) {
	if !opType.Valid() {
		return nil, &ValidationError{Reason: "type must be CREDIT or DEBIT"}
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{Reason: "amount must be greater than 0"}
	}
	if amount.GreaterThan(MaxOperationAmount) {
		return nil, &ValidationError{Reason: fmt.Sprintf("amount exceeds the maximum of %s", MaxOperationAmount)}
	}

	op := models.Operation{
		ID:          uuid.New().String(),
		ContactID:   contactID,
		Amount:      signedAmount(amount, opType),
		Type:        opType,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}

	err := l.store.Atomically(ctx, func(tx interfaces.Store) error {
		return l.applyOperation(ctx, tx, op)
	})
	if errors.Is(err, interfaces.ErrAtomicityUnavailable) {
		l.log.Debug().Str("contact_id", contactID).
			Msg("atomic unit of work unavailable, applying operation as discrete writes")
		if err = l.applyOperation(ctx, l.store, op); err == nil {
			// Non-atomic writes can interleave with concurrent operations,
			// so verify the result and heal once more before returning.
			_, _, err = l.reconcile(ctx, l.store, contactID)
		}
	}
	if err != nil {
		return nil, err
	}

	contact, err := l.store.ContactByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, &NotFoundError{ContactID: contactID}
	}

	l.publish(TopicOperationApplied, events.OperationApplied{
		OperationID: op.ID,
		ContactID:   contactID,
		Amount:      op.Amount,
		Type:        string(op.Type),
		Balance:     contact.Balance,
		OccurredAt:  op.CreatedAt,
	})
	return contact, nil
}

// applyOperation runs the six-step application protocol against s, which is
// either a transactional view or the bare store on the fallback path.
func (l *Ledger) applyOperation(ctx context.Context, s interfaces.Store, op models.Operation) error {
	contact, calculated, err := l.reconcile(ctx, s, op.ContactID)
	if err != nil {
		return err
	}
	if contact == nil {
		return &NotFoundError{ContactID: op.ContactID}
	}

	newBalance := calculated.Add(op.Amount)

	if err := s.SaveOperation(ctx, op); err != nil {
		return err
	}
	return s.UpdateContactBalance(ctx, op.ContactID, newBalance, time.Now().UTC())
}

// GetProfile returns the contact together with its operation history, newest
// first. The read self-heals: a stored balance diverging from the operation
// sum is overwritten before the contact is returned.
func (l *Ledger) GetProfile(ctx context.Context, contactID string) (*models.ContactProfile, error) {
	contact, _, err := l.reconcile(ctx, l.store, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, &NotFoundError{ContactID: contactID}
	}

	ops, err := l.store.OperationsByContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	return &models.ContactProfile{Contact: *contact, Operations: ops}, nil
}

// ValidateBalance is the diagnostic entry point: it reports whether the
// stored balance matches the operation sum without correcting anything.
func (l *Ledger) ValidateBalance(ctx context.Context, contactID string) (*models.BalanceReport, error) {
	contact, err := l.store.ContactByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, &NotFoundError{ContactID: contactID}
	}

	ops, err := l.store.OperationsByContact(ctx, contactID)
	if err != nil {
		return nil, err
	}

	calculated := sumOperations(ops)
	difference := contact.Balance.Sub(calculated).Abs()

	return &models.BalanceReport{
		Valid:             difference.LessThan(balanceTolerance),
		StoredBalance:     contact.Balance,
		CalculatedBalance: calculated,
		Difference:        difference,
		OperationCount:    len(ops),
	}, nil
}

// reconcile recomputes the contact's balance from its operations and
// overwrites the stored value when they diverge by the tolerance or more.
// Every public entry point that may return or build on a balance goes through
// here. Returns (nil, zero, nil) for a missing contact; the returned contact
// carries the healed balance.
func (l *Ledger) reconcile(ctx context.Context, s interfaces.Store, contactID string) (*models.Contact, decimal.Decimal, error) {
	contact, err := s.ContactByID(ctx, contactID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if contact == nil {
		return nil, decimal.Zero, nil
	}

	ops, err := s.OperationsByContact(ctx, contactID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	calculated := sumOperations(ops)
	difference := contact.Balance.Sub(calculated).Abs()
	if difference.LessThan(balanceTolerance) {
		return contact, calculated, nil
	}

	if err := s.UpdateContactBalance(ctx, contactID, calculated, time.Now().UTC()); err != nil {
		cerr := &ConsistencyError{
			ContactID:  contactID,
			Stored:     contact.Balance.String(),
			Calculated: calculated.String(),
		}
		l.log.Error().Err(err).Str("anomaly", cerr.Error()).
			Msg("self-heal write failed, stored balance left divergent")
		return nil, decimal.Zero, err
	}

	l.log.Warn().
		Str("contact_id", contactID).
		Str("stored_balance", contact.Balance.String()).
		Str("calculated_balance", calculated.String()).
		Str("difference", difference.String()).
		Msg("stored balance diverged from operation sum, healed")

	l.publish(TopicBalanceHealed, events.BalanceHealed{
		ContactID:         contactID,
		StoredBalance:     contact.Balance,
		CalculatedBalance: calculated,
		Difference:        difference,
		OccurredAt:        time.Now().UTC(),
	})

	contact.Balance = calculated
	return contact, calculated, nil
}

// publish sends an event when a publisher is configured. Publishing is best
// effort: a broker failure must not fail a committed ledger write.
func (l *Ledger) publish(topic string, event any) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(topic, event); err != nil {
		l.log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
	}
}

func signedAmount(amount decimal.Decimal, opType models.OperationType) decimal.Decimal {
	if opType == models.OperationDebit {
		return amount.Neg()
	}
	return amount
}

func sumOperations(ops []models.Operation) decimal.Decimal {
	sum := decimal.Zero
	for _, op := range ops {
		sum = sum.Add(op.Amount)
	}
	return sum
}
