package ledger

import "fmt"

// ValidationError reports malformed or out-of-range input. It is never used
// for missing records.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NotFoundError reports that the referenced contact does not exist.
type NotFoundError struct {
	ContactID string
}

func (e *NotFoundError) Error() string {
	return "contact not found: " + e.ContactID
}

// DuplicateEmailError reports a uniqueness violation on the normalized email.
type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return "email already registered: " + e.Email
}

// ConsistencyError records a divergence the engine could not reconcile. It is
// logged as an anomaly rather than returned; the engine always prefers to
// overwrite the cached balance and continue.
type ConsistencyError struct {
	ContactID  string
	Stored     string
	Calculated string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("balance for contact %s irreconcilable: stored %s, calculated %s",
		e.ContactID, e.Stored, e.Calculated)
}
