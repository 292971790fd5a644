package service

import (
	"errors"
	"fmt"

	"surajya/models"
)

var (
	// ErrOtpMismatch is returned when the submitted code does not match. Nothing changes.
	ErrOtpMismatch = errors.New("otp does not match")
	// ErrOtpExpired is returned when the code is past its expiry. A new code must be issued.
	ErrOtpExpired = errors.New("otp expired")
	// ErrNoChallenge is returned when verification is attempted before any code was issued.
	ErrNoChallenge = errors.New("no resolution otp has been issued")
	// ErrAlreadyResolved is returned for any lifecycle operation on a resolved grievance.
	ErrAlreadyResolved = errors.New("grievance already resolved")
	// ErrConcurrentModification is returned when a conditional update lost a race.
	ErrConcurrentModification = errors.New("grievance was modified concurrently")
	// ErrResolutionPending is returned while a resolve the ledger already accepted
	// is waiting in the reconciliation log and cannot be applied to the store yet.
	ErrResolutionPending = errors.New("ledger resolution awaiting reconciliation")
)

// ValidationError reports a rejected input field. Raised before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ReconciliationError is returned when a ledger write succeeded but the
// matching local write did not. The ledger id is kept in the reconciliation
// log for replay.
type ReconciliationError struct {
	Kind        models.ReconciliationKind
	LedgerID    string
	GrievanceID string
	EntryID     string // empty if the reconciliation log itself could not be written
	Err         error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("ledger %s succeeded for grievance %s (ledger id %s) but the local write failed: %v",
		e.Kind, e.GrievanceID, e.LedgerID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
