package models

import "time"

// OTPTicket is the value handed back when a resolution challenge is issued.
// It binds one code to one grievance and one expiry.
type OTPTicket struct {
	GrievanceID string    `json:"grievance_id"`
	Code        string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the ticket is past its expiry at now.
func (t OTPTicket) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// VerificationOutcome is the result of checking a submitted code.
type VerificationOutcome string

const (
	OutcomeVerified VerificationOutcome = "verified"
	OutcomeInvalid  VerificationOutcome = "invalid"
	OutcomeExpired  VerificationOutcome = "expired"
)

// ResolutionResult is returned by a confirmed resolution.
type ResolutionResult struct {
	GrievanceID   string              `json:"grievance_id"`
	Outcome       VerificationOutcome `json:"outcome"`
	LedgerReceipt string              `json:"ledger_receipt,omitempty"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
}

// ReconciliationKind identifies which half of a two-phase write was lost.
type ReconciliationKind string

const (
	ReconcileCreate  ReconciliationKind = "create"
	ReconcileResolve ReconciliationKind = "resolve"
)

// ReconciliationStatus tracks whether an entry was replayed.
type ReconciliationStatus string

const (
	ReconcileOpen     ReconciliationStatus = "open"
	ReconcileReplayed ReconciliationStatus = "replayed"
)

// ReconciliationEntry records a ledger write whose local counterpart failed.
type ReconciliationEntry struct {
	ID          string               `db:"id" json:"id"`
	Kind        ReconciliationKind   `db:"kind" json:"kind"`
	GrievanceID string               `db:"grievance_id" json:"grievance_id"`
	LedgerID    string               `db:"ledger_id" json:"ledger_id"`
	Payload     string               `db:"payload" json:"payload"` // JSON snapshot
	Error       string               `db:"error" json:"error"`
	Status      ReconciliationStatus `db:"status" json:"status"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	ReplayedAt  *time.Time           `db:"replayed_at" json:"replayed_at,omitempty"`
}
