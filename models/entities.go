package models

import (
	"database/sql"
	"time"
)

// GrievanceStatus represents the possible statuses of a grievance
type GrievanceStatus string

const (
	StatusPending  GrievanceStatus = "pending"
	StatusResolved GrievanceStatus = "resolved"
)

// Escalation levels. Level 3 is terminal for escalation, not for resolution.
const (
	LevelOne   = 1
	LevelTwo   = 2
	LevelThree = 3

	MaxEscalationLevel = LevelThree
)

// DefaultBasePriority is assigned to a category the first time it is seen.
const DefaultBasePriority = 3

// ActorType represents who performed an action
type ActorType string

const (
	ActorSystem   ActorType = "system"
	ActorCitizen  ActorType = "citizen"
	ActorOfficial ActorType = "official"
)

// PriorityRule maps a grievance category to its base priority.
type PriorityRule struct {
	Category     string    `db:"category" json:"category"`
	BasePriority int       `db:"base_priority" json:"base_priority"`
	Keywords     []string  `db:"keywords" json:"keywords"` // stored as JSON array
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Grievance represents a citizen-filed grievance.
//
// The orchestrator is the only writer of status, level and otp fields.
// VerificationOTP holds a bcrypt hash of the issued code, never the code itself.
type Grievance struct {
	ID                  string          `db:"id" json:"id"`
	CitizenID           string          `db:"citizen_id" json:"citizen_id"`
	Category            string          `db:"category" json:"category"`
	Description         string          `db:"description" json:"description"`
	Location            sql.NullString  `db:"location" json:"location"`
	ContactNumber       string          `db:"contact_number" json:"contact_number"`
	Email               string          `db:"email" json:"email"`
	ImageURL            sql.NullString  `db:"image_url" json:"image_url"`
	Status              GrievanceStatus `db:"status" json:"status"`
	Priority            sql.NullInt64   `db:"priority" json:"priority"`
	AssignedLevel       int             `db:"assigned_level" json:"assigned_level"`
	AutoEscalated       bool            `db:"auto_escalated" json:"auto_escalated"`
	EscalationCount     int             `db:"escalation_count" json:"escalation_count"`
	LastEscalatedAt     sql.NullTime    `db:"last_escalated_at" json:"last_escalated_at"`
	VerificationOTP     sql.NullString  `db:"verification_otp" json:"-"`
	OTPExpiresAt        sql.NullTime    `db:"otp_expires_at" json:"otp_expires_at"`
	ResolutionAttemptID sql.NullString  `db:"resolution_attempt_id" json:"-"`
	ResolutionStartedAt sql.NullTime    `db:"resolution_started_at" json:"-"`
	LedgerID            sql.NullString  `db:"ledger_id" json:"ledger_id"`
	LedgerReceipt       sql.NullString  `db:"ledger_receipt" json:"ledger_receipt"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt          sql.NullTime    `db:"resolved_at" json:"resolved_at"`
	ResolvedBy          sql.NullString  `db:"resolved_by" json:"resolved_by"`
}

// IsResolved reports whether the grievance reached its terminal status.
func (g *Grievance) IsResolved() bool {
	return g.Status == StatusResolved
}

// CanEscalate reports whether the grievance is still eligible for time-based promotion.
func (g *Grievance) CanEscalate() bool {
	return g.Status == StatusPending && g.AssignedLevel < MaxEscalationLevel
}

// HasChallenge reports whether an OTP is currently persisted on the grievance.
func (g *Grievance) HasChallenge() bool {
	return g.VerificationOTP.Valid && g.OTPExpiresAt.Valid
}

// CreateGrievanceRequest is the citizen-submitted payload.
type CreateGrievanceRequest struct {
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	Location      *string `json:"location,omitempty"`
	ContactNumber string  `json:"contact_number"`
	Email         string  `json:"email"`
	ImageURL      *string `json:"image_url,omitempty"`
}

// GrievanceFilter narrows a grievance listing. Zero values mean "any".
type GrievanceFilter struct {
	Status    GrievanceStatus
	Level     int
	MaxLevel  int // exclusive upper bound on assigned_level
	CitizenID string
	Limit     int
}

// AuditEntry is an append-only record of a lifecycle transition.
type AuditEntry struct {
	AuditID     int64          `db:"audit_id" json:"audit_id"`
	GrievanceID string         `db:"grievance_id" json:"grievance_id"`
	Action      string         `db:"action" json:"action"`
	ActorType   ActorType      `db:"actor_type" json:"actor_type"`
	ActorID     sql.NullString `db:"actor_id" json:"actor_id"`
	Metadata    sql.NullString `db:"metadata" json:"metadata"` // JSON
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Audit actions
const (
	AuditActionCreated           = "created"
	AuditActionEscalated         = "escalated"
	AuditActionOTPIssued         = "otp_issued"
	AuditActionOTPDeliveryFailed = "otp_delivery_failed"
	AuditActionResolved          = "resolved"
	AuditActionResolutionFailed  = "resolution_failed"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
