package models

import "time"

// EscalationOutcome describes what a pass did with one candidate.
type EscalationOutcome string

const (
	EscalationPromoted EscalationOutcome = "promoted"
	EscalationSkipped  EscalationOutcome = "skipped"  // dwell time not reached or cooling down
	EscalationConflict EscalationOutcome = "conflict" // record changed under us
	EscalationFailed   EscalationOutcome = "failed"
)

// EscalationResult represents the result of escalation processing for one grievance
type EscalationResult struct {
	GrievanceID  string            `json:"grievance_id"`
	Outcome      EscalationOutcome `json:"outcome"`
	FromLevel    int               `json:"from_level"`
	ToLevel      int               `json:"to_level,omitempty"`
	HoursPending float64           `json:"hours_pending"`
	Reason       string            `json:"reason"`
	ProcessedAt  time.Time         `json:"processed_at"`
}

// PassResult summarizes one escalation pass.
type PassResult struct {
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
	Scanned   int                `json:"scanned"`
	Escalated int                `json:"escalated"`
	Skipped   int                `json:"skipped"`
	Conflicts int                `json:"conflicts"`
	Failed    int                `json:"failed"`
	Results   []EscalationResult `json:"results"`
}
