// Package metrics holds the Prometheus collectors for grievance lifecycle
// events. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics.
type Metrics struct {
	// GrievancesCreated counts created grievances by initial level
	GrievancesCreated *prometheus.CounterVec
	// Escalations counts promotions by the level they left
	Escalations *prometheus.CounterVec
	// EscalationPassDuration measures one full escalation pass
	EscalationPassDuration prometheus.Histogram
	// OTPsIssued counts issued resolution challenges
	OTPsIssued prometheus.Counter
	// OTPVerifications counts verification attempts by outcome
	OTPVerifications *prometheus.CounterVec
	// LedgerErrors counts ledger failures by operation and kind
	LedgerErrors *prometheus.CounterVec
	// ReconciliationEntries counts ledger writes without a local counterpart
	ReconciliationEntries *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which tests use to avoid the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GrievancesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_created_total",
			Help: "Grievances created, by initial escalation level",
		}, []string{"level"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_escalations_total",
			Help: "Time-based escalations, by level before promotion",
		}, []string{"from_level"}),
		EscalationPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grievance_escalation_pass_seconds",
			Help:    "Duration of one escalation pass",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		OTPsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grievance_otp_issued_total",
			Help: "Resolution OTPs issued",
		}),
		OTPVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_otp_verifications_total",
			Help: "Resolution OTP verification attempts, by outcome",
		}, []string{"outcome"}),
		LedgerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_ledger_errors_total",
			Help: "Public ledger failures, by operation and kind",
		}, []string{"op", "kind"}),
		ReconciliationEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_reconciliation_entries_total",
			Help: "Ledger writes recorded for reconciliation, by kind",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.GrievancesCreated,
			m.Escalations,
			m.EscalationPassDuration,
			m.OTPsIssued,
			m.OTPVerifications,
			m.LedgerErrors,
			m.ReconciliationEntries,
		)
	}
	return m
}

func (m *Metrics) GrievanceCreated(level int) {
	if m == nil {
		return
	}
	m.GrievancesCreated.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (m *Metrics) Escalated(fromLevel int) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(strconv.Itoa(fromLevel)).Inc()
}

func (m *Metrics) PassCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.EscalationPassDuration.Observe(d.Seconds())
}

func (m *Metrics) OTPIssued() {
	if m == nil {
		return
	}
	m.OTPsIssued.Inc()
}

func (m *Metrics) OTPVerified(outcome string) {
	if m == nil {
		return
	}
	m.OTPVerifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LedgerError(op, kind string) {
	if m == nil {
		return
	}
	m.LedgerErrors.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) ReconciliationRecorded(kind string) {
	if m == nil {
		return
	}
	m.ReconciliationEntries.WithLabelValues(kind).Inc()
}
