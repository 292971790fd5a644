package service

import (
	"context"
	"time"

	"surajya/models"
	"surajya/repository"
)

// GrievanceStore is the record store for grievances.
type GrievanceStore interface {
	Get(ctx context.Context, id string) (*models.Grievance, error)
	Query(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error)
	Insert(ctx context.Context, g *models.Grievance) error
	ConditionalUpdate(ctx context.Context, id string, expected, updates repository.Fields) error
}

// RuleStore is the priority rule store.
type RuleStore interface {
	GetRule(ctx context.Context, category string) (*models.PriorityRule, error)
	EnsureRule(ctx context.Context, category string) (*models.PriorityRule, error)
}

// ReconciliationStore holds ledger writes without a local counterpart.
type ReconciliationStore interface {
	Create(ctx context.Context, entry *models.ReconciliationEntry) error
	List(ctx context.Context, status models.ReconciliationStatus) ([]models.ReconciliationEntry, error)
	ListOpen(ctx context.Context, grievanceID string, kind models.ReconciliationKind) ([]models.ReconciliationEntry, error)
	MarkReplayed(ctx context.Context, id string, at time.Time) error
}

// AuditStore is the append-only lifecycle trail.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByGrievance(ctx context.Context, grievanceID string) ([]models.AuditEntry, error)
}

var (
	_ GrievanceStore      = (*repository.GrievanceRepository)(nil)
	_ RuleStore           = (*repository.PriorityRuleRepository)(nil)
	_ ReconciliationStore = (*repository.ReconciliationRepository)(nil)
	_ AuditStore          = (*repository.AuditRepository)(nil)
)
