package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"surajya/clock"
	"surajya/ledger"
	"surajya/metrics"
	"surajya/models"
	"surajya/repository"
	"surajya/utils"
)

// Field limits match the grievances table.
const (
	maxCategoryLen    = 100
	maxDescriptionLen = 5000
	maxContactLen     = 32
	maxEmailLen       = 255
	maxListLimit      = 500
)

// GrievanceService is the lifecycle orchestrator: it creates grievances and
// delegates escalation and resolution to their services.
type GrievanceService struct {
	grievances      GrievanceStore
	rules           RuleStore
	reconciliations ReconciliationStore
	auditStore      AuditStore
	ledger          ledger.Ledger
	escalation      *EscalationService
	resolution      *ResolutionService
	reconciler      *reconciler
	audit           auditor
	metrics         *metrics.Metrics
	clock           clock.Clock
}

// NewGrievanceService creates a new grievance service
func NewGrievanceService(
	grievances GrievanceStore,
	rules RuleStore,
	reconciliations ReconciliationStore,
	audit AuditStore,
	l ledger.Ledger,
	escalation *EscalationService,
	resolution *ResolutionService,
	m *metrics.Metrics,
	clk clock.Clock,
) *GrievanceService {
	if clk == nil {
		clk = clock.Real()
	}
	return &GrievanceService{
		grievances:      grievances,
		rules:           rules,
		reconciliations: reconciliations,
		auditStore:      audit,
		ledger:          l,
		escalation:      escalation,
		resolution:      resolution,
		reconciler:      &reconciler{store: reconciliations, metrics: m},
		audit:           auditor{store: audit},
		metrics:         m,
		clock:           clk,
	}
}

// Create files a new grievance.
//
// Flow:
// 1. Validate input (nothing is written on failure)
// 2. Ensure the category has a priority rule and classify against it
// 3. Anchor the grievance on the ledger with hashes of the free text
// 4. Insert the classified grievance with its ledger id
//
// If step 4 fails after step 3 succeeded, the ledger id is recorded in the
// reconciliation log and a *ReconciliationError is returned.
func (s *GrievanceService) Create(ctx context.Context, req *models.CreateGrievanceRequest, citizenID string) (*models.Grievance, error) {
	if err := validateCreate(req, citizenID); err != nil {
		return nil, err
	}

	category := strings.TrimSpace(req.Category)
	rule, err := s.rules.EnsureRule(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load priority rule: %w", err)
	}

	g := &models.Grievance{
		ID:            uuid.NewString(),
		CitizenID:     citizenID,
		Category:      category,
		Description:   strings.TrimSpace(req.Description),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Email:         strings.TrimSpace(req.Email),
		Status:        models.StatusPending,
		CreatedAt:     s.clock.Now(),
	}
	locationHash := ""
	if req.Location != nil && strings.TrimSpace(*req.Location) != "" {
		g.Location.String, g.Location.Valid = strings.TrimSpace(*req.Location), true
		locationHash = utils.HashFreeText(g.Location.String)
	}
	if req.ImageURL != nil && strings.TrimSpace(*req.ImageURL) != "" {
		g.ImageURL.String, g.ImageURL.Valid = strings.TrimSpace(*req.ImageURL), true
	}

	class := Classify(g, rule)
	g.Priority.Int64, g.Priority.Valid = int64(class.Priority), true
	g.AssignedLevel = class.AssignedLevel
	g.AutoEscalated = class.AutoEscalated

	ledgerID, err := s.ledger.CreateGrievance(ctx, category, locationHash, utils.HashFreeText(g.Description))
	if err != nil {
		s.metrics.LedgerError(ledger.OpCreate, string(ledger.KindOf(err)))
		log.Printf("[LEDGER] create failed for category %q: %v", category, err)
		return nil, fmt.Errorf("failed to create grievance on ledger: %w", err)
	}
	g.LedgerID.String, g.LedgerID.Valid = ledgerID, true

	if err := s.grievances.Insert(ctx, g); err != nil {
		log.Printf("[GRIEVANCE] insert failed after ledger create %s: %v", ledgerID, err)
		return nil, s.reconciler.record(ctx, models.ReconcileCreate, snapshotOf(g, time.Time{}, "", ""), ledgerID, g.CreatedAt, err)
	}

	s.metrics.GrievanceCreated(g.AssignedLevel)
	s.audit.record(ctx, g.CreatedAt, g.ID, models.AuditActionCreated, models.ActorCitizen, citizenID, map[string]any{
		"category":       g.Category,
		"priority":       class.Priority,
		"assigned_level": class.AssignedLevel,
		"auto_escalated": class.AutoEscalated,
		"ledger_id":      ledgerID,
	})
	log.Printf("[GRIEVANCE] created %s category=%q priority=%d level=%d ledger=%s",
		g.ID, g.Category, class.Priority, class.AssignedLevel, ledgerID)
	return g, nil
}

// RunEscalationPass runs one escalation pass.
func (s *GrievanceService) RunEscalationPass(ctx context.Context) (*models.PassResult, error) {
	return s.escalation.RunPass(ctx)
}

// BeginResolution issues a resolution OTP to the grievance's citizen.
func (s *GrievanceService) BeginResolution(ctx context.Context, grievanceID string) (*models.OTPTicket, error) {
	return s.resolution.Issue(ctx, grievanceID)
}

// ConfirmResolution verifies the OTP and resolves the grievance.
func (s *GrievanceService) ConfirmResolution(ctx context.Context, grievanceID, code, officialID string) (*models.ResolutionResult, error) {
	return s.resolution.Verify(ctx, grievanceID, code, officialID)
}

// Get returns one grievance.
func (s *GrievanceService) Get(ctx context.Context, id string) (*models.Grievance, error) {
	return s.grievances.Get(ctx, id)
}

// List returns grievances matching filter, oldest first.
func (s *GrievanceService) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, error) {
	if filter.Status != "" && filter.Status != models.StatusPending && filter.Status != models.StatusResolved {
		return nil, &ValidationError{Field: "status", Message: "must be pending or resolved"}
	}
	if filter.Level != 0 && (filter.Level < models.LevelOne || filter.Level > models.LevelThree) {
		return nil, &ValidationError{Field: "level", Message: "must be 1, 2 or 3"}
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.grievances.Query(ctx, filter)
}

// History returns the audit trail of one grievance.
func (s *GrievanceService) History(ctx context.Context, id string) ([]models.AuditEntry, error) {
	if s.auditStore == nil {
		return nil, nil
	}
	return s.auditStore.ListByGrievance(ctx, id)
}

// ListReconciliation returns reconciliation entries with the given status (all when empty).
func (s *GrievanceService) ListReconciliation(ctx context.Context, status models.ReconciliationStatus) ([]models.ReconciliationEntry, error) {
	return s.reconciliations.List(ctx, status)
}

// ReplayReconciliation applies every open reconciliation entry to the store.
// A create entry re-inserts the grievance (an existing row counts as done);
// a resolve entry marks the grievance resolved unless it already is.
// Entries that fail stay open and their errors are joined into the result.
func (s *GrievanceService) ReplayReconciliation(ctx context.Context) (int, error) {
	entries, err := s.reconciliations.List(ctx, models.ReconcileOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to list reconciliation entries: %w", err)
	}

	replayed := 0
	var errs []error
	for _, entry := range entries {
		if err := s.replay(ctx, &entry); err != nil {
			log.Printf("[RECONCILE] entry %s (%s, grievance %s) not replayed: %v", entry.ID, entry.Kind, entry.GrievanceID, err)
			errs = append(errs, fmt.Errorf("entry %s: %w", entry.ID, err))
			continue
		}
		if err := s.reconciliations.MarkReplayed(ctx, entry.ID, s.clock.Now()); err != nil {
			errs = append(errs, fmt.Errorf("entry %s: %w", entry.ID, err))
			continue
		}
		replayed++
		log.Printf("[RECONCILE] replayed %s entry %s for grievance %s", entry.Kind, entry.ID, entry.GrievanceID)
	}
	return replayed, errors.Join(errs...)
}

func (s *GrievanceService) replay(ctx context.Context, entry *models.ReconciliationEntry) error {
	var snap grievanceSnapshot
	if err := json.Unmarshal([]byte(entry.Payload), &snap); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	switch entry.Kind {
	case models.ReconcileCreate:
		err := s.grievances.Insert(ctx, snap.grievance())
		if errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		if err == nil {
			s.metrics.GrievanceCreated(snap.AssignedLevel)
			s.audit.record(ctx, s.clock.Now(), snap.ID, models.AuditActionCreated, models.ActorSystem, "", map[string]any{
				"ledger_id":      entry.LedgerID,
				"reconciliation": entry.ID,
			})
		}
		return err

	case models.ReconcileResolve:
		return applyResolve(ctx, s.grievances, s.audit, s.clock.Now(), entry, snap)
	}
	return fmt.Errorf("unknown reconciliation kind %q", entry.Kind)
}

func validateCreate(req *models.CreateGrievanceRequest, citizenID string) error {
	if req == nil {
		return &ValidationError{Field: "body", Message: "is required"}
	}
	if strings.TrimSpace(citizenID) == "" {
		return &ValidationError{Field: "citizen_id", Message: "is required"}
	}
	required := []struct {
		field, value string
		max          int
	}{
		{"category", req.Category, maxCategoryLen},
		{"description", req.Description, maxDescriptionLen},
		{"contact_number", req.ContactNumber, maxContactLen},
		{"email", req.Email, maxEmailLen},
	}
	for _, r := range required {
		v := strings.TrimSpace(r.value)
		if v == "" {
			return &ValidationError{Field: r.field, Message: "is required"}
		}
		if len(v) > r.max {
			return &ValidationError{Field: r.field, Message: fmt.Sprintf("must be at most %d characters", r.max)}
		}
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil || addr.Name != "" {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return nil
}
