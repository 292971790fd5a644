package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"surajya/metrics"
	"surajya/models"
	"surajya/repository"
)

// grievanceSnapshot is the reconciliation payload: enough to rebuild the
// local record that failed to write.
type grievanceSnapshot struct {
	ID            string     `json:"id"`
	CitizenID     string     `json:"citizen_id"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	Location      *string    `json:"location,omitempty"`
	ContactNumber string     `json:"contact_number"`
	Email         string     `json:"email"`
	ImageURL      *string    `json:"image_url,omitempty"`
	Priority      int        `json:"priority"`
	AssignedLevel int        `json:"assigned_level"`
	AutoEscalated bool       `json:"auto_escalated"`
	LedgerID      string     `json:"ledger_id"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
	LedgerReceipt string     `json:"ledger_receipt,omitempty"`
}

// snapshotOf captures g. For a resolve snapshot pass the resolution details;
// for a create snapshot pass zero values.
func snapshotOf(g *models.Grievance, resolvedAt time.Time, resolvedBy, txHash string) grievanceSnapshot {
	snap := grievanceSnapshot{
		ID:            g.ID,
		CitizenID:     g.CitizenID,
		Category:      g.Category,
		Description:   g.Description,
		ContactNumber: g.ContactNumber,
		Email:         g.Email,
		Priority:      int(g.Priority.Int64),
		AssignedLevel: g.AssignedLevel,
		AutoEscalated: g.AutoEscalated,
		LedgerID:      g.LedgerID.String,
		CreatedAt:     g.CreatedAt,
		ResolvedBy:    resolvedBy,
		LedgerReceipt: txHash,
	}
	if g.Location.Valid {
		snap.Location = &g.Location.String
	}
	if g.ImageURL.Valid {
		snap.ImageURL = &g.ImageURL.String
	}
	if !resolvedAt.IsZero() {
		snap.ResolvedAt = &resolvedAt
	}
	return snap
}

// grievance rebuilds the pending record a create snapshot describes.
func (s grievanceSnapshot) grievance() *models.Grievance {
	g := &models.Grievance{
		ID:            s.ID,
		CitizenID:     s.CitizenID,
		Category:      s.Category,
		Description:   s.Description,
		ContactNumber: s.ContactNumber,
		Email:         s.Email,
		Status:        models.StatusPending,
		AssignedLevel: s.AssignedLevel,
		AutoEscalated: s.AutoEscalated,
		CreatedAt:     s.CreatedAt,
	}
	g.Priority.Int64, g.Priority.Valid = int64(s.Priority), true
	g.LedgerID.String, g.LedgerID.Valid = s.LedgerID, s.LedgerID != ""
	if s.Location != nil {
		g.Location.String, g.Location.Valid = *s.Location, true
	}
	if s.ImageURL != nil {
		g.ImageURL.String, g.ImageURL.Valid = *s.ImageURL, true
	}
	return g
}

// reconciler records ledger writes whose local counterpart failed.
type reconciler struct {
	store   ReconciliationStore
	metrics *metrics.Metrics
}

// record writes an open entry and returns the *ReconciliationError to hand
// back to the caller. If the log cannot be written either, the ledger id is
// still in the returned error and in the process log.
func (r *reconciler) record(ctx context.Context, kind models.ReconciliationKind, snap grievanceSnapshot, ledgerID string, at time.Time, cause error) error {
	rerr := &ReconciliationError{Kind: kind, LedgerID: ledgerID, GrievanceID: snap.ID, Err: cause}
	r.metrics.ReconciliationRecorded(string(kind))

	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[RECONCILE] CRITICAL: cannot encode %s snapshot for grievance %s ledger %s: %v", kind, snap.ID, ledgerID, err)
		return rerr
	}
	entry := &models.ReconciliationEntry{
		ID:          uuid.NewString(),
		Kind:        kind,
		GrievanceID: snap.ID,
		LedgerID:    ledgerID,
		Payload:     string(payload),
		Error:       cause.Error(),
		Status:      models.ReconcileOpen,
		CreatedAt:   at,
	}
	if r.store == nil {
		log.Printf("[RECONCILE] CRITICAL: no reconciliation store; %s for grievance %s ledger %s payload=%s", kind, snap.ID, ledgerID, payload)
		return rerr
	}
	if err := r.store.Create(ctx, entry); err != nil {
		log.Printf("[RECONCILE] CRITICAL: failed to record %s for grievance %s ledger %s payload=%s: %v", kind, snap.ID, ledgerID, payload, err)
		return rerr
	}
	rerr.EntryID = entry.ID
	log.Printf("[RECONCILE] recorded %s entry %s for grievance %s (ledger %s)", kind, entry.ID, snap.ID, ledgerID)
	return rerr
}

// applyResolve marks the grievance resolved from a resolve entry's snapshot.
// A grievance that is already resolved counts as applied.
func applyResolve(ctx context.Context, grievances GrievanceStore, audit auditor, now time.Time, entry *models.ReconciliationEntry, snap grievanceSnapshot) error {
	g, err := grievances.Get(ctx, entry.GrievanceID)
	if err != nil {
		return err
	}
	if g.IsResolved() {
		return nil
	}
	resolvedAt := now
	if snap.ResolvedAt != nil {
		resolvedAt = *snap.ResolvedAt
	}
	err = grievances.ConditionalUpdate(ctx, g.ID,
		repository.Fields{"status": models.StatusPending},
		resolvedFields(resolvedAt, snap.ResolvedBy, snap.LedgerReceipt),
	)
	if err != nil {
		return err
	}
	audit.record(ctx, now, g.ID, models.AuditActionResolved, models.ActorSystem, "", map[string]any{
		"tx_hash":        snap.LedgerReceipt,
		"resolved_by":    snap.ResolvedBy,
		"reconciliation": entry.ID,
	})
	return nil
}
