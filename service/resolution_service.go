package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"surajya/clock"
	"surajya/ledger"
	"surajya/metrics"
	"surajya/models"
	"surajya/notification"
	"surajya/repository"
	"surajya/utils"
)

// ResolutionConfig controls the OTP challenge.
type ResolutionConfig struct {
	OTPTTL     time.Duration // lifetime of an issued code
	Lease      time.Duration // how long one confirm may hold the grievance before another may take over
	BcryptCost int           // 0 = bcrypt default
}

// DefaultResolutionConfig returns a 15 minute OTP and a 2 minute lease.
func DefaultResolutionConfig() ResolutionConfig {
	return ResolutionConfig{OTPTTL: 15 * time.Minute, Lease: 2 * time.Minute}
}

// ResolutionService issues and verifies resolution OTPs and commits the
// resolution to the ledger and the store.
//
// Per grievance: no challenge -> issued -> verified | expired. Issuing again
// replaces the code. Only one confirm may be in flight per grievance; it holds
// a lease (resolution_attempt_id) taken with a conditional update.
type ResolutionService struct {
	grievances GrievanceStore
	ledger     ledger.Ledger
	sender     notification.OTPSender
	reconciler *reconciler
	audit      auditor
	metrics    *metrics.Metrics
	clock      clock.Clock
	cfg        ResolutionConfig
}

// NewResolutionService creates a new resolution service
func NewResolutionService(
	grievances GrievanceStore,
	l ledger.Ledger,
	sender notification.OTPSender,
	reconciliations ReconciliationStore,
	audit AuditStore,
	m *metrics.Metrics,
	clk clock.Clock,
	cfg ResolutionConfig,
) *ResolutionService {
	def := DefaultResolutionConfig()
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = def.OTPTTL
	}
	if cfg.Lease <= 0 {
		cfg.Lease = def.Lease
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &ResolutionService{
		grievances: grievances,
		ledger:     l,
		sender:     sender,
		reconciler: &reconciler{store: reconciliations, metrics: m},
		audit:      auditor{store: audit},
		metrics:    m,
		clock:      clk,
		cfg:        cfg,
	}
}

// Issue generates a fresh code for the grievance, persists its hash and expiry,
// and sends the code to the citizen's email.
//
// If delivery fails the code is already stored and stays valid until expiry;
// the error is a *notification.DeliveryError and the caller may issue again.
func (s *ResolutionService) Issue(ctx context.Context, grievanceID string) (*models.OTPTicket, error) {
	g, err := s.grievances.Get(ctx, grievanceID)
	if err != nil {
		return nil, err
	}
	if g.IsResolved() {
		return nil, ErrAlreadyResolved
	}
	if err := s.settlePendingResolve(ctx, g); err != nil {
		return nil, err
	}

	code, err := utils.GenerateOTP(utils.OTPLength)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashOTP(code, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	expiresAt := now.Add(s.cfg.OTPTTL)

	var observedOTP any
	if g.VerificationOTP.Valid {
		observedOTP = g.VerificationOTP.String
	}
	err = s.grievances.ConditionalUpdate(ctx, g.ID,
		repository.Fields{
			"status":                models.StatusPending,
			"verification_otp":      observedOTP,
			"resolution_started_at": repository.NullOrBefore(now.Add(-s.cfg.Lease)),
		},
		repository.Fields{
			"verification_otp": hash,
			"otp_expires_at":   expiresAt,
		},
	)
	if err != nil {
		return nil, s.conflictOr(err, "failed to store otp")
	}

	ticket := &models.OTPTicket{GrievanceID: g.ID, Code: code, ExpiresAt: expiresAt}
	s.metrics.OTPIssued()
	s.audit.record(ctx, now, g.ID, models.AuditActionOTPIssued, models.ActorSystem, "", map[string]any{
		"expires_at": expiresAt,
	})
	log.Printf("[OTP] issued for grievance %s, expires %s", g.ID, expiresAt.Format(time.RFC3339))

	if err := s.sender.SendOTP(ctx, g.Email, code, g.ID); err != nil {
		log.Printf("[OTP] delivery failed for grievance %s: %v", g.ID, err)
		s.audit.record(ctx, s.clock.Now(), g.ID, models.AuditActionOTPDeliveryFailed, models.ActorSystem, "", map[string]any{
			"error": err.Error(),
		})
		var de *notification.DeliveryError
		if !errors.As(err, &de) {
			err = &notification.DeliveryError{Recipient: g.Email, GrievanceID: g.ID, Err: err}
		}
		return nil, err
	}
	return ticket, nil
}

// Verify checks code and, on a match, resolves the grievance.
//
// Flow:
// 1. Resolved grievances are terminal: ErrAlreadyResolved. So is a grievance
//    with an open resolve entry in the reconciliation log; the entry is
//    applied first, or ErrResolutionPending is returned without touching the ledger
// 2. Expired codes return OutcomeExpired whatever the code: ErrOtpExpired
// 3. Wrong codes return OutcomeInvalid: ErrOtpMismatch
// 4. Take the resolution lease; losing it returns ErrConcurrentModification
// 5. Resolve on the ledger; on failure release the lease and keep the OTP
// 6. Mark resolved, conditional on still holding the lease
//
// OutcomeVerified is only returned after step 6.
func (s *ResolutionService) Verify(ctx context.Context, grievanceID, code, officialID string) (*models.ResolutionResult, error) {
	g, err := s.grievances.Get(ctx, grievanceID)
	if err != nil {
		return nil, err
	}
	if g.IsResolved() {
		return nil, ErrAlreadyResolved
	}
	if err := s.settlePendingResolve(ctx, g); err != nil {
		return nil, err
	}
	if !g.HasChallenge() {
		return nil, ErrNoChallenge
	}

	now := s.clock.Now()
	ticket := models.OTPTicket{GrievanceID: g.ID, ExpiresAt: g.OTPExpiresAt.Time}
	if ticket.Expired(now) {
		s.metrics.OTPVerified(string(models.OutcomeExpired))
		return &models.ResolutionResult{GrievanceID: g.ID, Outcome: models.OutcomeExpired}, ErrOtpExpired
	}
	if err := utils.CheckOTP(code, g.VerificationOTP.String); err != nil {
		s.metrics.OTPVerified(string(models.OutcomeInvalid))
		return &models.ResolutionResult{GrievanceID: g.ID, Outcome: models.OutcomeInvalid}, ErrOtpMismatch
	}
	if !g.LedgerID.Valid {
		return nil, fmt.Errorf("grievance %s has no ledger id", g.ID)
	}

	attemptID := uuid.NewString()
	err = s.grievances.ConditionalUpdate(ctx, g.ID,
		repository.Fields{
			"status":                models.StatusPending,
			"verification_otp":      g.VerificationOTP.String,
			"resolution_started_at": repository.NullOrBefore(now.Add(-s.cfg.Lease)),
		},
		repository.Fields{
			"resolution_attempt_id": attemptID,
			"resolution_started_at": now,
		},
	)
	if err != nil {
		return nil, s.conflictOr(err, "failed to acquire resolution lease")
	}

	receipt, err := s.ledger.ResolveGrievance(ctx, g.LedgerID.String)
	if err != nil {
		s.metrics.LedgerError(ledger.OpResolve, string(ledger.KindOf(err)))
		s.releaseLease(ctx, g.ID, attemptID)
		s.audit.record(ctx, s.clock.Now(), g.ID, models.AuditActionResolutionFailed, models.ActorOfficial, officialID, map[string]any{
			"error": err.Error(),
		})
		log.Printf("[RESOLUTION] ledger resolve failed for grievance %s: %v", g.ID, err)
		return nil, fmt.Errorf("failed to resolve grievance on ledger: %w", err)
	}

	resolvedAt := s.clock.Now()
	err = s.grievances.ConditionalUpdate(ctx, g.ID,
		repository.Fields{
			"status":                models.StatusPending,
			"resolution_attempt_id": attemptID,
		},
		resolvedFields(resolvedAt, officialID, receipt.TxHash),
	)
	if err != nil {
		log.Printf("[RESOLUTION] grievance %s resolved on ledger (tx %s) but store update failed: %v", g.ID, receipt.TxHash, err)
		return nil, s.reconciler.record(ctx, models.ReconcileResolve, snapshotOf(g, resolvedAt, officialID, receipt.TxHash), g.LedgerID.String, resolvedAt, err)
	}

	s.metrics.OTPVerified(string(models.OutcomeVerified))
	s.audit.record(ctx, resolvedAt, g.ID, models.AuditActionResolved, models.ActorOfficial, officialID, map[string]any{
		"tx_hash":      receipt.TxHash,
		"block_number": receipt.BlockNumber,
	})
	log.Printf("[RESOLUTION] grievance %s resolved by %s (tx %s)", g.ID, officialID, receipt.TxHash)
	return &models.ResolutionResult{
		GrievanceID:   g.ID,
		Outcome:       models.OutcomeVerified,
		LedgerReceipt: receipt.TxHash,
		ResolvedAt:    &resolvedAt,
	}, nil
}

// settlePendingResolve applies an open resolve entry for g, if there is one.
// The ledger has already resolved g in that case, so the caller must stop:
// ErrAlreadyResolved once the entry is applied, ErrResolutionPending if it
// cannot be applied yet. Returns nil when no entry is open.
func (s *ResolutionService) settlePendingResolve(ctx context.Context, g *models.Grievance) error {
	store := s.reconciler.store
	if store == nil {
		return nil
	}
	entries, err := store.ListOpen(ctx, g.ID, models.ReconcileResolve)
	if err != nil {
		return fmt.Errorf("failed to check reconciliation log: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	entry := entries[0]
	var snap grievanceSnapshot
	if err := json.Unmarshal([]byte(entry.Payload), &snap); err != nil {
		log.Printf("[RECONCILE] entry %s for grievance %s has an unreadable payload: %v", entry.ID, g.ID, err)
		return fmt.Errorf("%w: entry %s: %w", ErrResolutionPending, entry.ID, err)
	}
	now := s.clock.Now()
	if err := applyResolve(ctx, s.grievances, s.audit, now, &entry, snap); err != nil {
		log.Printf("[RECONCILE] grievance %s is resolved on ledger %s but entry %s could not be applied: %v", g.ID, entry.LedgerID, entry.ID, err)
		return fmt.Errorf("%w: entry %s: %w", ErrResolutionPending, entry.ID, err)
	}
	for _, e := range entries {
		if err := store.MarkReplayed(ctx, e.ID, now); err != nil {
			log.Printf("[RECONCILE] applied entry %s but could not close it: %v", e.ID, err)
		}
	}
	log.Printf("[RECONCILE] applied pending resolve entry %s for grievance %s", entry.ID, g.ID)
	return ErrAlreadyResolved
}

// releaseLease gives up a lease after a failed ledger call. If the release
// itself fails the lease simply goes stale.
func (s *ResolutionService) releaseLease(ctx context.Context, grievanceID, attemptID string) {
	err := s.grievances.ConditionalUpdate(ctx, grievanceID,
		repository.Fields{"resolution_attempt_id": attemptID},
		repository.Fields{"resolution_attempt_id": nil, "resolution_started_at": nil},
	)
	if err != nil {
		log.Printf("[RESOLUTION] failed to release lease %s on grievance %s: %v", attemptID, grievanceID, err)
	}
}

func (s *ResolutionService) conflictOr(err error, msg string) error {
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrConcurrentModification, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// resolvedFields is the terminal update: status resolved, challenge and lease cleared.
func resolvedFields(resolvedAt time.Time, resolvedBy, txHash string) repository.Fields {
	return repository.Fields{
		"status":                models.StatusResolved,
		"verification_otp":      nil,
		"otp_expires_at":        nil,
		"resolution_attempt_id": nil,
		"resolution_started_at": nil,
		"resolved_at":           resolvedAt,
		"resolved_by":           resolvedBy,
		"ledger_receipt":        txHash,
	}
}
