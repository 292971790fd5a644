package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"surajya/clock"
	"surajya/metrics"
	"surajya/models"
	"surajya/repository"
)

// EscalationConfig controls time-based promotion.
type EscalationConfig struct {
	// Thresholds maps a level to the dwell time, measured from creation, after
	// which a pending grievance at that level is promoted.
	Thresholds map[int]time.Duration
	// Cooldown is the minimum gap between two promotions of one grievance.
	// Two passes inside the cooldown never promote the same record twice.
	Cooldown time.Duration
	// Workers bounds concurrent store updates within one pass.
	Workers int
}

// DefaultEscalationConfig returns one hour from creation for levels 1 and 2,
// a cooldown equal to the primary timer interval, and four workers.
func DefaultEscalationConfig() EscalationConfig {
	return EscalationConfig{
		Thresholds: map[int]time.Duration{
			models.LevelOne: time.Hour,
			models.LevelTwo: time.Hour,
		},
		Cooldown: 2 * time.Minute,
		Workers:  4,
	}
}

// EscalationService promotes pending grievances whose dwell time has elapsed.
type EscalationService struct {
	grievances GrievanceStore
	audit      auditor
	metrics    *metrics.Metrics
	clock      clock.Clock
	cfg        EscalationConfig
}

// NewEscalationService creates a new escalation service
func NewEscalationService(
	grievances GrievanceStore,
	audit AuditStore,
	m *metrics.Metrics,
	clk clock.Clock,
	cfg EscalationConfig,
) *EscalationService {
	def := DefaultEscalationConfig()
	if cfg.Thresholds == nil {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &EscalationService{
		grievances: grievances,
		audit:      auditor{store: audit},
		metrics:    m,
		clock:      clk,
		cfg:        cfg,
	}
}

// RunPass runs one escalation pass. It is safe to call from any number of
// timers at once; every promotion is a conditional update on the level and
// escalation count that were read.
//
// Flow:
// 1. Load pending grievances below level 3, oldest first
// 2. For each, compare time since creation with the threshold for its level
// 3. Promote one level with a conditional update
// 4. Record the outcome; a failure on one grievance never stops the pass
//
// The returned error is non-nil only when the candidates could not be loaded.
func (s *EscalationService) RunPass(ctx context.Context) (*models.PassResult, error) {
	started := s.clock.Now()
	candidates, err := s.grievances.Query(ctx, models.GrievanceFilter{
		Status:   models.StatusPending,
		MaxLevel: models.MaxEscalationLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation candidates: %w", err)
	}

	results := make([]models.EscalationResult, len(candidates))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	dispatched := 0
	for i := range candidates {
		if ctx.Err() != nil {
			log.Printf("[ESCALATION] pass cancelled after %d of %d candidates", dispatched, len(candidates))
			break
		}
		i := i
		dispatched++
		// Go blocks while all workers are busy, so dispatch stays oldest first.
		g.Go(func() error {
			results[i] = s.escalate(ctx, &candidates[i], started)
			return nil
		})
	}
	_ = g.Wait()

	pass := &models.PassResult{
		StartedAt: started,
		Scanned:   len(candidates),
		Results:   results[:dispatched],
	}
	for _, r := range pass.Results {
		switch r.Outcome {
		case models.EscalationPromoted:
			pass.Escalated++
		case models.EscalationSkipped:
			pass.Skipped++
		case models.EscalationConflict:
			pass.Conflicts++
		case models.EscalationFailed:
			pass.Failed++
		}
	}
	pass.Duration = s.clock.Now().Sub(started)
	s.metrics.PassCompleted(pass.Duration)
	log.Printf("[ESCALATION] pass complete: scanned=%d escalated=%d skipped=%d conflicts=%d failed=%d",
		pass.Scanned, pass.Escalated, pass.Skipped, pass.Conflicts, pass.Failed)
	return pass, nil
}

// escalate evaluates and, if due, promotes one grievance.
func (s *EscalationService) escalate(ctx context.Context, g *models.Grievance, now time.Time) models.EscalationResult {
	pending := now.Sub(g.CreatedAt)
	result := models.EscalationResult{
		GrievanceID:  g.ID,
		FromLevel:    g.AssignedLevel,
		HoursPending: pending.Hours(),
		ProcessedAt:  now,
	}

	if !g.CanEscalate() {
		result.Outcome = models.EscalationSkipped
		result.Reason = "not eligible"
		return result
	}
	threshold, ok := s.cfg.Thresholds[g.AssignedLevel]
	if !ok {
		result.Outcome = models.EscalationSkipped
		result.Reason = fmt.Sprintf("no threshold for level %d", g.AssignedLevel)
		return result
	}
	if pending < threshold {
		result.Outcome = models.EscalationSkipped
		result.Reason = fmt.Sprintf("pending %.2fh, threshold %.2fh", pending.Hours(), threshold.Hours())
		return result
	}
	if g.LastEscalatedAt.Valid && now.Sub(g.LastEscalatedAt.Time) < s.cfg.Cooldown {
		result.Outcome = models.EscalationSkipped
		result.Reason = "escalated within cooldown"
		return result
	}

	toLevel := g.AssignedLevel + 1
	err := s.grievances.ConditionalUpdate(ctx, g.ID,
		repository.Fields{
			"status":           models.StatusPending,
			"assigned_level":   g.AssignedLevel,
			"escalation_count": g.EscalationCount,
		},
		repository.Fields{
			"assigned_level":    toLevel,
			"escalation_count":  g.EscalationCount + 1,
			"last_escalated_at": now,
		},
	)
	if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
		log.Printf("[ESCALATION] Skipping grievance %s: changed since read", g.ID)
		result.Outcome = models.EscalationConflict
		result.Reason = "changed since read"
		return result
	}
	if err != nil {
		log.Printf("[ESCALATION] Failed to escalate grievance %s: %v", g.ID, err)
		result.Outcome = models.EscalationFailed
		result.Reason = err.Error()
		return result
	}

	result.Outcome = models.EscalationPromoted
	result.ToLevel = toLevel
	result.Reason = fmt.Sprintf("pending %.2fh at level %d", pending.Hours(), g.AssignedLevel)
	log.Printf("[ESCALATION] grievance %s escalated L%d -> L%d (pending %.2fh)", g.ID, g.AssignedLevel, toLevel, pending.Hours())

	s.metrics.Escalated(g.AssignedLevel)
	s.audit.record(ctx, now, g.ID, models.AuditActionEscalated, models.ActorSystem, "", map[string]any{
		"from_level":    g.AssignedLevel,
		"to_level":      toLevel,
		"hours_pending": pending.Hours(),
	})
	return result
}
