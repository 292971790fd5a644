package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surajya/models"
	"surajya/repository"
)

func TestEscalation_ScenarioC_PromotesAfterOneHour(t *testing.T) {
	h := newHarness(t)
	g := h.create(t, "Water Supply")

	h.clock.Advance(61 * time.Minute)
	pass, err := h.svc.RunEscalationPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pass.Scanned)
	assert.Equal(t, 1, pass.Escalated)
	require.Len(t, pass.Results, 1)
	assert.Equal(t, models.EscalationPromoted, pass.Results[0].Outcome)
	assert.Equal(t, 2, pass.Results[0].ToLevel)

	got := h.get(t, g.ID)
	assert.Equal(t, models.LevelTwo, got.AssignedLevel)
	assert.Equal(t, 1, got.EscalationCount)
	require.True(t, got.LastEscalatedAt.Valid)
	assert.True(t, got.LastEscalatedAt.Time.Equal(t0.Add(61*time.Minute)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Escalations.WithLabelValues("1")))

	trail, err := h.svc.History(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditActionEscalated, trail[1].Action)
}

func TestEscalation_NotDueIsSkipped(t *testing.T) {
	h := newHarness(t)
	g := h.create(t, "roads")

	h.clock.Advance(59 * time.Minute)
	pass, err := h.escalation.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pass.Escalated)
	assert.Equal(t, 1, pass.Skipped)
	assert.Equal(t, models.LevelOne, h.get(t, g.ID).AssignedLevel)
}

func TestEscalation_ImmediateRerunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	g := h.create(t, "roads")
	h.clock.Advance(3 * time.Hour)

	first, err := h.escalation.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Escalated)

	second, err := h.escalation.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Escalated)
	assert.Equal(t, 1, second.Skipped)

	got := h.get(t, g.ID)
	assert.Equal(t, models.LevelTwo, got.AssignedLevel)
	assert.Equal(t, 1, got.EscalationCount)
}

func TestEscalation_MeasuredFromCreationAndStopsAtLevelThree(t *testing.T) {
	h := newHarness(t)
	g := h.create(t, "roads")
	ctx := context.Background()

	h.clock.Advance(61 * time.Minute)
	_, err := h.escalation.RunPass(ctx)
	require.NoError(t, err)

	// Level 2 dwell is also measured from creation, so the next tick after
	// the cooldown promotes again.
	h.clock.Advance(2 * time.Minute)
	pass, err := h.escalation.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pass.Escalated)

	got := h.get(t, g.ID)
	assert.Equal(t, models.LevelThree, got.AssignedLevel)
	assert.Equal(t, 2, got.EscalationCount)

	for i := 0; i < 3; i++ {
		h.clock.Advance(24 * time.Hour)
		pass, err = h.escalation.RunPass(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, pass.Scanned)
	}
	got = h.get(t, g.ID)
	assert.Equal(t, models.LevelThree, got.AssignedLevel)
	assert.Equal(t, 2, got.EscalationCount)
}

func TestEscalation_ScenarioB_AutoEscalatedIsNeverCandidate(t *testing.T) {
	h := newHarness(t)
	h.setRule(t, "fire", 9)
	g := h.create(t, "fire")
	assert.Equal(t, models.LevelThree, g.AssignedLevel)

	h.clock.Advance(10 * time.Hour)
	pass, err := h.escalation.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pass.Scanned)
}

func TestEscalation_OldestFirst(t *testing.T) {
	h := newHarness(t)
	var ids []string
	for i := 0; i < 6; i++ {
		ids = append(ids, h.create(t, "roads").ID)
		h.clock.Advance(time.Minute)
	}
	h.clock.Advance(2 * time.Hour)

	pass, err := h.escalation.RunPass(context.Background())
	require.NoError(t, err)
	require.Len(t, pass.Results, len(ids))
	for i, r := range pass.Results {
		assert.Equal(t, ids[i], r.GrievanceID)
		assert.Equal(t, models.EscalationPromoted, r.Outcome)
	}
}

func TestEscalation_PartialFailureDoesNotAbortPass(t *testing.T) {
	h := newHarness(t)
	conflicted := h.create(t, "roads")
	broken := h.create(t, "roads")
	healthy := h.create(t, "roads")
	h.store.set(func(s *faultyStore) {
		s.updateErrs[conflicted.ID] = repository.ErrConflict
		s.updateErrs[broken.ID] = errors.New("disk full")
	})
	h.clock.Advance(2 * time.Hour)

	pass, err := h.escalation.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pass.Scanned)
	assert.Equal(t, 1, pass.Escalated)
	assert.Equal(t, 1, pass.Conflicts)
	assert.Equal(t, 1, pass.Failed)
	assert.Equal(t, models.LevelTwo, h.get(t, healthy.ID).AssignedLevel)
	assert.Equal(t, models.LevelOne, h.get(t, broken.ID).AssignedLevel)
}

func TestEscalation_OverlappingPassesEscalateOnce(t *testing.T) {
	h := newHarness(t)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, h.create(t, "roads").ID)
	}
	h.clock.Advance(2 * time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	escalated := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pass, err := h.escalation.RunPass(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			escalated += pass.Escalated
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(ids), escalated)
	for _, id := range ids {
		g := h.get(t, id)
		assert.Equal(t, models.LevelTwo, g.AssignedLevel)
		assert.Equal(t, 1, g.EscalationCount)
	}
}

func TestEscalation_ResolvedIsNeverEscalated(t *testing.T) {
	h := newHarness(t)
	g := h.create(t, "roads")
	code := h.issue(t, g.ID)
	_, err := h.svc.ConfirmResolution(context.Background(), g.ID, code, "official-1")
	require.NoError(t, err)

	h.clock.Advance(48 * time.Hour)
	pass, err := h.escalation.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, pass.Scanned)

	got := h.get(t, g.ID)
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Equal(t, models.LevelOne, got.AssignedLevel)
}

func TestEscalation_CancelledContextStopsDispatch(t *testing.T) {
	h := newHarness(t)
	h.create(t, "roads")
	h.clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.escalation.RunPass(ctx)
	// The candidate query itself observes the cancelled context.
	assert.Error(t, err)
}
