package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surajya/models"
)

type countingRunner struct {
	mu       sync.Mutex
	calls    int
	err      error
	block    bool
	panicMsg string
}

func (r *countingRunner) RunEscalationPass(ctx context.Context) (*models.PassResult, error) {
	r.mu.Lock()
	r.calls++
	err, block, msg := r.err, r.block, r.panicMsg
	r.mu.Unlock()

	if msg != "" {
		panic(msg)
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &models.PassResult{
		Scanned:   2,
		Escalated: 1,
		Skipped:   1,
		Results: []models.EscalationResult{
			{GrievanceID: "g-1", Outcome: models.EscalationPromoted, FromLevel: 1, ToLevel: 2, Reason: "pending 61m at level 1"},
			{GrievanceID: "g-2", Outcome: models.EscalationSkipped, FromLevel: 1},
		},
	}, nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestEscalationWorker_RunsImmediatelyAndOnTick(t *testing.T) {
	runner := &countingRunner{}
	w := NewEscalationWorker("primary", runner, 10*time.Millisecond)

	w.Start()
	require.Eventually(t, func() bool { return runner.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()

	st := w.Status()
	assert.Equal(t, "primary", st.Name)
	assert.False(t, st.Running)
	assert.GreaterOrEqual(t, st.Passes, 3)
	require.NotNil(t, st.Last)
	assert.Equal(t, 1, st.Last.Escalated)
	assert.NotNil(t, st.LastRunAt)
	assert.Empty(t, st.LastError)
}

func TestEscalationWorker_FirstPassBeforeFirstTick(t *testing.T) {
	runner := &countingRunner{}
	w := NewEscalationWorker("backup", runner, time.Hour)

	w.Start()
	defer w.Stop()

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEscalationWorker_RecordsPassError(t *testing.T) {
	runner := &countingRunner{err: errors.New("store unavailable")}
	w := NewEscalationWorker("primary", runner, time.Hour)

	w.Start()
	require.Eventually(t, func() bool { return w.Status().Passes == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()

	st := w.Status()
	assert.Equal(t, "store unavailable", st.LastError)
	assert.Nil(t, st.Last)
}

func TestEscalationWorker_SurvivesPanickingPass(t *testing.T) {
	runner := &countingRunner{panicMsg: "nil map in classifier"}
	w := NewEscalationWorker("primary", runner, 10*time.Millisecond)

	w.Start()
	require.Eventually(t, func() bool { return w.Status().Passes >= 2 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()

	st := w.Status()
	assert.Contains(t, st.LastError, "panicked")
	assert.Contains(t, st.LastError, "nil map in classifier")
	assert.Nil(t, st.Last)
}

func TestEscalationWorker_StopCancelsInFlightPass(t *testing.T) {
	runner := &countingRunner{block: true}
	w := NewEscalationWorker("primary", runner, time.Hour)

	w.Start()
	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a pass was in flight")
	}
	assert.Contains(t, w.Status().LastError, "context canceled")
}

func TestEscalationWorker_StartStopAreIdempotent(t *testing.T) {
	runner := &countingRunner{}
	w := NewEscalationWorker("primary", runner, time.Hour)

	w.Stop()
	w.Start()
	w.Start()
	require.Eventually(t, func() bool { return runner.count() >= 1 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()

	assert.Equal(t, 1, runner.count())
}
