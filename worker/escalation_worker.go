package worker

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"surajya/models"
)

// PassRunner runs one escalation pass over pending grievances.
type PassRunner interface {
	RunEscalationPass(ctx context.Context) (*models.PassResult, error)
}

// Status is a snapshot of what a worker last did.
type Status struct {
	Name      string             `json:"name"`
	Interval  string             `json:"interval"`
	Running   bool               `json:"running"`
	Passes    int                `json:"passes"`
	LastRunAt *time.Time         `json:"last_run_at,omitempty"`
	LastError string             `json:"last_error,omitempty"`
	Last      *models.PassResult `json:"last,omitempty"`
}

// EscalationWorker is a background worker that periodically runs escalation passes.
// The server starts two of them: a primary on a short interval and a backup
// on a long one. Passes are safe to overlap, so neither coordinates with the other.
type EscalationWorker struct {
	name     string
	runner   PassRunner
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	status  Status
}

// NewEscalationWorker creates a new escalation worker
func NewEscalationWorker(name string, runner PassRunner, interval time.Duration) *EscalationWorker {
	return &EscalationWorker{
		name:     name,
		runner:   runner,
		interval: interval,
		status:   Status{Name: name, Interval: interval.String()},
	}
}

// Name returns the worker's name as used in logs.
func (w *EscalationWorker) Name() string { return w.name }

// Start starts the escalation worker
// The worker runs in a separate goroutine and processes escalations periodically
func (w *EscalationWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		log.Printf("[WORKER] %s escalation worker is already running", w.name)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	w.status.Running = true
	log.Printf("[WORKER] %s escalation worker started (interval: %v)", w.name, w.interval)

	go w.run(ctx, w.done)
}

// Stop stops the worker and waits for an in-flight pass to return.
func (w *EscalationWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.running = false
	w.status.Running = false
	w.mu.Unlock()

	log.Printf("[WORKER] stopping %s escalation worker...", w.name)
	cancel()
	<-done
	log.Printf("[WORKER] %s escalation worker stopped", w.name)
}

// Status returns a copy of the worker's last known state.
func (w *EscalationWorker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// run is the main worker loop
func (w *EscalationWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Process immediately on start
	w.processEscalations(ctx)

	for {
		select {
		case <-ticker.C:
			w.processEscalations(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processEscalations runs one pass and records its outcome.
// Safe to call concurrently with passes from other workers.
func (w *EscalationWorker) processEscalations(ctx context.Context) {
	startTime := time.Now()

	result, err := w.runPass(ctx)
	if err == nil && result == nil {
		result = &models.PassResult{}
	}

	now := time.Now().UTC()
	w.mu.Lock()
	w.status.Passes++
	w.status.LastRunAt = &now
	if err != nil {
		w.status.LastError = err.Error()
	} else {
		w.status.LastError = ""
		w.status.Last = result
	}
	w.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			log.Printf("[WORKER] %s pass interrupted: %v", w.name, err)
			return
		}
		log.Printf("[WORKER] %s pass failed: %v", w.name, err)
		return
	}

	for _, r := range result.Results {
		if r.Outcome == models.EscalationPromoted {
			log.Printf("[WORKER] escalated grievance %s: level %d -> %d (%s)", r.GrievanceID, r.FromLevel, r.ToLevel, r.Reason)
		}
	}

	log.Printf("[WORKER] %s pass completed in %v: %d scanned, %d escalated, %d skipped, %d conflicts, %d failed",
		w.name, time.Since(startTime), result.Scanned, result.Escalated, result.Skipped, result.Conflicts, result.Failed)
}

// runPass calls the runner and turns a panic into an error.
func (w *EscalationWorker) runPass(ctx context.Context) (result *models.PassResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WORKER] %s pass panicked: %v\n%s", w.name, r, debug.Stack())
			result, err = nil, fmt.Errorf("escalation pass panicked: %v", r)
		}
	}()
	return w.runner.RunEscalationPass(ctx)
}
