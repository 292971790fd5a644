package handler

import (
	"context"
	"net/http"

	"surajya/models"
	"surajya/worker"
)

// PassRunner runs one escalation pass.
type PassRunner interface {
	RunEscalationPass(ctx context.Context) (*models.PassResult, error)
}

// EscalationHandler handles HTTP requests for escalation operations
type EscalationHandler struct {
	runner  PassRunner
	workers []*worker.EscalationWorker
}

// NewEscalationHandler creates a new escalation handler. workers are reported by Status.
func NewEscalationHandler(runner PassRunner, workers ...*worker.EscalationWorker) *EscalationHandler {
	return &EscalationHandler{runner: runner, workers: workers}
}

// ProcessEscalations handles POST /api/v1/escalations/process
// Manually triggers an escalation pass. Safe to run while the timers are running.
func (h *EscalationHandler) ProcessEscalations(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunEscalationPass(r.Context())
	if err != nil {
		respondWithServiceError(w, "ESCALATION", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GetStatus handles GET /api/v1/escalations/status
func (h *EscalationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	out := make([]worker.Status, 0, len(h.workers))
	for _, wk := range h.workers {
		out = append(out, wk.Status())
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"workers": out})
}
