package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"surajya/models"
)

// ReconciliationService lists and replays the reconciliation log.
type ReconciliationService interface {
	ListReconciliation(ctx context.Context, status models.ReconciliationStatus) ([]models.ReconciliationEntry, error)
	ReplayReconciliation(ctx context.Context) (int, error)
}

// RuleAdmin reads and writes priority rules.
type RuleAdmin interface {
	ListRules(ctx context.Context) ([]models.PriorityRule, error)
	UpsertRule(ctx context.Context, rule *models.PriorityRule) error
}

// AdminHandler provides operator endpoints behind ADMIN_TOKEN. No citizen impact.
type AdminHandler struct {
	reconciliation ReconciliationService
	rules          RuleAdmin
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(reconciliation ReconciliationService, rules RuleAdmin) *AdminHandler {
	return &AdminHandler{reconciliation: reconciliation, rules: rules}
}

// ListReconciliation returns reconciliation entries. GET /api/v1/admin/reconciliation?status=open|replayed
func (h *AdminHandler) ListReconciliation(w http.ResponseWriter, r *http.Request) {
	status := models.ReconciliationStatus(r.URL.Query().Get("status"))
	if status != "" && status != models.ReconcileOpen && status != models.ReconcileReplayed {
		respondWithError(w, http.StatusBadRequest, "Bad Request", "status must be open or replayed")
		return
	}

	entries, err := h.reconciliation.ListReconciliation(r.Context(), status)
	if err != nil {
		respondWithServiceError(w, "RECONCILE", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

// ReplayReconciliation applies open entries. POST /api/v1/admin/reconciliation/replay
// Partial failure still reports how many entries were replayed.
func (h *AdminHandler) ReplayReconciliation(w http.ResponseWriter, r *http.Request) {
	replayed, err := h.reconciliation.ReplayReconciliation(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":    "Replay incomplete",
			"message":  err.Error(),
			"code":     http.StatusInternalServerError,
			"replayed": replayed,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"replayed": replayed})
}

// ListRules returns all priority rules. GET /api/v1/admin/rules
func (h *AdminHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListRules(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

type adminRuleRequest struct {
	BasePriority int      `json:"base_priority"`
	Keywords     []string `json:"keywords"`
}

// PutRule creates or replaces the rule for a category. PUT /api/v1/admin/rules/{category}
// Only grievances filed afterwards are classified with the new priority.
func (h *AdminHandler) PutRule(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]

	var req adminRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if req.BasePriority < 1 || req.BasePriority > 10 {
		respondWithError(w, http.StatusBadRequest, "Bad Request", "base_priority must be between 1 and 10")
		return
	}
	if req.Keywords == nil {
		req.Keywords = []string{}
	}

	rule := &models.PriorityRule{Category: category, BasePriority: req.BasePriority, Keywords: req.Keywords}
	if err := h.rules.UpsertRule(r.Context(), rule); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, rule)
}
