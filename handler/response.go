package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"surajya/ledger"
	"surajya/models"
	"surajya/notification"
	"surajya/repository"
	"surajya/service"
)

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := models.ErrorResponse{
		Error:   errorType,
		Message: message,
		Code:    statusCode,
	}
	respondWithJSON(w, statusCode, response)
}

// reconciliationResponse is the 500 body for a ledger write that lost its local counterpart.
type reconciliationResponse struct {
	models.ErrorResponse
	LedgerID    string `json:"ledger_id"`
	GrievanceID string `json:"grievance_id"`
	EntryID     string `json:"reconciliation_id,omitempty"`
}

// respondWithServiceError maps an orchestrator error to its HTTP status.
func respondWithServiceError(w http.ResponseWriter, op string, err error) {
	var validationErr *service.ValidationError
	var reconcileErr *service.ReconciliationError
	var deliveryErr *notification.DeliveryError
	var ledgerErr *ledger.Error

	switch {
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, "Validation error", validationErr.Error())
	case errors.As(err, &reconcileErr):
		log.Printf("[%s] CRITICAL: %v", op, err)
		respondWithJSON(w, http.StatusInternalServerError, reconciliationResponse{
			ErrorResponse: models.ErrorResponse{
				Error:   "Reconciliation required",
				Message: "The ledger write succeeded but the grievance record could not be saved",
				Code:    http.StatusInternalServerError,
			},
			LedgerID:    reconcileErr.LedgerID,
			GrievanceID: reconcileErr.GrievanceID,
			EntryID:     reconcileErr.EntryID,
		})
	case errors.Is(err, repository.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found", "Grievance not found")
	case errors.Is(err, service.ErrAlreadyResolved):
		respondWithError(w, http.StatusConflict, "Already resolved", err.Error())
	case errors.Is(err, service.ErrResolutionPending):
		log.Printf("[%s] %v", op, err)
		respondWithError(w, http.StatusConflict, "Reconciliation pending", "The ledger already resolved this grievance, the record will be updated on replay")
	case errors.Is(err, service.ErrConcurrentModification):
		respondWithError(w, http.StatusConflict, "Conflict", "Grievance was modified concurrently, retry the request")
	case errors.Is(err, service.ErrNoChallenge):
		respondWithError(w, http.StatusConflict, "No challenge", err.Error())
	case errors.Is(err, service.ErrOtpExpired):
		respondWithError(w, http.StatusGone, "OTP expired", "The OTP has expired, request a new one")
	case errors.Is(err, service.ErrOtpMismatch):
		respondWithError(w, http.StatusBadRequest, "Invalid OTP", "The OTP does not match")
	case errors.As(err, &deliveryErr):
		log.Printf("[%s] OTP delivery failed: %v", op, err)
		respondWithError(w, http.StatusBadGateway, "Delivery failed", "The OTP could not be delivered, it remains valid until it expires")
	case errors.As(err, &ledgerErr):
		log.Printf("[%s] ledger error: %v", op, err)
		if ledgerErr.Kind == ledger.KindUnavailable {
			respondWithError(w, http.StatusServiceUnavailable, "Ledger unavailable", "The ledger is unavailable, retry later")
			return
		}
		respondWithError(w, http.StatusBadGateway, "Ledger error", string(ledgerErr.Kind))
	default:
		log.Printf("[%s] internal error: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to process request")
	}
}

// grievanceResponse is the JSON view of a grievance. OTP and lease columns never leave the server.
type grievanceResponse struct {
	ID              string                 `json:"id"`
	CitizenID       string                 `json:"citizen_id"`
	Category        string                 `json:"category"`
	Description     string                 `json:"description"`
	Location        *string                `json:"location,omitempty"`
	ContactNumber   string                 `json:"contact_number"`
	Email           string                 `json:"email"`
	ImageURL        *string                `json:"image_url,omitempty"`
	Status          models.GrievanceStatus `json:"status"`
	Priority        *int64                 `json:"priority,omitempty"`
	AssignedLevel   int                    `json:"assigned_level"`
	AutoEscalated   bool                   `json:"auto_escalated"`
	EscalationCount int                    `json:"escalation_count"`
	LastEscalatedAt *time.Time             `json:"last_escalated_at,omitempty"`
	OTPExpiresAt    *time.Time             `json:"otp_expires_at,omitempty"`
	LedgerID        *string                `json:"ledger_id,omitempty"`
	LedgerReceipt   *string                `json:"ledger_receipt,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
	ResolvedBy      *string                `json:"resolved_by,omitempty"`
}

func toGrievanceResponse(g *models.Grievance) grievanceResponse {
	resp := grievanceResponse{
		ID:              g.ID,
		CitizenID:       g.CitizenID,
		Category:        g.Category,
		Description:     g.Description,
		ContactNumber:   g.ContactNumber,
		Email:           g.Email,
		Status:          g.Status,
		AssignedLevel:   g.AssignedLevel,
		AutoEscalated:   g.AutoEscalated,
		EscalationCount: g.EscalationCount,
		CreatedAt:       g.CreatedAt,
	}
	if g.Location.Valid {
		resp.Location = &g.Location.String
	}
	if g.ImageURL.Valid {
		resp.ImageURL = &g.ImageURL.String
	}
	if g.Priority.Valid {
		resp.Priority = &g.Priority.Int64
	}
	if g.LastEscalatedAt.Valid {
		resp.LastEscalatedAt = &g.LastEscalatedAt.Time
	}
	if g.OTPExpiresAt.Valid {
		resp.OTPExpiresAt = &g.OTPExpiresAt.Time
	}
	if g.LedgerID.Valid {
		resp.LedgerID = &g.LedgerID.String
	}
	if g.LedgerReceipt.Valid {
		resp.LedgerReceipt = &g.LedgerReceipt.String
	}
	if g.ResolvedAt.Valid {
		resp.ResolvedAt = &g.ResolvedAt.Time
	}
	if g.ResolvedBy.Valid {
		resp.ResolvedBy = &g.ResolvedBy.String
	}
	return resp
}

func toGrievanceResponses(list []models.Grievance) []grievanceResponse {
	out := make([]grievanceResponse, 0, len(list))
	for i := range list {
		out = append(out, toGrievanceResponse(&list[i]))
	}
	return out
}
