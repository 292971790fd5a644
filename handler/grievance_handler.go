package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"surajya/middleware"
	"surajya/models"
	"surajya/service"
)

// GrievanceHandler handles HTTP requests for grievances
type GrievanceHandler struct {
	service  *service.GrievanceService
	otpDebug bool
}

// NewGrievanceHandler creates a new grievance handler. When otpDebug is set the
// issued OTP is echoed in the begin-resolution response (development only).
func NewGrievanceHandler(svc *service.GrievanceService, otpDebug bool) *GrievanceHandler {
	return &GrievanceHandler{service: svc, otpDebug: otpDebug}
}

// CreateGrievance handles POST /api/v1/grievances
func (h *GrievanceHandler) CreateGrievance(w http.ResponseWriter, r *http.Request) {
	citizenID, ok := middleware.CitizenID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Citizen ID not found in context")
		return
	}

	var req models.CreateGrievanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}

	g, err := h.service.Create(r.Context(), &req, citizenID)
	if err != nil {
		respondWithServiceError(w, "GRIEVANCE", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toGrievanceResponse(g))
}

// GetMyGrievances handles GET /api/v1/grievances/mine
func (h *GrievanceHandler) GetMyGrievances(w http.ResponseWriter, r *http.Request) {
	citizenID, ok := middleware.CitizenID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Citizen ID not found in context")
		return
	}

	list, err := h.service.List(r.Context(), models.GrievanceFilter{CitizenID: citizenID})
	if err != nil {
		respondWithServiceError(w, "GRIEVANCE", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"grievances": toGrievanceResponses(list),
		"count":      len(list),
	})
}

// ListGrievances handles GET /api/v1/grievances?status=&level=&limit=
func (h *GrievanceHandler) ListGrievances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.GrievanceFilter{Status: models.GrievanceStatus(q.Get("status"))}

	for name, dst := range map[string]*int{"level": &filter.Level, "limit": &filter.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Validation error", "invalid "+name+": must be an integer")
			return
		}
		*dst = n
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, "GRIEVANCE", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"grievances": toGrievanceResponses(list),
		"count":      len(list),
	})
}

// GetGrievance handles GET /api/v1/grievances/{id}
func (h *GrievanceHandler) GetGrievance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	g, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, "GRIEVANCE", err)
		return
	}
	respondWithJSON(w, http.StatusOK, toGrievanceResponse(g))
}

// GetHistory handles GET /api/v1/grievances/{id}/history
func (h *GrievanceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.service.Get(r.Context(), id); err != nil {
		respondWithServiceError(w, "GRIEVANCE", err)
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, "GRIEVANCE", err)
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		he := historyEntry{Action: e.Action, ActorType: e.ActorType, At: e.CreatedAt}
		if e.ActorID.Valid {
			he.ActorID = e.ActorID.String
		}
		if e.Metadata.Valid {
			he.Metadata = json.RawMessage(e.Metadata.String)
		}
		out = append(out, he)
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"grievance_id": id, "history": out})
}

type historyEntry struct {
	Action    string           `json:"action"`
	ActorType models.ActorType `json:"actor_type"`
	ActorID   string           `json:"actor_id,omitempty"`
	Metadata  json.RawMessage  `json:"metadata,omitempty"`
	At        time.Time        `json:"at"`
}

type beginResolutionResponse struct {
	GrievanceID string    `json:"grievance_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Message     string    `json:"message"`
	DebugOTP    string    `json:"debug_otp,omitempty"`
}

// BeginResolution handles POST /api/v1/grievances/{id}/resolution
// Issues a fresh OTP to the citizen's email. The code itself is never returned
// unless OTP debug is enabled.
func (h *GrievanceHandler) BeginResolution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	officialID, _ := middleware.OfficialID(r.Context())

	ticket, err := h.service.BeginResolution(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, "RESOLUTION", err)
		return
	}
	log.Printf("[RESOLUTION] OTP issued for grievance %s by official %s", id, officialID)

	resp := beginResolutionResponse{
		GrievanceID: ticket.GrievanceID,
		ExpiresAt:   ticket.ExpiresAt,
		Message:     "OTP sent to the citizen's email",
	}
	if h.otpDebug {
		resp.DebugOTP = ticket.Code
	}
	respondWithJSON(w, http.StatusOK, resp)
}

type confirmResolutionRequest struct {
	OTP string `json:"otp"`
}

// ConfirmResolution handles POST /api/v1/grievances/{id}/resolution/confirm
func (h *GrievanceHandler) ConfirmResolution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	officialID, ok := middleware.OfficialID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Official ID not found in context")
		return
	}

	var req confirmResolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	if req.OTP == "" {
		respondWithError(w, http.StatusBadRequest, "Validation error", "otp is required")
		return
	}

	result, err := h.service.ConfirmResolution(r.Context(), id, req.OTP, officialID)
	if err != nil {
		respondWithServiceError(w, "RESOLUTION", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
