package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surajya/ledger"
	"surajya/models"
	"surajya/notification"
	"surajya/repository"
	"surajya/service"
)

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
	}{
		{"validation", &service.ValidationError{Field: "email", Message: "is required"}, http.StatusBadRequest, "Validation error"},
		{"not found", fmt.Errorf("failed to load: %w", repository.ErrNotFound), http.StatusNotFound, "Not found"},
		{"already resolved", service.ErrAlreadyResolved, http.StatusConflict, "Already resolved"},
		{"concurrent", fmt.Errorf("%w: %w", service.ErrConcurrentModification, repository.ErrConflict), http.StatusConflict, "Conflict"},
		{"no challenge", service.ErrNoChallenge, http.StatusConflict, "No challenge"},
		{"resolution pending", fmt.Errorf("%w: entry e1: disk full", service.ErrResolutionPending), http.StatusConflict, "Reconciliation pending"},
		{"expired", service.ErrOtpExpired, http.StatusGone, "OTP expired"},
		{"mismatch", service.ErrOtpMismatch, http.StatusBadRequest, "Invalid OTP"},
		{"delivery", &notification.DeliveryError{Recipient: "a@b.c", GrievanceID: "g", Err: errors.New("smtp down")}, http.StatusBadGateway, "Delivery failed"},
		{"ledger reverted", fmt.Errorf("failed to anchor: %w", &ledger.Error{Op: ledger.OpCreate, Kind: ledger.KindReverted}), http.StatusBadGateway, "Ledger error"},
		{"ledger out of resources", &ledger.Error{Op: ledger.OpResolve, Kind: ledger.KindOutOfResources}, http.StatusBadGateway, "Ledger error"},
		{"ledger unavailable", &ledger.Error{Op: ledger.OpResolve, Kind: ledger.KindUnavailable}, http.StatusServiceUnavailable, "Ledger unavailable"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithServiceError(rec, "TEST", tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestRespondWithServiceError_ReconciliationCarriesLedgerID(t *testing.T) {
	err := &service.ReconciliationError{
		Kind:        models.ReconcileResolve,
		LedgerID:    "ledger-42",
		GrievanceID: "g-1",
		EntryID:     "rec-7",
		Err:         errors.New("store down"),
	}

	rec := httptest.NewRecorder()
	respondWithServiceError(rec, "TEST", err)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Reconciliation required", body["error"])
	assert.Equal(t, "ledger-42", body["ledger_id"])
	assert.Equal(t, "g-1", body["grievance_id"])
	assert.Equal(t, "rec-7", body["reconciliation_id"])
	assert.EqualValues(t, http.StatusInternalServerError, body["code"])
}
