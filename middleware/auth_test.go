package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surajya/models"
	"surajya/utils"
)

var testSecret = []byte("test-secret")

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}
	if id, ok := CitizenID(r.Context()); ok {
		out["citizen_id"] = id
	}
	if id, ok := OfficialID(r.Context()); ok {
		out["official_id"] = id
		out["level"] = OfficialLevel(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func serve(t *testing.T, h http.Handler, authorization string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRequireCitizen(t *testing.T) {
	m := NewAuthMiddleware(string(testSecret))
	h := m.RequireCitizen(http.HandlerFunc(echoIdentity))

	citizen, err := utils.GenerateCitizenJWT("citizen-7", testSecret, time.Hour)
	require.NoError(t, err)
	official, err := utils.GenerateOfficialJWT("official-1", 2, testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateCitizenJWT("citizen-7", testSecret, -time.Minute)
	require.NoError(t, err)
	foreign, err := utils.GenerateCitizenJWT("citizen-7", []byte("other-secret"), time.Hour)
	require.NoError(t, err)

	rec, body := serve(t, h, "Bearer "+citizen)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "citizen-7", body["citizen_id"])

	cases := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Token " + citizen,
		"official token":  "Bearer " + official,
		"expired token":   "Bearer " + expired,
		"wrong signature": "Bearer " + foreign,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, body := serve(t, h, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Unauthorized", body["error"])
			assert.EqualValues(t, http.StatusUnauthorized, body["code"])
		})
	}
}

func TestRequireOfficial(t *testing.T) {
	m := NewAuthMiddleware(string(testSecret))
	h := m.RequireOfficial(http.HandlerFunc(echoIdentity))

	official, err := utils.GenerateOfficialJWT("official-1", 2, testSecret, time.Hour)
	require.NoError(t, err)
	citizen, err := utils.GenerateCitizenJWT("citizen-7", testSecret, time.Hour)
	require.NoError(t, err)

	rec, body := serve(t, h, "Bearer "+official)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "official-1", body["official_id"])
	assert.EqualValues(t, 2, body["level"])

	rec, _ = serve(t, h, "Bearer "+citizen)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireOfficial_RejectsNoneAlgorithm(t *testing.T) {
	m := NewAuthMiddleware(string(testSecret))
	h := m.RequireOfficial(http.HandlerFunc(echoIdentity))

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":        "official-1",
		"actor_type": utils.ActorTypeOfficial,
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec, _ := serve(t, h, "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	h := RequireAdminToken("s3cret")(ok)
	rec, body := serve(t, h, "Bearer s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	for _, header := range []string{"", "Bearer wrong", "s3cret"} {
		rec, body := serve(t, h, header)
		assert.Equal(t, http.StatusForbidden, rec.Code, header)
		assert.Equal(t, "Forbidden", body["error"])
	}

	disabled := RequireAdminToken("")(ok)
	rec, body = serve(t, disabled, "Bearer ")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin access not configured", body["message"])
}

func TestContextHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := CitizenID(req.Context())
	assert.False(t, ok)

	ctx := WithOfficial(WithCitizen(req.Context(), "c-1"), "o-1", 3)
	id, ok := CitizenID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "c-1", id)
	id, ok = OfficialID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "o-1", id)
	assert.Equal(t, 3, OfficialLevel(ctx))

	var resp models.ErrorResponse
	rec := httptest.NewRecorder()
	respondWithError(rec, http.StatusTeapot, "Teapot", "short and stout")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrorResponse{Error: "Teapot", Message: "short and stout", Code: http.StatusTeapot}, resp)
}
