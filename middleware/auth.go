package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"surajya/models"
	"surajya/utils"
)

type contextKey string

const (
	citizenIDKey  contextKey = "citizen_id"
	officialIDKey contextKey = "official_id"
	officialLvKey contextKey = "official_level"
)

// AuthMiddleware validates JWTs and puts the caller's identity in the request context.
// Citizen and official tokens are not interchangeable: each guard rejects the other's actor_type.
type AuthMiddleware struct {
	jwtSecret []byte
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: []byte(jwtSecret)}
}

// RequireCitizen validates a citizen token and sets citizen_id in context.
func (m *AuthMiddleware) RequireCitizen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := m.authenticate(w, r)
		if !ok {
			return
		}
		if at, _ := claims["actor_type"].(string); at != utils.ActorTypeCitizen {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Citizen token required for this endpoint")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token: subject not found")
			return
		}

		ctx := context.WithValue(r.Context(), citizenIDKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOfficial validates an official token and sets official_id and level in context.
func (m *AuthMiddleware) RequireOfficial(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := m.authenticate(w, r)
		if !ok {
			return
		}
		if at, _ := claims["actor_type"].(string); at != utils.ActorTypeOfficial {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Official token required for this endpoint")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token: subject not found")
			return
		}
		// JSON numbers decode as float64
		level := 0
		if lv, ok := claims["level"].(float64); ok {
			level = int(lv)
		}

		ctx := context.WithValue(r.Context(), officialIDKey, sub)
		ctx = context.WithValue(ctx, officialLvKey, level)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate parses the bearer token. On failure it writes the 401 and returns false.
func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request) (jwt.MapClaims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Authorization header required")
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid authorization format. Expected: Bearer <token>")
		return nil, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token claims")
		return nil, false
	}
	return claims, true
}

// CitizenID returns the authenticated citizen's id, if any.
func CitizenID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(citizenIDKey).(string)
	return id, ok && id != ""
}

// OfficialID returns the authenticated official's id, if any.
func OfficialID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(officialIDKey).(string)
	return id, ok && id != ""
}

// OfficialLevel returns the tier claimed by the official's token (0 when absent).
func OfficialLevel(ctx context.Context) int {
	lv, _ := ctx.Value(officialLvKey).(int)
	return lv
}

// WithCitizen returns ctx carrying citizenID, as RequireCitizen would set it.
func WithCitizen(ctx context.Context, citizenID string) context.Context {
	return context.WithValue(ctx, citizenIDKey, citizenID)
}

// WithOfficial returns ctx carrying officialID and level, as RequireOfficial would set them.
func WithOfficial(ctx context.Context, officialID string, level int) context.Context {
	ctx = context.WithValue(ctx, officialIDKey, officialID)
	return context.WithValue(ctx, officialLvKey, level)
}

// Helper function for error responses
func respondWithError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: errorType, Message: message, Code: statusCode})
}
