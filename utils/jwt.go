package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Actor types carried in the "actor_type" claim.
const (
	ActorTypeCitizen  = "citizen"
	ActorTypeOfficial = "official"
)

// GenerateCitizenJWT issues a citizen-scoped token; official endpoints must reject it.
func GenerateCitizenJWT(citizenID string, secret []byte, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        citizenID,
		"actor_type": ActorTypeCitizen,
		"exp":        now.Add(expiresIn).Unix(),
		"iat":        now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// GenerateOfficialJWT issues an official-scoped token carrying the official's tier.
func GenerateOfficialJWT(officialID string, level int, secret []byte, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        officialID,
		"actor_type": ActorTypeOfficial,
		"level":      level,
		"exp":        now.Add(expiresIn).Unix(),
		"iat":        now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
