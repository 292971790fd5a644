package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateOTP(t *testing.T) {
	seenLeadingZero := false
	for i := 0; i < 2000; i++ {
		code, err := GenerateOTP(OTPLength)
		require.NoError(t, err)
		require.Len(t, code, OTPLength)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "non-digit in %q", code)
		}
		if code[0] == '0' {
			seenLeadingZero = true
		}
	}
	// P(no leading zero in 2000 draws) = 0.9^2000, effectively zero.
	assert.True(t, seenLeadingZero, "leading digit never zero; range is not uniform")
}

func TestGenerateOTP_InvalidLength(t *testing.T) {
	_, err := GenerateOTP(0)
	assert.Error(t, err)
}

func TestHashAndCheckOTP(t *testing.T) {
	hashed, err := HashOTP("042917", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotContains(t, hashed, "042917")

	assert.NoError(t, CheckOTP("042917", hashed))
	assert.Error(t, CheckOTP("042918", hashed))
}

func TestHashFreeText(t *testing.T) {
	a := HashFreeText("Ward 12, near the water tank")
	b := HashFreeText("  Ward 12, near the water tank \n")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashFreeText("Ward 13"))
	assert.False(t, strings.Contains(a, "Ward"))
}

func TestGenerateOfficialJWT_Claims(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := GenerateOfficialJWT("off-7", 2, secret, time.Hour)
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return secret, nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "off-7", claims["sub"])
	assert.Equal(t, ActorTypeOfficial, claims["actor_type"])
	assert.Equal(t, float64(2), claims["level"])
}
