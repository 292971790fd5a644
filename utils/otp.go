package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// OTPLength is the number of digits in a resolution code.
const OTPLength = 6

// GenerateOTP returns a numeric code of the given length drawn uniformly from
// the full range 0..10^length-1. Leading zeros are kept.
func GenerateOTP(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("invalid otp length %d", length)
	}
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// HashOTP hashes a code for storage. Never store plaintext codes.
func HashOTP(code string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckOTP returns nil if code matches the stored bcrypt hash.
func CheckOTP(code, hashed string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(code))
}
