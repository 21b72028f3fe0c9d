package services

import (
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	otpDigits      = "0123456789"
	otpLength      = 6
	minPasswordLen = 8
)

// HashSecret bcrypt-hashes a password or one-time code
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckSecret compares secret against a bcrypt hash
func CheckSecret(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// GenerateOTP returns a random numeric one-time code
func GenerateOTP() (string, error) {
	limit := big.NewInt(int64(len(otpDigits)))
	code := make([]byte, otpLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = otpDigits[n.Int64()]
	}
	return string(code), nil
}

// NormalizeEmail lower-cases and trims an address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
