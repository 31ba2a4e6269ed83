package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// generateOTP returns a six-digit code in [100000, 999999).
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}

// sha256Hex is used for OTPs, refresh tokens and API keys.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hashMatches(plain, storedHex string) bool {
	return subtle.ConstantTimeCompare([]byte(sha256Hex(plain)), []byte(storedHex)) == 1
}
