package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// argon2id parameters following OWASP recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// hashPassword generates an argon2id hash with a random salt.
// Format: hex(salt) + "$" + hex(hash)
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// verifyPassword checks a password against a stored hash. Accounts imported
// from the previous backend carry bcrypt hashes ("$2a$", "$2b$"); those verify
// through bcrypt and report rehash=true so the caller can upgrade them.
func verifyPassword(password, encoded string) (ok, rehash bool) {
	if strings.HasPrefix(encoded, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil, true
	}

	saltHex, hashHex, found := strings.Cut(encoded, "$")
	if !found || saltHex == "" || hashHex == "" {
		return false, false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, false
	}

	expected, err := hex.DecodeString(hashHex)
	if err != nil {
		return false, false
	}

	computed := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(computed, expected) == 1, false
}
