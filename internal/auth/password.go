package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. These are fixed so that hashes written by one
// deployment remain verifiable by another; changing them invalidates
// every stored credential.
const (
	hashIterations = 1000
	hashKeyLength  = 64
	saltBytes      = 16
)

// HashPassword derives a hex-encoded key from a plaintext password and a
// per-user salt. It is deterministic: the same (password, salt) pair always
// yields the same output.
func HashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), hashIterations, hashKeyLength, sha512.New)
	return hex.EncodeToString(key)
}

// GenerateSalt returns a fresh cryptographically random hex salt.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// VerifyPassword reports whether the plaintext password, hashed with the
// stored salt, matches the stored hash. The comparison is constant-time.
func VerifyPassword(password, salt, storedHash string) bool {
	derived := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(storedHash)) == 1
}
