package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"loginus/internal/code/domain"
)

const numericDigits = 6

// generateValue returns a fresh plaintext code value for the given format.
// Uses crypto/rand for randomness.
func generateValue(format domain.Format) (string, error) {
	switch format {
	case domain.FormatNumeric:
		b := make([]byte, numericDigits)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		s := make([]byte, numericDigits)
		for i := 0; i < numericDigits; i++ {
			s[i] = '0' + (b[i] % 10)
		}
		return string(s), nil
	case domain.FormatOpaque:
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		return hex.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("unknown code format %d", format)
	}
}

// HashCode returns a SHA-256 hash of the code value, hex-encoded.
func HashCode(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

// codeEqual performs constant-time comparison of the submitted value's hash
// with the stored hash.
func codeEqual(submitted, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(submitted)), []byte(storedHash)) == 1
}
