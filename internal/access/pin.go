package access

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// GeneratePIN produces a random numeric PIN of the given length
func GeneratePIN(length int) (string, error) {
	if length < 4 || length > 10 {
		return "", fmt.Errorf("pin length must be between 4 and 10, got %d", length)
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate pin digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// HashPIN returns the SHA-256 hex digest used for storage and lookup.
// Raw PINs are never persisted.
func HashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// MaskPIN returns a redacted form safe for access log rows,
// keeping only the last two characters
func MaskPIN(pin string) string {
	if len(pin) <= 2 {
		return strings.Repeat("*", len(pin))
	}
	return strings.Repeat("*", len(pin)-2) + pin[len(pin)-2:]
}
