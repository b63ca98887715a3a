// Package crypto holds small helpers around crypto/rand.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomToken returns n bytes from crypto/rand as unpadded URL-safe base64.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("crypto: token length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto: reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
