package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// CookieName is the name of the visitor session cookie
const CookieName = "storefront_session"

// GenerateSecret returns 64 hex characters (32 bytes of randomness)
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
