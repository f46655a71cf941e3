package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Refresh tokens are opaque random values. Only the sha256 hash is ever
// stored, so a leaked database cannot be replayed as live sessions.

const refreshTokenBytes = 32

// NewRefreshToken returns a fresh opaque token and the hash to persist.
func NewRefreshToken() (raw string, hash string, err error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("NewRefreshToken: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashRefreshToken(raw), nil
}

func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
