package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/coreledger/platform/internal/common"
)

// refreshSecretBytes is the entropy width of a refresh secret (spec §6:
// "base64url-encoded 64-byte random secrets").
const refreshSecretBytes = 64

// NewRefreshSecret generates a fresh high-entropy refresh token.
func NewRefreshSecret() (string, error) {
	raw := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", common.NewFatal("failed to generate refresh secret", "cause", err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashRefreshSecret returns the SHA-256 hex digest stored in place of the
// secret itself; sessions are looked up by this hash, never the raw value.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
