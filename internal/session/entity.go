package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// Session is the spec §3 Session entity: a device-bound refresh-token
// record. At most one valid session exists per (UserID, DeviceID).
type Session struct {
	common.BaseEntity `bson:",inline"`

	UserID                uuid.UUID `json:"user_id" bson:"user_id"`
	TenantID              uuid.UUID `json:"tenant_id" bson:"tenant_id"`
	DeviceID              string    `json:"device_id" bson:"device_id"`
	RefreshTokenHash      string    `json:"-" bson:"refresh_token_hash"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at" bson:"refresh_token_expires_at"`
	SessionExpiresAt      time.Time `json:"session_expires_at" bson:"session_expires_at"`
	LastUsedAt            time.Time `json:"last_used_at" bson:"last_used_at"`
	IsValid               bool      `json:"is_valid" bson:"is_valid"`
	RevocationReason      string    `json:"revocation_reason,omitempty" bson:"revocation_reason,omitempty"`
}

// IsExpired reports whether either the refresh or session window has
// passed as of now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.RefreshTokenExpiresAt) || now.After(s.SessionExpiresAt)
}

// Result is what Login/RefreshToken return to the caller.
type Result struct {
	AccessToken           string        `json:"access"`
	RefreshToken          string        `json:"refresh"`
	ExpiresIn             time.Duration `json:"expiresIn"`
	RefreshExpiresIn      time.Duration `json:"refreshExpiresIn"`
}

// DeviceInfo carries the client hints Login uses to derive a DeviceID when
// the caller doesn't supply one directly.
type DeviceInfo struct {
	DeviceID  string
	UserAgent string
	IPAddress string
}

func (d DeviceInfo) resolvedDeviceID() string {
	if d.DeviceID != "" {
		return d.DeviceID
	}
	return DeviceID(d.UserAgent, d.IPAddress)
}
