package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/coreledger/platform/internal/common"
)

// header is the fixed HS256 JWT-shaped header from spec §6.
type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

var fixedHeader = header{Alg: "HS256", Typ: "JWT"}

// Claims is the access-token payload of spec §6: "{sub|userId, tid|tenantId,
// roles, permissions, type:"access", iat, exp}". Both the short (sub/tid)
// and long (userId/tenantId) aliases are populated so either-named consumer
// can read the token.
type Claims struct {
	Sub         string          `json:"sub"`
	UserID      string          `json:"userId"`
	Tid         string          `json:"tid"`
	TenantID    string          `json:"tenantId"`
	Roles       []string        `json:"roles"`
	Permissions map[string]bool `json:"permissions"`
	Type        string          `json:"type"`
	IssuedAt    int64           `json:"iat"`
	ExpiresAt   int64           `json:"exp"`
}

// TokenIssuer signs and verifies HS256-style access token envelopes with a
// single HMAC secret. It deliberately does not use a JWT library: spec §6
// pins down an exact payload shape (dual sub/userId and tid/tenantId keys)
// that no example repo's JWT library produces without fighting its own
// claims type — a hand-rolled three-part envelope is less code.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds a TokenIssuer signing with secret and expiring
// issued tokens after ttl.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue signs a fresh access token for userID/tenantID with the given
// roles/permissions, returning the compact base64url(header).base64url(payload).base64url(signature) string.
func (t *TokenIssuer) Issue(userID, tenantID string, roles []string, permissions map[string]bool) (string, time.Duration, error) {
	now := time.Now().UTC()
	claims := Claims{
		Sub:         userID,
		UserID:      userID,
		Tid:         tenantID,
		TenantID:    tenantID,
		Roles:       roles,
		Permissions: permissions,
		Type:        "access",
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(t.ttl).Unix(),
	}

	token, err := t.encode(claims)
	return token, t.ttl, err
}

func (t *TokenIssuer) encode(claims Claims) (string, error) {
	headerJSON, err := json.Marshal(fixedHeader)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	headerPart := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadPart := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signature := t.sign(headerPart, payloadPart)

	return headerPart + "." + payloadPart + "." + signature, nil
}

func (t *TokenIssuer) sign(headerPart, payloadPart string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(headerPart + "." + payloadPart))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature and expiry of token and returns its Claims.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	headerPart, payloadPart, signature, ok := splitToken(token)
	if !ok {
		return nil, common.NewUnauthenticated("malformed access token")
	}

	expected := t.sign(headerPart, payloadPart)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, common.NewUnauthenticated("access token signature mismatch")
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return nil, common.NewUnauthenticated("malformed access token payload")
	}

	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return nil, common.NewUnauthenticated("malformed access token payload")
	}

	if time.Now().UTC().Unix() > claims.ExpiresAt {
		return nil, common.NewExpired("access token expired")
	}

	return &claims, nil
}

func splitToken(token string) (headerPart, payloadPart, signature string, ok bool) {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			parts = append(parts, token[start:i])
			start = i + 1
		}
	}
	parts = append(parts, token[start:])
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
