// Package session implements the Session/Token Engine (spec §4.4,
// component C4): password-authenticated login, device-scoped session
// reuse/rotation, refresh, logout and periodic cleanup.
package session

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/crypto"
	"github.com/coreledger/platform/internal/repository"
	"github.com/coreledger/platform/internal/user"
)

// invalidatedRetention is how long an invalidated session is kept before
// CleanupExpiredSessions reclaims it (spec §4.4).
const invalidatedRetention = 30 * 24 * time.Hour

// TwoFactorVerifier validates a supplied 2FA code for a user. The concrete
// implementation lives in internal/otp; Engine depends only on this port to
// avoid a package cycle.
type TwoFactorVerifier interface {
	Verify(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}

// PasswordSchemeResolver resolves which crypto.Scheme is authoritative for
// a tenant. The resolver internal/ioc wires returns crypto.SchemeArgon2id
// for every tenant; it does not consult the Config Store (C1).
type PasswordSchemeResolver func(ctx context.Context, tenantID string) crypto.Scheme

// Engine implements Login/RefreshToken/Logout/LogoutAll/CleanupExpiredSessions.
type Engine struct {
	sessions repository.Repository[Session]
	users    user.Repository
	issuer   *TokenIssuer

	resolveScheme PasswordSchemeResolver
	twoFactor     TwoFactorVerifier

	refreshTTL        time.Duration
	sessionTTL        time.Duration
	maxActiveSessions int
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithTwoFactorVerifier wires 2FA code validation into Login.
func WithTwoFactorVerifier(v TwoFactorVerifier) Option {
	return func(e *Engine) { e.twoFactor = v }
}

// WithMaxActiveSessions sets the soft, cross-device session cap (0 disables it).
func WithMaxActiveSessions(max int) Option {
	return func(e *Engine) { e.maxActiveSessions = max }
}

// NewEngine builds a session Engine. refreshTTL/sessionTTL bound new
// sessions' expiries; resolveScheme picks the password hashing algorithm a
// given tenant's users were hashed under.
func NewEngine(
	sessions repository.Repository[Session],
	users user.Repository,
	issuer *TokenIssuer,
	resolveScheme PasswordSchemeResolver,
	refreshTTL, sessionTTL time.Duration,
	opts ...Option,
) *Engine {
	e := &Engine{
		sessions:      sessions,
		users:         users,
		issuer:        issuer,
		resolveScheme: resolveScheme,
		refreshTTL:    refreshTTL,
		sessionTTL:    sessionTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Login authenticates identifier/password for tenantID and issues a fresh
// token pair, reusing and rotating the existing (userID, deviceID) session
// if one is valid, per spec §4.4.
func (e *Engine) Login(ctx context.Context, identifier, password, tenantID string, device DeviceInfo, twoFactorCode string) (*Result, error) {
	kind := user.ClassifyIdentifier(identifier)
	normalized := user.NormalizeIdentifier(identifier, kind)

	u, err := e.users.FindByIdentifier(ctx, tenantID, kind, normalized)
	if err != nil || u == nil {
		return nil, common.NewUnauthenticated("invalid credentials", "reason", "InvalidCredentials")
	}

	scheme := e.resolveScheme(ctx, tenantID)
	hasher := crypto.HasherFor(scheme)
	if err := hasher.ComparePassword(ctx, u.PasswordHash, password); err != nil {
		return nil, common.NewUnauthenticated("invalid credentials", "reason", "InvalidCredentials")
	}

	if u.Status == user.StatusSuspended || u.Status == user.StatusLocked {
		return nil, common.NewUnauthenticated("invalid credentials", "reason", "InvalidCredentials")
	}

	if u.TwoFactorEnabled {
		if twoFactorCode == "" {
			return nil, common.NewUnauthenticated("two-factor code required", "reason", "TwoFactorRequired")
		}
		if e.twoFactor == nil {
			return nil, common.NewFatal("two-factor enabled but no verifier configured")
		}
		ok, err := e.twoFactor.Verify(ctx, u.ID, twoFactorCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.NewUnauthenticated("invalid two-factor code", "reason", "TwoFactorRequired")
		}
	}

	if u.Status == user.StatusPending {
		u.Status = user.StatusActive
		if _, err := e.users.Update(ctx, u, nil); err != nil {
			return nil, err
		}
	}

	deviceID := device.resolvedDeviceID()
	now := time.Now().UTC()

	refreshSecret, err := NewRefreshSecret()
	if err != nil {
		return nil, err
	}
	refreshHash := HashRefreshSecret(refreshSecret)

	existing, err := e.findValidSession(ctx, u.ID, deviceID)
	if err != nil {
		return nil, err
	}

	var sess *Session
	if existing != nil {
		existing.RefreshTokenHash = refreshHash
		existing.RefreshTokenExpiresAt = now.Add(e.refreshTTL)
		existing.SessionExpiresAt = now.Add(e.sessionTTL)
		existing.LastUsedAt = now
		sess, err = e.sessions.Update(ctx, existing, nil)
	} else {
		fresh := &Session{
			BaseEntity:            common.NewEntity(common.ResourceOwner{TenantID: parseTenantID(tenantID), UserID: u.ID}),
			UserID:                u.ID,
			TenantID:              parseTenantID(tenantID),
			DeviceID:              deviceID,
			RefreshTokenHash:      refreshHash,
			RefreshTokenExpiresAt: now.Add(e.refreshTTL),
			SessionExpiresAt:      now.Add(e.sessionTTL),
			LastUsedAt:            now,
			IsValid:               true,
		}
		sess, err = e.sessions.Create(ctx, fresh, nil)
	}
	if err != nil {
		return nil, err
	}

	if e.maxActiveSessions > 0 {
		if err := e.enforceGlobalCap(ctx, u.ID, sess.ID); err != nil {
			return nil, err
		}
	}

	access, expiresIn, err := e.issuer.Issue(u.ID.String(), tenantID, u.ActiveRoles(), u.Permissions)
	if err != nil {
		return nil, err
	}

	return &Result{
		AccessToken:      access,
		RefreshToken:     refreshSecret,
		ExpiresIn:        expiresIn,
		RefreshExpiresIn: e.refreshTTL,
	}, nil
}

func (e *Engine) findValidSession(ctx context.Context, userID uuid.UUID, deviceID string) (*Session, error) {
	sess, err := e.sessions.FindOne(ctx, repository.Query{Filters: []repository.Filter{
		{Field: "user_id", Operator: repository.OpEquals, Value: userID.String()},
		{Field: "device_id", Operator: repository.OpEquals, Value: deviceID},
		{Field: "is_valid", Operator: repository.OpEquals, Value: true},
	}}, nil)
	if err != nil {
		if common.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// enforceGlobalCap invalidates the user's oldest-by-lastUsedAt valid
// sessions beyond maxActiveSessions, excluding keepID (the session Login
// just issued/rotated).
func (e *Engine) enforceGlobalCap(ctx context.Context, userID, keepID uuid.UUID) error {
	all, err := e.sessions.FindMany(ctx, repository.Query{
		Filters: []repository.Filter{
			{Field: "user_id", Operator: repository.OpEquals, Value: userID.String()},
			{Field: "is_valid", Operator: repository.OpEquals, Value: true},
		},
		Take: 1000,
	}, nil)
	if err != nil {
		return err
	}
	if len(all) <= e.maxActiveSessions {
		return nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].LastUsedAt.Before(all[j].LastUsedAt) })

	excess := len(all) - e.maxActiveSessions
	for _, s := range all {
		if excess <= 0 {
			break
		}
		if s.ID == keepID {
			continue
		}
		s.IsValid = false
		s.RevocationReason = "max_active_sessions_exceeded"
		if _, err := e.sessions.Update(ctx, &s, nil); err != nil {
			return err
		}
		excess--
	}
	return nil
}

// RefreshToken exchanges a valid, unexpired refresh secret for a fresh
// access token, without rotating the refresh secret itself.
func (e *Engine) RefreshToken(ctx context.Context, refreshSecret, tenantID string) (*Result, error) {
	hash := HashRefreshSecret(refreshSecret)

	sess, err := e.sessions.FindOne(ctx, repository.Query{Filters: []repository.Filter{
		{Field: "refresh_token_hash", Operator: repository.OpEquals, Value: hash},
		{Field: "is_valid", Operator: repository.OpEquals, Value: true},
	}}, nil)
	if err != nil {
		if common.IsNotFound(err) {
			return nil, common.NewUnauthenticated("invalid refresh token", "reason", "InvalidRefresh")
		}
		return nil, err
	}

	now := time.Now().UTC()
	if sess.IsExpired(now) {
		reason := "RefreshExpired"
		if now.After(sess.SessionExpiresAt) {
			reason = "SessionExpired"
		}
		sess.IsValid = false
		sess.RevocationReason = reason
		_, _ = e.sessions.Update(ctx, sess, nil)
		return nil, common.NewExpired("refresh token expired", "reason", reason)
	}

	u, err := e.users.FindById(ctx, sess.UserID.String())
	if err != nil {
		return nil, err
	}

	sess.LastUsedAt = now
	if _, err := e.sessions.Update(ctx, sess, nil); err != nil {
		return nil, err
	}

	access, expiresIn, err := e.issuer.Issue(u.ID.String(), tenantID, u.ActiveRoles(), u.Permissions)
	if err != nil {
		return nil, err
	}

	return &Result{
		AccessToken:      access,
		RefreshToken:     refreshSecret,
		ExpiresIn:        expiresIn,
		RefreshExpiresIn: time.Until(sess.RefreshTokenExpiresAt),
	}, nil
}

// Logout invalidates the single session identified by refreshSecret.
func (e *Engine) Logout(ctx context.Context, userID uuid.UUID, refreshSecret string) error {
	hash := HashRefreshSecret(refreshSecret)
	sess, err := e.sessions.FindOne(ctx, repository.Query{Filters: []repository.Filter{
		{Field: "user_id", Operator: repository.OpEquals, Value: userID.String()},
		{Field: "refresh_token_hash", Operator: repository.OpEquals, Value: hash},
	}}, nil)
	if err != nil {
		if common.IsNotFound(err) {
			return nil
		}
		return err
	}
	sess.IsValid = false
	sess.RevocationReason = "logout"
	_, err = e.sessions.Update(ctx, sess, nil)
	return err
}

// LogoutAll invalidates every session the user holds in tenantID.
func (e *Engine) LogoutAll(ctx context.Context, userID uuid.UUID, tenantID string) error {
	sessions, err := e.sessions.FindMany(ctx, repository.Query{
		Filters: []repository.Filter{
			{Field: "user_id", Operator: repository.OpEquals, Value: userID.String()},
			{Field: "is_valid", Operator: repository.OpEquals, Value: true},
		},
		Take: 1000,
	}, nil)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		s.IsValid = false
		s.RevocationReason = "logout_all"
		if _, err := e.sessions.Update(ctx, &s, nil); err != nil {
			return err
		}
	}
	return nil
}

// CleanupExpiredSessions deletes sessions whose session expiry has passed,
// plus invalidated sessions older than 30 days. A session whose refresh
// expiry alone has passed is not deleted here. Returns the count removed.
func (e *Engine) CleanupExpiredSessions(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expired, err := e.sessions.FindMany(ctx, repository.Query{
		Filters: []repository.Filter{
			{Field: "session_expires_at", Operator: repository.OpLessThan, Value: now},
		},
		Take: 5000,
	}, nil)
	if err != nil {
		return 0, err
	}

	stale, err := e.sessions.FindMany(ctx, repository.Query{
		Filters: []repository.Filter{
			{Field: "is_valid", Operator: repository.OpEquals, Value: false},
			{Field: "created_at", Operator: repository.OpLessThan, Value: now.Add(-invalidatedRetention)},
		},
		Take: 5000,
	}, nil)
	if err != nil {
		return 0, err
	}

	seen := map[uuid.UUID]struct{}{}
	count := 0
	for _, s := range append(expired, stale...) {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		if err := e.sessions.Delete(ctx, s.ID.String(), nil); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func parseTenantID(tenantID string) uuid.UUID {
	id, err := uuid.Parse(tenantID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
