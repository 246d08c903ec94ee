// Package user holds the User entity (spec §3 Data Model) and the
// lookup port the Session/Token Engine (C4) authenticates against.
package user

import (
	"context"
	"strings"
	"time"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

// Status is the user account lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusLocked    Status = "locked"
	StatusDeleted   Status = "deleted"
)

// IdentifierKind classifies what a login identifier looks like.
type IdentifierKind string

const (
	IdentifierEmail    IdentifierKind = "email"
	IdentifierPhone    IdentifierKind = "phone"
	IdentifierUsername IdentifierKind = "username"
)

// Role is a single role grant, optionally time-bounded.
type Role struct {
	Role      string     `json:"role" bson:"role"`
	Active    bool       `json:"active" bson:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
}

// User is the spec's User entity.
type User struct {
	common.BaseEntity `bson:",inline"`

	Email            string          `json:"email,omitempty" bson:"email,omitempty"`
	Phone            string          `json:"phone,omitempty" bson:"phone,omitempty"`
	Username         string          `json:"username,omitempty" bson:"username,omitempty"`
	PasswordHash     string          `json:"-" bson:"password_hash"`
	PasswordScheme   string          `json:"-" bson:"password_scheme"`
	Roles            []Role          `json:"roles" bson:"roles"`
	Permissions      map[string]bool `json:"permissions" bson:"permissions"`
	Status           Status          `json:"status" bson:"status"`
	EmailVerified    bool            `json:"email_verified" bson:"email_verified"`
	PhoneVerified    bool            `json:"phone_verified" bson:"phone_verified"`
	TwoFactorEnabled bool            `json:"two_factor_enabled" bson:"two_factor_enabled"`
	KYCStatus        string          `json:"kyc_status" bson:"kyc_status"`
}

// ActiveRoles returns the role names currently active (Active=true and not
// expired).
func (u *User) ActiveRoles() []string {
	now := time.Now().UTC()
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if !r.Active {
			continue
		}
		if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
			continue
		}
		roles = append(roles, r.Role)
	}
	return roles
}

// PermissionNames returns the permissions granted true.
func (u *User) PermissionNames() []string {
	perms := make([]string, 0, len(u.Permissions))
	for name, granted := range u.Permissions {
		if granted {
			perms = append(perms, name)
		}
	}
	return perms
}

// ClassifyIdentifier guesses the kind of a raw login identifier.
func ClassifyIdentifier(identifier string) IdentifierKind {
	if strings.Contains(identifier, "@") {
		return IdentifierEmail
	}
	if strings.HasPrefix(identifier, "+") || isAllDigits(identifier) {
		return IdentifierPhone
	}
	return IdentifierUsername
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeIdentifier lowercases/trims an identifier for lookup, per kind.
func NormalizeIdentifier(identifier string, kind IdentifierKind) string {
	trimmed := strings.TrimSpace(identifier)
	switch kind {
	case IdentifierEmail, IdentifierUsername:
		return strings.ToLower(trimmed)
	default:
		return trimmed
	}
}

// Repository is the user-lookup port the Session/Token Engine depends on.
type Repository interface {
	FindByIdentifier(ctx context.Context, tenantID string, kind IdentifierKind, identifier string) (*User, error)
	FindById(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, u *User, sess repository.Session) (*User, error)
}
