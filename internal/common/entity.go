// Package common holds the cross-cutting vocabulary shared by every
// component: entity identity, tenancy/resource ownership, context keys and
// the typed error kinds from spec §7.
package common

import (
	"time"

	"github.com/google/uuid"
)

// ResourceOwner scopes an entity to a tenant and, optionally, a single user
// within that tenant. Every persisted entity in this platform carries one.
type ResourceOwner struct {
	TenantID uuid.UUID `json:"tenant_id" bson:"tenant_id"`
	UserID   uuid.UUID `json:"user_id,omitempty" bson:"user_id,omitempty"`
}

// IsMissingTenant reports whether the owner lacks the mandatory tenant
// boundary; every repository write must reject entities in this state.
func (ro ResourceOwner) IsMissingTenant() bool {
	return ro.TenantID == uuid.Nil
}

// IsUserScoped reports whether the owner is pinned to a single end user
// rather than being a tenant-wide (system/admin) owner.
func (ro ResourceOwner) IsUserScoped() bool {
	return ro.UserID != uuid.Nil
}

// BaseEntity is embedded by every persisted entity to supply identity,
// tenancy and timestamps. Mirrors the teacher's BaseEntity shape.
type BaseEntity struct {
	ID            uuid.UUID     `json:"id" bson:"_id"`
	ResourceOwner ResourceOwner `json:"resource_owner" bson:"resource_owner"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}

// Entity is the minimal contract the generic repository (C2) requires.
type Entity interface {
	GetID() uuid.UUID
}

func (b BaseEntity) GetID() uuid.UUID {
	return b.ID
}

// NewEntity stamps a fresh BaseEntity for the given owner.
func NewEntity(owner ResourceOwner) BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:            uuid.New(),
		ResourceOwner: owner,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
