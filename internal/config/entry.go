package config

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// Entry is the persisted ConfigEntry of spec §3: a (service, brand?,
// tenantId?, key) tuple with an opaque value, a sensitive-path list, and a
// strictly monotonic version counter.
type Entry struct {
	common.BaseEntity `bson:",inline"`

	Service        string   `json:"service" bson:"service"`
	Brand          string   `json:"brand,omitempty" bson:"brand,omitempty"`
	TenantID       string   `json:"tenant_id,omitempty" bson:"tenant_id,omitempty"`
	Key            string   `json:"key" bson:"key"`
	Value          Value    `json:"value" bson:"value"`
	SensitivePaths []string `json:"sensitive_paths,omitempty" bson:"sensitive_paths,omitempty"`
	Description    string   `json:"description,omitempty" bson:"description,omitempty"`
	Version        int64    `json:"version" bson:"version"`
	UpdatedBy      string   `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
}

// NewEntry stamps a fresh Entry at version 1.
func NewEntry(service, brand, tenantID, key string, value Value) *Entry {
	now := time.Now().UTC()
	return &Entry{
		BaseEntity: common.BaseEntity{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Service:  service,
		Brand:    brand,
		TenantID: tenantID,
		Key:      key,
		Value:    value,
		Version:  1,
	}
}

// tuple identifies the resolution key (service, brand, tenantId) at one of
// the four precedence levels, most to least specific.
type tuple struct {
	service, brand, tenantID string
}

func resolutionOrder(service, brand, tenantID string) []tuple {
	order := []tuple{}
	if brand != "" && tenantID != "" {
		order = append(order, tuple{service, brand, tenantID})
	}
	if brand != "" {
		order = append(order, tuple{service, brand, ""})
	}
	if tenantID != "" {
		order = append(order, tuple{service, "", tenantID})
	}
	order = append(order, tuple{service, "", ""})
	return order
}

func (t tuple) cacheKey(key string) string {
	return "config:" + t.service + ":" + t.brand + ":" + t.tenantID + ":" + key
}
