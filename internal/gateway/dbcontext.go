package gateway

import (
	"context"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/config"
)

// DatabaseContext is the resolved connection context for a request, per
// spec §4.11's "per-service database strategy resolves a database context
// from (service, brand?, tenantId?) using C1".
type DatabaseContext struct {
	URI      string
	Database string
}

// DatabaseResolver reads the `database.uri`/`database.name` keys out of the
// Config Store (C1) scoped to (service, brand, tenantId), falling back to
// the service-wide default (empty brand/tenantId) when no tenant-specific
// override exists.
type DatabaseResolver struct {
	store *config.Store
}

func NewDatabaseResolver(store *config.Store) *DatabaseResolver {
	return &DatabaseResolver{store: store}
}

func (r *DatabaseResolver) Resolve(ctx context.Context, service, brand, tenantID string) (DatabaseContext, error) {
	uri, err := r.lookup(ctx, service, brand, tenantID, "database.uri")
	if err != nil {
		return DatabaseContext{}, err
	}
	name, err := r.lookup(ctx, service, brand, tenantID, "database.name")
	if err != nil {
		return DatabaseContext{}, err
	}
	if uri == "" {
		return DatabaseContext{}, common.NewNotFound("no database context configured for service", "service", service)
	}
	return DatabaseContext{URI: uri, Database: name}, nil
}

func (r *DatabaseResolver) lookup(ctx context.Context, service, brand, tenantID, key string) (string, error) {
	v, found, err := r.store.Get(ctx, service, brand, tenantID, key, common.HasCapability(ctx, "system"))
	if err != nil {
		return "", err
	}
	if !found || v.Kind != config.KindString {
		return "", nil
	}
	return v.Str, nil
}
