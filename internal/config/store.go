package config

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coreledger/platform/internal/cache"
	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

// defaultTTL is the in-process cache lifetime for resolved config reads
// (spec §4.1: "a 5 minute in-process cache keyed by the resolved tuple").
const defaultTTL = 5 * time.Minute

// SetMeta carries the write-time attribution and sensitivity declaration
// for Set.
type SetMeta struct {
	UpdatedBy      string
	Description    string
	SensitivePaths []string
}

// Store is the Config Store of spec §4.1: a repository-backed table of
// (service, brand?, tenantId?, key) -> Value entries, resolved most- to
// least-specific, with a TTL read cache and capability-gated sensitive-path
// filtering.
type Store struct {
	repo  repository.Repository[Entry]
	cache cache.Cache
	ttl   time.Duration
}

// New builds a Store over repo, using c as its resolved-value cache.
func New(repo repository.Repository[Entry], c cache.Cache) *Store {
	return &Store{repo: repo, cache: c, ttl: defaultTTL}
}

// WithTTL overrides the default 5 minute cache lifetime (tests use this to
// force near-immediate expiry).
func (s *Store) WithTTL(ttl time.Duration) *Store {
	s.ttl = ttl
	return s
}

// Get resolves key for service, falling through (brand,tenant) ->
// (brand,"") -> ("",tenant) -> ("","") in that order, returning the first
// entry found. includeSensitive must be true and the caller must hold the
// "admin" or "system" capability (spec §4.1) for sensitive paths to survive
// in the returned Value; otherwise they are stripped.
func (s *Store) Get(ctx context.Context, service, brand, tenantID, key string, includeSensitive bool) (Value, bool, error) {
	for _, t := range resolutionOrder(service, brand, tenantID) {
		entry, ok, err := s.lookup(ctx, t, key)
		if err != nil {
			return Value{}, false, err
		}
		if !ok {
			continue
		}
		return s.filtered(ctx, entry, includeSensitive), true, nil
	}
	return Null(), false, nil
}

// GetAll resolves every key registered for service at the given
// brand/tenant, merging least- to most-specific so a brand override shadows
// the service default per key rather than replacing the whole set.
func (s *Store) GetAll(ctx context.Context, service, brand, tenantID string, includeSensitive bool) (Value, error) {
	entries, err := s.repo.FindMany(ctx, repository.Query{
		Filters: []repository.Filter{{Field: "service", Operator: repository.OpEquals, Value: service}},
		Take:    1000,
	}, nil)
	if err != nil {
		return Value{}, err
	}

	byKey := map[string]Entry{}
	order := []tuple{
		{service, "", ""},
		{service, "", tenantID},
		{service, brand, ""},
		{service, brand, tenantID},
	}
	for _, t := range order {
		if t.brand != brand && t.brand != "" {
			continue
		}
		if t.tenantID != tenantID && t.tenantID != "" {
			continue
		}
		for _, e := range entries {
			if e.Brand == t.brand && e.TenantID == t.tenantID {
				byKey[e.Key] = e
			}
		}
	}

	out := map[string]Value{}
	for k, e := range byKey {
		out[k] = s.filtered(ctx, e, includeSensitive)
	}
	return Map(out), nil
}

func (s *Store) lookup(ctx context.Context, t tuple, key string) (Entry, bool, error) {
	cacheKey := t.cacheKey(key)
	if raw, hit, err := s.cache.Get(ctx, cacheKey); err == nil && hit {
		var e Entry
		if err := json.Unmarshal(raw, &e); err == nil {
			return e, true, nil
		}
	}

	filters := []repository.Filter{
		{Field: "service", Operator: repository.OpEquals, Value: t.service},
		{Field: "key", Operator: repository.OpEquals, Value: key},
		{Field: "brand", Operator: repository.OpEquals, Value: t.brand},
		{Field: "tenant_id", Operator: repository.OpEquals, Value: t.tenantID},
	}
	entry, err := s.repo.FindOne(ctx, repository.Query{Filters: filters}, nil)
	if err != nil {
		if common.IsNotFound(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}

	if raw, err := json.Marshal(entry); err == nil {
		_ = s.cache.Set(ctx, cacheKey, raw, s.ttl, "config:"+t.service)
	}
	return *entry, true, nil
}

func (s *Store) filtered(ctx context.Context, e Entry, includeSensitive bool) Value {
	if len(e.SensitivePaths) == 0 {
		return e.Value
	}
	if includeSensitive && (common.HasCapability(ctx, "admin") || common.HasCapability(ctx, "system")) {
		return e.Value
	}
	return e.Value.Without(e.SensitivePaths)
}

// Set writes key for (service, brand, tenantId), bumping Version and
// invalidating the cached entry and every GetAll snapshot for the service.
// A non-zero expectedVersion enforces optimistic concurrency: Set fails with
// common.KindConflict if the stored version has moved on.
func (s *Store) Set(ctx context.Context, service, brand, tenantID, key string, value Value, meta SetMeta, expectedVersion int64) (*Entry, error) {
	for _, p := range meta.SensitivePaths {
		if !value.HasPath(Path(p)) {
			return nil, common.NewInvalidInput("sensitivePaths entry does not resolve in value", "path", p)
		}
	}

	t := tuple{service, brand, tenantID}
	filters := []repository.Filter{
		{Field: "service", Operator: repository.OpEquals, Value: service},
		{Field: "key", Operator: repository.OpEquals, Value: key},
		{Field: "brand", Operator: repository.OpEquals, Value: brand},
		{Field: "tenant_id", Operator: repository.OpEquals, Value: tenantID},
	}
	existing, err := s.repo.FindOne(ctx, repository.Query{Filters: filters}, nil)
	if err != nil && !common.IsNotFound(err) {
		return nil, err
	}

	if existing == nil {
		entry := NewEntry(service, brand, tenantID, key, value)
		entry.SensitivePaths = meta.SensitivePaths
		entry.Description = meta.Description
		entry.UpdatedBy = meta.UpdatedBy
		created, err := s.repo.Create(ctx, entry, nil)
		if err != nil {
			return nil, err
		}
		s.invalidate(ctx, t, key, service)
		return created, nil
	}

	if expectedVersion != 0 && existing.Version != expectedVersion {
		return nil, common.NewConflict("config entry has been modified concurrently",
			"service", service, "key", key, "expected", expectedVersion, "actual", existing.Version)
	}

	existing.Value = value
	if meta.SensitivePaths != nil {
		existing.SensitivePaths = meta.SensitivePaths
	}
	if meta.Description != "" {
		existing.Description = meta.Description
	}
	existing.UpdatedBy = meta.UpdatedBy
	existing.Version++
	existing.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, existing, nil)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, t, key, service)
	return updated, nil
}

// Delete removes the entry at the exact (service, brand, tenantId, key)
// tuple and invalidates its cache entry.
func (s *Store) Delete(ctx context.Context, service, brand, tenantID, key string) error {
	t := tuple{service, brand, tenantID}
	filters := []repository.Filter{
		{Field: "service", Operator: repository.OpEquals, Value: service},
		{Field: "key", Operator: repository.OpEquals, Value: key},
		{Field: "brand", Operator: repository.OpEquals, Value: brand},
		{Field: "tenant_id", Operator: repository.OpEquals, Value: tenantID},
	}
	entry, err := s.repo.FindOne(ctx, repository.Query{Filters: filters}, nil)
	if err != nil {
		if common.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err := s.repo.Delete(ctx, entry.GetID().String(), nil); err != nil {
		return err
	}
	s.invalidate(ctx, t, key, service)
	return nil
}

// Reload drops every cached entry for service, forcing the next Get/GetAll
// to read through to the repository. Called after an operator bulk-imports
// entries directly.
func (s *Store) Reload(ctx context.Context, service string) error {
	return s.cache.InvalidateTag(ctx, "config:"+service)
}

// RegisterDefaults seeds base (service-level, no brand/tenant) entries for
// any key not already present. Existing entries are left untouched, so a
// later RegisterDefaults call (e.g. on a new deploy) never clobbers an
// operator's override.
func (s *Store) RegisterDefaults(ctx context.Context, service string, defaults map[string]Value) error {
	for key, value := range defaults {
		_, ok, err := s.Get(ctx, service, "", "", key, true)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := s.Set(ctx, service, "", "", key, value, SetMeta{UpdatedBy: "system:defaults"}, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) invalidate(ctx context.Context, t tuple, key, service string) {
	_ = s.cache.Delete(ctx, t.cacheKey(key))
	_ = s.cache.InvalidateTag(ctx, "config:"+service)
}
