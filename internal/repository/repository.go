// Package repository implements the generic document-store CRUD contract
// (spec §4.2, component C2): filter/sort/skip/take queries, cursor
// pagination, injected timestamps, optional transactional sessions, and a
// TTL cache layer in front of reads.
package repository

import (
	"context"
	"time"

	"github.com/coreledger/platform/internal/common"
)

// SortDirection is ascending (1) or descending (-1), mirroring Mongo's sort spec.
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// Operator is a comparison operator usable in a Filter.
type Operator string

const (
	OpEquals      Operator = "eq"
	OpNotEquals   Operator = "ne"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpGreaterOrEq Operator = "gte"
	OpLessOrEq    Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "nin"
	OpContains    Operator = "contains"
)

// Filter is a single field/operator/value predicate. FindMany ANDs all
// top-level filters; callers compose OR semantics via the Or field.
type Filter struct {
	Field    string
	Operator Operator
	Value    any
	Or       []Filter
}

// SortSpec orders FindMany/Paginate results by a single field.
type SortSpec struct {
	Field     string
	Direction SortDirection
}

// Query bundles the filter/sort/skip/take/projection controls every read
// operation accepts.
type Query struct {
	Filters    []Filter
	Sort       []SortSpec
	Skip       int
	Take       int
	PickFields []string
	OmitFields []string
}

// Page is a cursor-paginated result. Cursor is an opaque base64 token of
// (sortValue, id); it is empty once there are no further pages.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// PageRequest drives Paginate: Cursor is nil/empty for the first page.
type PageRequest struct {
	Filters []Filter
	Sort    SortSpec
	Cursor  string
	Limit   int
}

// Session scopes a sequence of writes to one atomic transaction. Repository
// methods accept an optional Session; when non-nil, all operations run in
// that scope and a caller Rollback/Abort leaves no observable effect.
type Session interface {
	// WithTransaction runs fn inside the session's transaction, committing
	// on success and aborting (rolling back) if fn returns an error.
	WithTransaction(ctx context.Context, fn func(sessCtx context.Context) (any, error)) (any, error)
	EndSession(ctx context.Context)
}

// CacheConfig configures the TTL cache sitting in front of reads for one
// entity collection (spec §4.2 defaults: 300/60/30s).
type CacheConfig struct {
	SingleTTL time.Duration
	ListTTL   time.Duration
	CountTTL  time.Duration
}

// DefaultCacheConfig returns the spec's documented defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		SingleTTL: 300 * time.Second,
		ListTTL:   60 * time.Second,
		CountTTL:  30 * time.Second,
	}
}

// Repository is the generic contract every persisted entity in this
// platform is accessed through.
type Repository[T common.Entity] interface {
	FindById(ctx context.Context, id string, sess Session) (*T, error)
	FindOne(ctx context.Context, q Query, sess Session) (*T, error)
	FindMany(ctx context.Context, q Query, sess Session) ([]T, error)
	Exists(ctx context.Context, q Query, sess Session) (bool, error)
	Count(ctx context.Context, q Query, sess Session) (int64, error)
	Paginate(ctx context.Context, pr PageRequest, sess Session) (Page[T], error)
	Create(ctx context.Context, entity *T, sess Session) (*T, error)
	Update(ctx context.Context, entity *T, sess Session) (*T, error)
	Delete(ctx context.Context, id string, sess Session) error
}
