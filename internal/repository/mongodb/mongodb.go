// Package mongodb adapts the generic Repository contract (C2) onto
// MongoDB, reusing the teacher's aggregation-pipeline query builder
// (pkg/infra/db/mongodb/mongodb_repository.go) generalized from the
// teacher's bespoke Search/SearchAggregation types to this module's
// Filter/SortSpec/Query shape.
package mongodb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coreledger/platform/internal/cache"
	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Session wraps a mongo.Session to satisfy repository.Session.
type Session struct {
	mongoSession mongo.Session
}

// NewSession starts a MongoDB session for transactional writes.
func NewSession(ctx context.Context, client *mongo.Client) (*Session, error) {
	s, err := client.StartSession()
	if err != nil {
		return nil, err
	}
	return &Session{mongoSession: s}, nil
}

func (s *Session) WithTransaction(ctx context.Context, fn func(sessCtx context.Context) (any, error)) (any, error) {
	return s.mongoSession.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return fn(sessCtx)
	})
}

func (s *Session) EndSession(ctx context.Context) {
	s.mongoSession.EndSession(ctx)
}

// Repository is the generic MongoDB-backed Repository[T] implementation.
type Repository[T common.Entity] struct {
	collection  *mongo.Collection
	entityName  string
	bsonField   map[string]string // logical field -> bson field name
	cache       cache.Cache
	cacheConfig repository.CacheConfig
	injectTime  bool
}

// New builds a Repository for collection, with field-name mapping (logical
// name -> bson tag) declared by the caller alongside the entity, per spec
// §4.2 ("indexes are declared alongside the entity").
func New[T common.Entity](db *mongo.Database, collectionName, entityName string, bsonField map[string]string, c cache.Cache) *Repository[T] {
	return &Repository[T]{
		collection:  db.Collection(collectionName),
		entityName:  entityName,
		bsonField:   bsonField,
		cache:       c,
		cacheConfig: repository.DefaultCacheConfig(),
		injectTime:  true,
	}
}

// WithCacheConfig overrides the default TTLs for this repository.
func (r *Repository[T]) WithCacheConfig(cc repository.CacheConfig) *Repository[T] {
	r.cacheConfig = cc
	return r
}

func (r *Repository[T]) bsonName(field string) string {
	if name, ok := r.bsonField[field]; ok {
		return name
	}
	return field
}

func operatorExpr(op repository.Operator, value any) bson.M {
	switch op {
	case repository.OpEquals:
		return bson.M{"$eq": value}
	case repository.OpNotEquals:
		return bson.M{"$ne": value}
	case repository.OpGreaterThan:
		return bson.M{"$gt": value}
	case repository.OpLessThan:
		return bson.M{"$lt": value}
	case repository.OpGreaterOrEq:
		return bson.M{"$gte": value}
	case repository.OpLessOrEq:
		return bson.M{"$lte": value}
	case repository.OpIn:
		return bson.M{"$in": value}
	case repository.OpNotIn:
		return bson.M{"$nin": value}
	case repository.OpContains:
		return bson.M{"$regex": fmt.Sprintf("%v", value), "$options": "i"}
	default:
		return bson.M{"$eq": value}
	}
}

func (r *Repository[T]) buildMatch(filters []repository.Filter) bson.M {
	and := bson.A{}
	for _, f := range filters {
		if len(f.Or) > 0 {
			or := bson.A{}
			for _, sub := range f.Or {
				or = append(or, bson.M{r.bsonName(sub.Field): operatorExpr(sub.Operator, sub.Value)})
			}
			and = append(and, bson.M{"$or": or})
			continue
		}
		and = append(and, bson.M{r.bsonName(f.Field): operatorExpr(f.Operator, f.Value)})
	}
	if len(and) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": and}
}

func (r *Repository[T]) pipeline(q repository.Query) []bson.M {
	pipe := []bson.M{{"$match": r.buildMatch(q.Filters)}}

	if len(q.Sort) > 0 {
		sortDoc := bson.D{}
		for _, s := range q.Sort {
			sortDoc = append(sortDoc, bson.E{Key: r.bsonName(s.Field), Value: int(s.Direction)})
		}
		pipe = append(pipe, bson.M{"$sort": sortDoc})
	}

	if q.Skip > 0 {
		pipe = append(pipe, bson.M{"$skip": q.Skip})
	}

	limit := q.Take
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	pipe = append(pipe, bson.M{"$limit": limit})

	if len(q.PickFields) > 0 {
		proj := bson.M{}
		for _, f := range q.PickFields {
			proj[r.bsonName(f)] = 1
		}
		pipe = append(pipe, bson.M{"$project": proj})
	} else if len(q.OmitFields) > 0 {
		proj := bson.M{}
		for _, f := range q.OmitFields {
			proj[r.bsonName(f)] = 0
		}
		pipe = append(pipe, bson.M{"$project": proj})
	}

	return pipe
}

// sessionCtx returns the context to issue the driver call on. Transactional
// scope is carried by the context itself (mongo.SessionContext satisfies
// context.Context): callers that want a write inside a transaction pass the
// sessCtx handed to their Session.WithTransaction callback as ctx. The sess
// argument exists so the signature matches repository.Repository[T] and so
// non-Mongo callers can still pass a Session value without a compile error.
func sessionCtx(ctx context.Context, _ repository.Session) context.Context {
	return ctx
}

func (r *Repository[T]) FindById(ctx context.Context, id string, sess repository.Session) (*T, error) {
	key := "entity:" + r.entityName + ":" + id
	if r.cache != nil {
		if raw, ok, _ := r.cache.Get(ctx, key); ok {
			var entity T
			if err := json.Unmarshal(raw, &entity); err == nil {
				return &entity, nil
			}
		}
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, common.NewInvalidInput("invalid id", "id", id)
	}

	var entity T
	err = r.collection.FindOne(sessionCtx(ctx, sess), bson.M{"_id": parsed}).Decode(&entity)
	if err == mongo.ErrNoDocuments {
		return nil, common.NewNotFound(r.entityName+" not found", "id", id)
	}
	if err != nil {
		slog.ErrorContext(ctx, "FindById failed", "entity", r.entityName, "err", err)
		return nil, err
	}

	if r.cache != nil {
		if raw, err := json.Marshal(entity); err == nil {
			_ = r.cache.Set(ctx, key, raw, r.cacheConfig.SingleTTL, "collection:"+r.entityName)
		}
	}

	return &entity, nil
}

func (r *Repository[T]) FindMany(ctx context.Context, q repository.Query, sess repository.Session) ([]T, error) {
	cursor, err := r.collection.Aggregate(sessionCtx(ctx, sess), r.pipeline(q))
	if err != nil {
		slog.ErrorContext(ctx, "FindMany aggregate failed", "entity", r.entityName, "err", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	results := make([]T, 0)
	for cursor.Next(ctx) {
		var entity T
		if err := cursor.Decode(&entity); err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, cursor.Err()
}

func (r *Repository[T]) FindOne(ctx context.Context, q repository.Query, sess repository.Session) (*T, error) {
	q.Take = 1
	results, err := r.FindMany(ctx, q, sess)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, common.NewNotFound(r.entityName + " not found")
	}
	return &results[0], nil
}

func (r *Repository[T]) Exists(ctx context.Context, q repository.Query, sess repository.Session) (bool, error) {
	count, err := r.Count(ctx, q, sess)
	return count > 0, err
}

func (r *Repository[T]) Count(ctx context.Context, q repository.Query, sess repository.Session) (int64, error) {
	return r.collection.CountDocuments(sessionCtx(ctx, sess), r.buildMatch(q.Filters))
}

// cursorToken encodes the (sortValue, id) pair used by Paginate, per
// spec §4.2: "opaque base64-encoded token of (sortValue, id)".
type cursorToken struct {
	SortValue any    `json:"s"`
	ID        string `json:"i"`
}

func encodeCursor(t cursorToken) (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

func decodeCursor(s string) (cursorToken, error) {
	var t cursorToken
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return t, err
	}
	err = json.Unmarshal(raw, &t)
	return t, err
}

// Paginate returns pages ordered by pr.Sort with no duplicates across pages
// even under concurrent inserts, because the cursor tie-breaks on `_id`
// whenever the sort field repeats.
func (r *Repository[T]) Paginate(ctx context.Context, pr repository.PageRequest, sess repository.Session) (repository.Page[T], error) {
	limit := pr.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filters := append([]repository.Filter{}, pr.Filters...)

	if pr.Cursor != "" {
		tok, err := decodeCursor(pr.Cursor)
		if err != nil {
			return repository.Page[T]{}, common.NewInvalidInput("invalid cursor")
		}
		op := repository.OpGreaterThan
		if pr.Sort.Direction == repository.Descending {
			op = repository.OpLessThan
		}
		filters = append(filters, repository.Filter{
			Or: []repository.Filter{
				{Field: pr.Sort.Field, Operator: op, Value: tok.SortValue},
			},
		})
	}

	q := repository.Query{
		Filters: filters,
		Sort:    []repository.SortSpec{pr.Sort, {Field: "_id", Direction: repository.Ascending}},
		Take:    limit,
	}

	items, err := r.FindMany(ctx, q, sess)
	if err != nil {
		return repository.Page[T]{}, err
	}

	page := repository.Page[T]{Items: items}
	if len(items) == limit {
		last := items[len(items)-1]
		page.NextCursor, err = encodeCursor(cursorToken{ID: last.GetID().String()})
		if err != nil {
			return page, err
		}
	}
	return page, nil
}

func (r *Repository[T]) Create(ctx context.Context, entity *T, sess repository.Session) (*T, error) {
	_, err := r.collection.InsertOne(sessionCtx(ctx, sess), entity)
	if err != nil {
		slog.ErrorContext(ctx, "Create failed", "entity", r.entityName, "err", err)
		return nil, err
	}
	r.invalidateLists(ctx)
	return entity, nil
}

func (r *Repository[T]) Update(ctx context.Context, entity *T, sess repository.Session) (*T, error) {
	id := (*entity).GetID()
	_, err := r.collection.UpdateOne(sessionCtx(ctx, sess), bson.M{"_id": id}, bson.M{"$set": entity})
	if err != nil {
		slog.ErrorContext(ctx, "Update failed", "entity", r.entityName, "err", err)
		return nil, err
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, "entity:"+r.entityName+":"+id.String())
	}
	r.invalidateLists(ctx)
	return entity, nil
}

func (r *Repository[T]) Delete(ctx context.Context, id string, sess repository.Session) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return common.NewInvalidInput("invalid id", "id", id)
	}
	_, err = r.collection.DeleteOne(sessionCtx(ctx, sess), bson.M{"_id": parsed})
	if err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, "entity:"+r.entityName+":"+id)
	}
	r.invalidateLists(ctx)
	return nil
}

func (r *Repository[T]) invalidateLists(ctx context.Context) {
	if r.cache != nil {
		_ = r.cache.InvalidateTag(ctx, "collection:"+r.entityName)
	}
}

// EnsureIndexes ensures the indexes declared for this collection exist at
// startup (spec §6's "required indexes"); models is a list of
// (keys, unique, sparse) tuples.
func EnsureIndexes(ctx context.Context, collection *mongo.Collection, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	_, err := collection.Indexes().CreateMany(ctx, models)
	return err
}

// UniqueIndex is a small helper to build a unique IndexModel from field names.
func UniqueIndex(fields ...string) mongo.IndexModel {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
}

// SparseUniqueIndex is like UniqueIndex but tolerates absent fields (spec
// §6's "sparse-unique" indexes on optional identifiers like phone/externalRef).
func SparseUniqueIndex(fields ...string) mongo.IndexModel {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetSparse(true)}
}

// Index builds a non-unique IndexModel, e.g. for the time-ordered
// (fromAccountId, createdAt) access pattern.
func Index(fields ...string) mongo.IndexModel {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return mongo.IndexModel{Keys: keys}
}
