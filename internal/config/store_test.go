package config

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/cache"
	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

// fakeEntryRepo is a minimal in-memory repository.Repository[Entry] used to
// exercise Store without a live MongoDB.
type fakeEntryRepo struct {
	mu   sync.Mutex
	rows map[string]*Entry
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{rows: map[string]*Entry{}}
}

func (f *fakeEntryRepo) FindById(_ context.Context, id string, _ repository.Session) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.rows[id]; ok {
		copy := *e
		return &copy, nil
	}
	return nil, common.NewNotFound("config entry not found", "id", id)
}

func (f *fakeEntryRepo) FindOne(ctx context.Context, q repository.Query, sess repository.Session) (*Entry, error) {
	results, err := f.FindMany(ctx, q, sess)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, common.NewNotFound("config entry not found")
	}
	return &results[0], nil
}

func (f *fakeEntryRepo) FindMany(_ context.Context, q repository.Query, _ repository.Session) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Entry
	for _, e := range f.rows {
		if matches(*e, q.Filters) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func matches(e Entry, filters []repository.Filter) bool {
	for _, flt := range filters {
		var actual string
		switch flt.Field {
		case "service":
			actual = e.Service
		case "brand":
			actual = e.Brand
		case "tenant_id":
			actual = e.TenantID
		case "key":
			actual = e.Key
		}
		want, _ := flt.Value.(string)
		if actual != want {
			return false
		}
	}
	return true
}

func (f *fakeEntryRepo) Exists(ctx context.Context, q repository.Query, sess repository.Session) (bool, error) {
	results, err := f.FindMany(ctx, q, sess)
	return len(results) > 0, err
}

func (f *fakeEntryRepo) Count(ctx context.Context, q repository.Query, sess repository.Session) (int64, error) {
	results, err := f.FindMany(ctx, q, sess)
	return int64(len(results)), err
}

func (f *fakeEntryRepo) Paginate(_ context.Context, _ repository.PageRequest, _ repository.Session) (repository.Page[Entry], error) {
	return repository.Page[Entry]{}, nil
}

func (f *fakeEntryRepo) Create(_ context.Context, entity *Entry, _ repository.Session) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	copy := *entity
	f.rows[entity.ID.String()] = &copy
	return &copy, nil
}

func (f *fakeEntryRepo) Update(_ context.Context, entity *Entry, _ repository.Session) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *entity
	f.rows[entity.ID.String()] = &copy
	return &copy, nil
}

func (f *fakeEntryRepo) Delete(_ context.Context, id string, _ repository.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func newTestStore() *Store {
	return New(newFakeEntryRepo(), cache.NewInProcess())
}

func TestStore_SetThenGet(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Set(ctx, "ledger", "", "", "allowNegative", Bool(true), SetMeta{UpdatedBy: "test"}, 0)
	require.NoError(t, err)

	v, ok, err := s.Get(ctx, "ledger", "", "", "allowNegative", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.Bool)
}

func TestStore_Get_BrandFallsBackToServiceDefault(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Set(ctx, "ledger", "", "", "currency", String("USD"), SetMeta{}, 0)
	require.NoError(t, err)

	v, ok, err := s.Get(ctx, "ledger", "acme", "", "currency", true)
	require.NoError(t, err)
	require.True(t, ok, "unset brand override must fall back to the service default")
	assert.Equal(t, "USD", v.Str)
}

func TestStore_Get_BrandOverrideWins(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Set(ctx, "ledger", "", "", "currency", String("USD"), SetMeta{}, 0)
	require.NoError(t, err)
	_, err = s.Set(ctx, "ledger", "acme", "", "currency", String("EUR"), SetMeta{}, 0)
	require.NoError(t, err)

	v, ok, err := s.Get(ctx, "ledger", "acme", "", "currency", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "EUR", v.Str)

	// unrelated brand still sees the service default
	v, ok, err = s.Get(ctx, "ledger", "other-brand", "", "currency", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "USD", v.Str)
}

func TestStore_Get_MissingKeyReturnsNotFound(t *testing.T) {
	s := newTestStore()
	_, ok, err := s.Get(context.Background(), "ledger", "", "", "nope", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Set_RejectsSensitivePathNotInValue(t *testing.T) {
	s := newTestStore()
	val := Map(map[string]Value{"host": String("db.internal")})

	_, err := s.Set(context.Background(), "ledger", "", "", "db", val, SetMeta{SensitivePaths: []string{"password"}}, 0)
	require.Error(t, err)
	assert.True(t, common.IsInvalidInput(err))
}

func TestStore_Get_SensitivePathsStrippedWithoutCapability(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	val := Map(map[string]Value{
		"host":     String("db.internal"),
		"password": String("s3cret"),
	})
	_, err := s.Set(ctx, "ledger", "", "", "db", val, SetMeta{SensitivePaths: []string{"password"}}, 0)
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, "ledger", "", "", "db", false)
	require.NoError(t, err)
	require.True(t, ok)
	_, hasPassword := got.Get(Path("password"))
	assert.False(t, hasPassword)

	adminCtx := common.WithResourceOwner(ctx, common.ResourceOwner{})
	adminCtx = context.WithValue(adminCtx, common.CapabilitiesKey, []string{"admin"})
	got, ok, err = s.Get(adminCtx, "ledger", "", "", "db", true)
	require.NoError(t, err)
	require.True(t, ok)
	pw, hasPassword := got.Get(Path("password"))
	require.True(t, hasPassword)
	assert.Equal(t, "s3cret", pw.Str)
}

func TestStore_Set_OptimisticVersionConflict(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	created, err := s.Set(ctx, "ledger", "", "", "currency", String("USD"), SetMeta{}, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.Version)

	_, err = s.Set(ctx, "ledger", "", "", "currency", String("EUR"), SetMeta{}, 5)
	require.Error(t, err)
	assert.True(t, common.IsConflict(err))
}

func TestStore_RegisterDefaults_DoesNotClobberExisting(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Set(ctx, "ledger", "", "", "currency", String("EUR"), SetMeta{}, 0)
	require.NoError(t, err)

	err = s.RegisterDefaults(ctx, "ledger", map[string]Value{
		"currency":      String("USD"),
		"maxRetryCount": Int(3),
	})
	require.NoError(t, err)

	v, ok, err := s.Get(ctx, "ledger", "", "", "currency", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "EUR", v.Str, "existing override must survive RegisterDefaults")

	v, ok, err = s.Get(ctx, "ledger", "", "", "maxRetryCount", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 3, v.Int)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Set(ctx, "ledger", "", "", "currency", String("USD"), SetMeta{}, 0)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "ledger", "", "", "currency"))

	_, ok, err := s.Get(ctx, "ledger", "", "", "currency", true)
	require.NoError(t, err)
	assert.False(t, ok)
}
