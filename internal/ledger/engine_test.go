package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

type fakeSession struct{}

func (fakeSession) WithTransaction(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return fn(ctx)
}
func (fakeSession) EndSession(ctx context.Context) {}

func fakeSessionFactory(ctx context.Context) (repository.Session, error) {
	return fakeSession{}, nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*Account
	casFails map[uuid.UUID]int // remaining forced CAS failures per account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{byID: map[uuid.UUID]*Account{}, casFails: map[uuid.UUID]int{}}
}

func (r *fakeAccountRepo) put(a *Account) *Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byID[a.ID] = &cp
	return &cp
}

func (r *fakeAccountRepo) FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, common.NewNotFound("account not found")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAccountRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID, subtype Subtype, currency string, sess repository.Session) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.OwnerID == ownerID && a.Subtype == subtype && a.Currency == currency {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.NewNotFound("account not found")
}

func (r *fakeAccountRepo) Create(ctx context.Context, a *Account, sess repository.Session) (*Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.put(a), nil
}

func (r *fakeAccountRepo) CompareAndSwapBalance(ctx context.Context, accountID uuid.UUID, expectedVersion, newBalance int64, sess repository.Session) error {
	r.mu.Lock()
	if remaining := r.casFails[accountID]; remaining > 0 {
		r.casFails[accountID]--
		r.mu.Unlock()
		return common.NewTransientConflict("forced conflict for test")
	}
	a, ok := r.byID[accountID]
	r.mu.Unlock()
	if !ok || a.Version != expectedVersion {
		return common.NewTransientConflict("version mismatch")
	}
	r.mu.Lock()
	a.Balance = newBalance
	a.Version = expectedVersion + 1
	r.mu.Unlock()
	return nil
}

type fakePostingRepo struct {
	mu  sync.Mutex
	all []*Posting
}

func newFakePostingRepo() *fakePostingRepo {
	return &fakePostingRepo{}
}

func (r *fakePostingRepo) FindByExternalRef(ctx context.Context, from, to uuid.UUID, txType, externalRef string, sess repository.Session) (*Posting, error) {
	if externalRef == "" {
		return nil, common.NewNotFound("no external ref")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.all {
		if p.FromAccountID == from && p.ToAccountID == to && p.Type == txType && p.ExternalRef == externalRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.NewNotFound("posting not found")
}

func (r *fakePostingRepo) Create(ctx context.Context, p *Posting, sess repository.Session) (*Posting, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.mu.Lock()
	cp := *p
	r.all = append(r.all, &cp)
	r.mu.Unlock()
	return p, nil
}

func testOwnerForLedger() common.ResourceOwner {
	return common.ResourceOwner{TenantID: uuid.New()}
}

func seedAccount(t *testing.T, repo *fakeAccountRepo, owner common.ResourceOwner, ownerID uuid.UUID, subtype Subtype, currency string, balance int64, allowNegative bool) *Account {
	t.Helper()
	a := NewAccount(owner, ownerID, OwnerUser, subtype, currency, allowNegative)
	a.Balance = balance
	created, err := repo.Create(context.Background(), a, nil)
	require.NoError(t, err)
	return created
}

func newTestEngine() (*Engine, *fakeAccountRepo, *fakePostingRepo) {
	accounts := newFakeAccountRepo()
	postings := newFakePostingRepo()
	return NewEngine(accounts, postings, fakeSessionFactory), accounts, postings
}

func TestEngine_Post_Success(t *testing.T) {
	engine, accounts, _ := newTestEngine()
	owner := testOwnerForLedger()
	userID := uuid.New()

	from := seedAccount(t, accounts, owner, userID, SubtypeMain, "USD", 1000, false)
	to := seedAccount(t, accounts, owner, uuid.New(), SubtypeExternal, "USD", 0, true)

	posting, err := engine.Post(context.Background(), from.ID, to.ID, 300, "USD", "transfer", "", userID, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(300), posting.Amount)

	fromBalance, err := engine.Balance(context.Background(), from.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), fromBalance)

	toBalance, err := engine.Balance(context.Background(), to.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), toBalance)
}

func TestEngine_Post_InsufficientFunds(t *testing.T) {
	engine, accounts, _ := newTestEngine()
	owner := testOwnerForLedger()
	userID := uuid.New()

	from := seedAccount(t, accounts, owner, userID, SubtypeMain, "USD", 100, false)
	to := seedAccount(t, accounts, owner, uuid.New(), SubtypeExternal, "USD", 0, true)

	_, err := engine.Post(context.Background(), from.ID, to.ID, 500, "USD", "withdrawal", "", userID, owner)
	require.Error(t, err)
	assert.True(t, common.IsInsufficientFunds(err))
}

func TestEngine_Post_AllowsNegativeWhenPermitted(t *testing.T) {
	engine, accounts, _ := newTestEngine()
	owner := testOwnerForLedger()
	userID := uuid.New()

	from := seedAccount(t, accounts, owner, userID, SubtypeMain, "USD", 100, true)
	to := seedAccount(t, accounts, owner, uuid.New(), SubtypeExternal, "USD", 0, true)

	_, err := engine.Post(context.Background(), from.ID, to.ID, 500, "USD", "withdrawal", "", userID, owner)
	require.NoError(t, err)

	balance, err := engine.Balance(context.Background(), from.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-400), balance)
}

func TestEngine_Post_CurrencyMismatch(t *testing.T) {
	engine, accounts, _ := newTestEngine()
	owner := testOwnerForLedger()
	userID := uuid.New()

	from := seedAccount(t, accounts, owner, userID, SubtypeMain, "USD", 1000, false)
	to := seedAccount(t, accounts, owner, uuid.New(), SubtypeExternal, "EUR", 0, true)

	_, err := engine.Post(context.Background(), from.ID, to.ID, 100, "USD", "transfer", "", userID, owner)
	require.Error(t, err)
	assert.True(t, common.IsCurrencyMismatch(err))
}

func TestEngine_Post_RejectsNonPositiveAmount(t *testing.T) {
	engine, accounts, _ := newTestEngine()
	owner := testOwnerForLedger()
	userID := uuid.New()

	from := seedAccount(t, accounts, owner, userID, SubtypeMain, "USD", 1000, false)
	to := seedAccount(t, accounts, owner, uuid.New(), SubtypeExternal, "USD", 0, true)

	_, err := engine.Post(context.Background(), from.ID, to.ID, 0, "USD", "transfer", "", userID, owner)
	require.Error(t, err)
	assert.True(t, common.IsInvalidInput(err))
}

func TestEngine_Post_DuplicateExternalRefReturnsPriorPosting(t *testing.T) {
	engine, accounts, _ := newTestEngine()
	owner := testOwnerForLedger()
	userID := uuid.New()

	from := seedAccount(t, accounts, owner, userID, SubtypeMain, "USD", 1000, false)
	to := seedAccount(t, accounts, owner, uuid.New(), SubtypeExternal, "USD", 0, true)

	first, err := engine.Post(context.Background(), from.ID, to.ID, 300, "USD", "deposit", "ext-1", userID, owner)
	require.NoError(t, err)

	second, err := engine.Post(context.Background(), from.ID, to.ID, 300, "USD", "deposit", "ext-1", userID, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	fromBalance, err := engine.Balance(context.Background(), from.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), fromBalance, "balance must change only once for a duplicate externalRef")
}

func TestEngine_Post_RetriesOnTransientConflict(t *testing.T) {
	engine, accounts, _ := newTestEngine()
	owner := testOwnerForLedger()
	userID := uuid.New()

	from := seedAccount(t, accounts, owner, userID, SubtypeMain, "USD", 1000, false)
	to := seedAccount(t, accounts, owner, uuid.New(), SubtypeExternal, "USD", 0, true)

	accounts.mu.Lock()
	accounts.casFails[from.ID] = 1 // fail once, then succeed
	accounts.mu.Unlock()

	posting, err := engine.Post(context.Background(), from.ID, to.ID, 100, "USD", "transfer", "", userID, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(100), posting.Amount)
}

func TestEngine_GetOrCreateAccount_ReusesExisting(t *testing.T) {
	engine, _, _ := newTestEngine()
	owner := testOwnerForLedger()
	userID := uuid.New()

	first, err := engine.GetOrCreateAccount(context.Background(), owner, userID, OwnerUser, SubtypeMain, "USD", false)
	require.NoError(t, err)

	second, err := engine.GetOrCreateAccount(context.Background(), owner, userID, OwnerUser, SubtypeMain, "USD", false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}
