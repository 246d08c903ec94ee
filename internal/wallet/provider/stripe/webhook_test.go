package stripe

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/cache"
	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/ledger"
	"github.com/coreledger/platform/internal/opstate"
	"github.com/coreledger/platform/internal/repository"
	"github.com/coreledger/platform/internal/saga"
	"github.com/coreledger/platform/internal/wallet"
)

type fakeSession struct{}

func (fakeSession) WithTransaction(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return fn(ctx)
}
func (fakeSession) EndSession(context.Context) {}

func fakeSessionFactory(ctx context.Context) (repository.Session, error) { return fakeSession{}, nil }

type memAccounts struct{ byID map[uuid.UUID]*ledger.Account }

func newMemAccounts() *memAccounts { return &memAccounts{byID: map[uuid.UUID]*ledger.Account{}} }

func (m *memAccounts) FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*ledger.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, common.NewNotFound("account not found", "id", id.String())
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) FindByOwner(ctx context.Context, ownerID uuid.UUID, subtype ledger.Subtype, currency string, sess repository.Session) (*ledger.Account, error) {
	for _, a := range m.byID {
		if a.OwnerID == ownerID && a.Subtype == subtype && a.Currency == currency {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.NewNotFound("account not found", "owner_id", ownerID.String())
}

func (m *memAccounts) Create(ctx context.Context, a *ledger.Account, sess repository.Session) (*ledger.Account, error) {
	m.byID[a.ID] = a
	return a, nil
}

func (m *memAccounts) CompareAndSwapBalance(ctx context.Context, id uuid.UUID, expectedVersion, newBalance int64, sess repository.Session) error {
	a, ok := m.byID[id]
	if !ok {
		return common.NewNotFound("account not found", "id", id.String())
	}
	if a.Version != expectedVersion {
		return common.NewTransientConflict("version mismatch")
	}
	a.Balance = newBalance
	a.Version++
	return nil
}

type memPostings struct{ byRef map[string]*ledger.Posting }

func newMemPostings() *memPostings { return &memPostings{byRef: map[string]*ledger.Posting{}} }

func (m *memPostings) Create(ctx context.Context, p *ledger.Posting, sess repository.Session) (*ledger.Posting, error) {
	if p.ExternalRef != "" {
		m.byRef[p.FromAccountID.String()+p.ToAccountID.String()+p.Type+p.ExternalRef] = p
	}
	return p, nil
}

func (m *memPostings) FindByExternalRef(ctx context.Context, fromID, toID uuid.UUID, txType, externalRef string, sess repository.Session) (*ledger.Posting, error) {
	p, ok := m.byRef[fromID.String()+toID.String()+txType+externalRef]
	if !ok {
		return nil, common.NewNotFound("posting not found", "external_ref", externalRef)
	}
	return p, nil
}

type memWallets struct{ byID map[uuid.UUID]*wallet.Wallet }

func (m *memWallets) FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*wallet.Wallet, error) {
	w, ok := m.byID[id]
	if !ok {
		return nil, common.NewNotFound("wallet not found", "id", id.String())
	}
	return w, nil
}
func (m *memWallets) FindByOwner(ctx context.Context, ownerID uuid.UUID, currency, category string, sess repository.Session) (*wallet.Wallet, error) {
	for _, w := range m.byID {
		if w.OwnerID == ownerID && w.Currency == currency && w.Category == category {
			return w, nil
		}
	}
	return nil, common.NewNotFound("wallet not found", "owner_id", ownerID.String())
}
func (m *memWallets) Create(ctx context.Context, w *wallet.Wallet, sess repository.Session) (*wallet.Wallet, error) {
	m.byID[w.ID] = w
	return w, nil
}
func (m *memWallets) Update(ctx context.Context, w *wallet.Wallet, sess repository.Session) (*wallet.Wallet, error) {
	m.byID[w.ID] = w
	return w, nil
}

type memTransactions struct{}

func (m *memTransactions) Create(ctx context.Context, tx *wallet.WalletTransaction, sess repository.Session) (*wallet.WalletTransaction, error) {
	tx.ID = uuid.New()
	return tx, nil
}

type memDeposits struct {
	byPaymentID map[string]*PendingDeposit
}

func newMemDeposits() *memDeposits { return &memDeposits{byPaymentID: map[string]*PendingDeposit{}} }

func (m *memDeposits) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*PendingDeposit, error) {
	d, ok := m.byPaymentID[providerPaymentID]
	if !ok {
		return nil, common.NewNotFound("pending deposit not found", "provider_payment_id", providerPaymentID)
	}
	return d, nil
}

func (m *memDeposits) MarkConsumed(ctx context.Context, id uuid.UUID, failureReason string) error {
	for _, d := range m.byPaymentID {
		if d.ID == id {
			d.Consumed = true
		}
	}
	return nil
}

func newTestService(t *testing.T) (*wallet.Service, *memWallets) {
	t.Helper()
	accounts := newMemAccounts()
	postings := newMemPostings()
	engine := ledger.NewEngine(accounts, postings, fakeSessionFactory)
	wallets := &memWallets{byID: map[uuid.UUID]*wallet.Wallet{}}
	transactions := &memTransactions{}
	tracker := opstate.NewTracker(cache.NewInProcess())
	orchestrator := saga.NewOrchestrator(cache.NewInProcess())
	svc := wallet.NewService(engine, wallets, transactions, nil, orchestrator, tracker)

	owner := common.ResourceOwner{TenantID: uuid.New()}
	userID := uuid.New()
	w, err := svc.CreateWallet(context.Background(), owner, userID, "USD", "default")
	require.NoError(t, err)
	return svc, &memWallets{byID: map[uuid.UUID]*wallet.Wallet{w.ID: w}}
}

func TestDispatcher_HandleEvent_SucceededCreditsWalletAndConsumesDeposit(t *testing.T) {
	svc, wallets := newTestService(t)
	var w *wallet.Wallet
	for _, v := range wallets.byID {
		w = v
	}

	deposits := newMemDeposits()
	pending := &PendingDeposit{ID: uuid.New(), WalletID: w.ID, UserID: w.OwnerID, Amount: 5000, Currency: "USD", ProviderPaymentID: "pi_123"}
	deposits.byPaymentID["pi_123"] = pending

	dispatcher := NewDispatcher(svc, deposits)
	err := dispatcher.HandleEvent(context.Background(), &Event{Type: "payment_intent.succeeded", ProviderPaymentID: "pi_123", Succeeded: true})
	require.NoError(t, err)

	assert.True(t, pending.Consumed)

	balance, err := svc.BalanceOf(context.Background(), w, wallet.BalanceReal)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)
}

func TestDispatcher_HandleEvent_FailedConsumesWithoutCrediting(t *testing.T) {
	svc, wallets := newTestService(t)
	var w *wallet.Wallet
	for _, v := range wallets.byID {
		w = v
	}

	deposits := newMemDeposits()
	pending := &PendingDeposit{ID: uuid.New(), WalletID: w.ID, UserID: w.OwnerID, Amount: 5000, Currency: "USD", ProviderPaymentID: "pi_456"}
	deposits.byPaymentID["pi_456"] = pending

	dispatcher := NewDispatcher(svc, deposits)
	err := dispatcher.HandleEvent(context.Background(), &Event{Type: "payment_intent.payment_failed", ProviderPaymentID: "pi_456", Failed: true, FailureReason: "card_declined"})
	require.NoError(t, err)

	assert.True(t, pending.Consumed)

	balance, err := svc.BalanceOf(context.Background(), w, wallet.BalanceReal)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestDispatcher_HandleEvent_UnknownPaymentIdIsIgnored(t *testing.T) {
	svc, _ := newTestService(t)
	deposits := newMemDeposits()
	dispatcher := NewDispatcher(svc, deposits)

	err := dispatcher.HandleEvent(context.Background(), &Event{Type: "payment_intent.succeeded", ProviderPaymentID: "pi_unknown", Succeeded: true})
	assert.NoError(t, err)
}
