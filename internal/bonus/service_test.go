package bonus_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/bonus"
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

func newMemWallets() *memWallets { return &memWallets{byID: map[uuid.UUID]*wallet.Wallet{}} }

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

type memTemplates struct{ byCode map[string]*bonus.Template }

func (m *memTemplates) FindByCode(ctx context.Context, code string) (*bonus.Template, error) {
	t, ok := m.byCode[code]
	if !ok {
		return nil, common.NewNotFound("template not found", "code", code)
	}
	return t, nil
}

type memUserBonuses struct {
	byID map[uuid.UUID]*bonus.UserBonus
}

func newMemUserBonuses() *memUserBonuses {
	return &memUserBonuses{byID: map[uuid.UUID]*bonus.UserBonus{}}
}

func (m *memUserBonuses) FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*bonus.UserBonus, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, common.NewNotFound("user bonus not found", "id", id.String())
	}
	return b, nil
}

func (m *memUserBonuses) FindLatestByUserAndTemplate(ctx context.Context, userID uuid.UUID, templateCode string) (*bonus.UserBonus, error) {
	var latest *bonus.UserBonus
	for _, b := range m.byID {
		if b.UserID != userID || b.TemplateCode != templateCode {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, common.NewNotFound("no prior claim", "user_id", userID.String(), "template_code", templateCode)
	}
	return latest, nil
}

func (m *memUserBonuses) CountByTemplate(ctx context.Context, templateCode string) (int64, error) {
	var n int64
	for _, b := range m.byID {
		if b.TemplateCode == templateCode {
			n++
		}
	}
	return n, nil
}

func (m *memUserBonuses) Create(ctx context.Context, b *bonus.UserBonus, sess repository.Session) (*bonus.UserBonus, error) {
	m.byID[b.ID] = b
	return b, nil
}

func (m *memUserBonuses) Update(ctx context.Context, b *bonus.UserBonus, sess repository.Session) (*bonus.UserBonus, error) {
	m.byID[b.ID] = b
	return b, nil
}

func newTestService(t *testing.T, templates map[string]*bonus.Template) (*bonus.Service, *wallet.Service, common.ResourceOwner) {
	t.Helper()
	accounts := newMemAccounts()
	postings := newMemPostings()
	engine := ledger.NewEngine(accounts, postings, fakeSessionFactory)
	wallets := newMemWallets()
	transactions := &memTransactions{}
	tracker := opstate.NewTracker(cache.NewInProcess())
	orchestrator := saga.NewOrchestrator(cache.NewInProcess())
	walletSvc := wallet.NewService(engine, wallets, transactions, nil, orchestrator, tracker)

	bonuses := newMemUserBonuses()
	svc := bonus.NewService(&memTemplates{byCode: templates}, bonuses, bonus.NewDefaultRegistry(), walletSvc)

	return svc, walletSvc, common.ResourceOwner{TenantID: uuid.New()}
}

func TestClaim_DailyLoginAwardsOncePerDay(t *testing.T) {
	templates := map[string]*bonus.Template{
		"daily-login-v1": {Code: "daily-login-v1", Type: "daily_login", Value: 500, Currency: "USD"},
	}
	svc, walletSvc, owner := newTestService(t, templates)
	userID := uuid.New()

	claimed, err := svc.Claim(context.Background(), owner, userID, "daily-login-v1", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, bonus.StatusActive, claimed.Status)
	assert.Equal(t, int64(500), claimed.OriginalValue)

	w, err := walletSvc.CreateWallet(context.Background(), owner, userID, "USD", "default")
	require.NoError(t, err)
	balance, err := walletSvc.BalanceOf(context.Background(), w, wallet.BalanceBonus)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	_, err = svc.Claim(context.Background(), owner, userID, "daily-login-v1", 0, nil)
	require.Error(t, err)
	assert.True(t, common.IsConflict(err))
}

func TestClaim_FlashRespectsWindowAndUsesCap(t *testing.T) {
	now := time.Now().UTC()
	templates := map[string]*bonus.Template{
		"flash-v1": {
			Code: "flash-v1", Type: "flash", Value: 1000, Currency: "USD",
			ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour), MaxUses: 1,
		},
	}
	svc, _, owner := newTestService(t, templates)

	_, err := svc.Claim(context.Background(), owner, uuid.New(), "flash-v1", 0, nil)
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), owner, uuid.New(), "flash-v1", 0, nil)
	require.Error(t, err)
	assert.True(t, common.IsConflict(err))
}

func TestClaim_TieredReferralScalesByHighestQualifyingTier(t *testing.T) {
	templates := map[string]*bonus.Template{
		"referral-v1": {
			Code: "referral-v1", Type: "tiered_referral", Value: 1000, Currency: "USD",
			Tiers: []bonus.ReferralTier{
				{MinReferrals: 1, Multiplier: 1.0},
				{MinReferrals: 5, Multiplier: 2.0},
				{MinReferrals: 10, Multiplier: 3.0},
			},
		},
	}
	svc, _, owner := newTestService(t, templates)

	claimed, err := svc.Claim(context.Background(), owner, uuid.New(), "referral-v1", 7, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), claimed.OriginalValue)
}

func TestClaim_TieredReferralBelowLowestTierIsIneligible(t *testing.T) {
	templates := map[string]*bonus.Template{
		"referral-v1": {
			Code: "referral-v1", Type: "tiered_referral", Value: 1000, Currency: "USD",
			Tiers: []bonus.ReferralTier{{MinReferrals: 5, Multiplier: 1.0}},
		},
	}
	svc, _, owner := newTestService(t, templates)

	_, err := svc.Claim(context.Background(), owner, uuid.New(), "referral-v1", 2, nil)
	require.Error(t, err)
	assert.True(t, common.IsConflict(err))
}

func TestRecordTurnover_ConvertsOnceRequirementMet(t *testing.T) {
	templates := map[string]*bonus.Template{
		"daily-login-v1": {Code: "daily-login-v1", Type: "daily_login", Value: 500, Currency: "USD", TurnoverMultiplier: 2},
	}
	svc, walletSvc, owner := newTestService(t, templates)
	userID := uuid.New()

	claimed, err := svc.Claim(context.Background(), owner, userID, "daily-login-v1", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), claimed.TurnoverRequired)

	w, err := walletSvc.CreateWallet(context.Background(), owner, userID, "USD", "default")
	require.NoError(t, err)

	updated, err := svc.RecordTurnover(context.Background(), w, claimed.ID, 600)
	require.NoError(t, err)
	assert.Equal(t, bonus.StatusActive, updated.Status)

	updated, err = svc.RecordTurnover(context.Background(), w, claimed.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, bonus.StatusConverted, updated.Status)
	assert.Equal(t, int64(1000), updated.TurnoverProgress)

	realBalance, err := walletSvc.BalanceOf(context.Background(), w, wallet.BalanceReal)
	require.NoError(t, err)
	assert.Equal(t, int64(500), realBalance)

	bonusBalance, err := walletSvc.BalanceOf(context.Background(), w, wallet.BalanceBonus)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bonusBalance)
}
