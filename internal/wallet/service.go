package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/ledger"
	"github.com/coreledger/platform/internal/opstate"
	"github.com/coreledger/platform/internal/saga"
)

// SystemOwnerID identifies the tenant-wide pseudo-owner every wallet's
// system counterpart accounts (external, hold, fee) are held under. It is
// a fixed, well-known id rather than a real user, mirroring the teacher's
// StandardChartOfAccounts system accounts.
var SystemOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Service is the Wallet/Transfer Engine's public API (spec §4.6).
type Service struct {
	ledger       *ledger.Engine
	wallets      Repository
	transactions TransactionRepository
	transfers    TransferRepository
	orchestrator *saga.Orchestrator
	tracker      *opstate.Tracker
}

// NewService wires a Service over the ledger engine, wallet/transaction/
// transfer repositories, the saga orchestrator and the operation state
// tracker.
func NewService(ledgerEngine *ledger.Engine, wallets Repository, transactions TransactionRepository, transfers TransferRepository, orchestrator *saga.Orchestrator, tracker *opstate.Tracker) *Service {
	return &Service{
		ledger:       ledgerEngine,
		wallets:      wallets,
		transactions: transactions,
		transfers:    transfers,
		orchestrator: orchestrator,
		tracker:      tracker,
	}
}

// systemAccount returns (creating if absent) the tenant-wide system account
// of subtype for currency — the external/hold/fee counterparty every
// wallet operation posts against.
func (s *Service) systemAccount(ctx context.Context, tenantID uuid.UUID, subtype ledger.Subtype, currency string) (*ledger.Account, error) {
	owner := common.ResourceOwner{TenantID: tenantID}
	return s.ledger.GetOrCreateAccount(ctx, owner, SystemOwnerID, ledger.OwnerSystem, subtype, currency, true)
}

// CreateWallet returns the wallet projection for (ownerID, currency,
// category), creating it and its three backing ledger accounts if absent.
// Idempotent under race via a double-checked lookup around the create,
// adapted from the teacher's GetOrCreateUserWallet pattern.
func (s *Service) CreateWallet(ctx context.Context, owner common.ResourceOwner, ownerID uuid.UUID, currency, category string) (*Wallet, error) {
	if existing, err := s.wallets.FindByOwner(ctx, ownerID, currency, category, nil); err == nil {
		return existing, nil
	} else if !common.IsNotFound(err) {
		return nil, err
	}

	real, err := s.ledger.GetOrCreateAccount(ctx, owner, ownerID, ledger.OwnerUser, ledger.SubtypeMain, currency, false)
	if err != nil {
		return nil, err
	}
	bonus, err := s.ledger.GetOrCreateAccount(ctx, owner, ownerID, ledger.OwnerUser, ledger.SubtypeBonus, currency, false)
	if err != nil {
		return nil, err
	}
	locked, err := s.ledger.GetOrCreateAccount(ctx, owner, ownerID, ledger.OwnerUser, ledger.SubtypeLocked, currency, false)
	if err != nil {
		return nil, err
	}

	w := NewWallet(owner, ownerID, currency, category, real.ID, bonus.ID, locked.ID)
	created, err := s.wallets.Create(ctx, w, nil)
	if err != nil {
		if existing, findErr := s.wallets.FindByOwner(ctx, ownerID, currency, category, nil); findErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

// BalanceOf returns w's current committed balance for balanceType, read
// directly from the backing ledger account.
func (s *Service) BalanceOf(ctx context.Context, w *Wallet, balanceType BalanceType) (int64, error) {
	accountID := w.AccountID(balanceType)
	if accountID == uuid.Nil {
		return 0, common.NewInvalidInput("unknown balance type", "balance_type", string(balanceType))
	}
	return s.ledger.Balance(ctx, accountID)
}

// ConvertBonusToReal moves amount directly from w's bonus account to its
// real account, with no system counterparty involved — used by the bonus
// engine (C10) once a UserBonus's turnover requirement is met.
func (s *Service) ConvertBonusToReal(ctx context.Context, w *Wallet, userID uuid.UUID, amount int64, currency, externalRef string) (*ledger.Posting, error) {
	return s.ledger.Post(ctx, w.BonusAccountID, w.RealAccountID, amount, currency, "bonus_conversion", externalRef, userID, w.ResourceOwner)
}

// CreateWalletTransaction posts amount against wallet's balanceType
// account, per spec §4.6: resolves the sign rule from txType, posts a
// single ledger.Engine.Post against the tenant's system "external" account,
// and returns balanceBefore/balanceAfter read from the authoritative
// post-commit balance inside the same posting transaction.
//
// txType's transfer_in/transfer_out values are not accepted here — those
// legs are posted directly against the counterparty's own account by
// CreateTransfer's saga steps, since this method only knows how to post
// against the tenant-wide system account.
func (s *Service) CreateWalletTransaction(ctx context.Context, walletID, userID uuid.UUID, txType TransactionType, balanceType BalanceType, amount int64, currency, description string) (*WalletTransaction, error) {
	if txType == TxTransferIn || txType == TxTransferOut {
		return nil, common.NewInvalidInput("transfer legs must be posted via CreateTransfer, not CreateWalletTransaction", "type", string(txType))
	}
	credit, err := txType.isCredit()
	if err != nil {
		return nil, err
	}

	w, err := s.wallets.FindById(ctx, walletID, nil)
	if err != nil {
		return nil, err
	}
	targetAccountID := w.AccountID(balanceType)
	if targetAccountID == uuid.Nil {
		return nil, common.NewInvalidInput("unknown balance type", "balance_type", string(balanceType))
	}

	counterparty, err := s.systemAccount(ctx, w.ResourceOwner.TenantID, ledger.SubtypeExternal, currency)
	if err != nil {
		return nil, err
	}

	var fromID, toID uuid.UUID
	if credit {
		fromID, toID = counterparty.ID, targetAccountID
	} else {
		fromID, toID = targetAccountID, counterparty.ID
	}

	outcome, err := s.ledger.PostDetailed(ctx, fromID, toID, amount, currency, string(txType), "", userID, w.ResourceOwner)
	if err != nil {
		return nil, err
	}
	balanceBefore, balanceAfter := outcome.ToBalanceBefore, outcome.ToBalanceAfter
	if !credit {
		balanceBefore, balanceAfter = outcome.FromBalanceBefore, outcome.FromBalanceAfter
	}

	tx := &WalletTransaction{
		BaseEntity:    common.NewEntity(w.ResourceOwner),
		WalletID:      walletID,
		UserID:        userID,
		Type:          txType,
		BalanceType:   balanceType,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Currency:      currency,
		Description:   description,
		PostingID:     outcome.Posting.ID,
	}
	created, err := s.transactions.Create(ctx, tx, nil)
	if err != nil {
		return nil, err
	}

	switch txType {
	case TxDeposit:
		w.LifetimeDeposited += amount
		_, _ = s.wallets.Update(ctx, w, nil)
	case TxWithdrawal:
		w.LifetimeWithdrawn += amount
		_, _ = s.wallets.Update(ctx, w, nil)
	}

	return created, nil
}
