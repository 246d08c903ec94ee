package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

const (
	maxPostAttempts = 3
	initialBackoff  = 100 * time.Millisecond
)

// SessionFactory opens a fresh transactional session for one Post attempt.
type SessionFactory func(ctx context.Context) (repository.Session, error)

// Engine is the ledger's public API (spec §4.5): account lookup/creation
// and atomic double-entry posting.
type Engine struct {
	accounts   AccountRepository
	postings   PostingRepository
	newSession SessionFactory
}

// NewEngine builds an Engine over the given repositories and session
// factory. newSession must yield a repository.Session backed by a real
// atomic, ordered transaction primitive with rollback on abort — the
// engine has no safe fallback for stores that cannot provide one.
func NewEngine(accounts AccountRepository, postings PostingRepository, newSession SessionFactory) *Engine {
	return &Engine{accounts: accounts, postings: postings, newSession: newSession}
}

// GetOrCreateAccount returns the account for (ownerID, subtype, currency),
// creating it if absent. Idempotent under race via a double-checked lookup
// around the create call.
func (e *Engine) GetOrCreateAccount(ctx context.Context, owner common.ResourceOwner, ownerID uuid.UUID, ownerKind OwnerKind, subtype Subtype, currency string, allowNegative bool) (*Account, error) {
	if existing, err := e.accounts.FindByOwner(ctx, ownerID, subtype, currency, nil); err == nil {
		return existing, nil
	} else if !common.IsNotFound(err) {
		return nil, err
	}

	account := NewAccount(owner, ownerID, ownerKind, subtype, currency, allowNegative)
	created, err := e.accounts.Create(ctx, account, nil)
	if err != nil {
		// Lost the creation race; the winner's row is now visible.
		if existing, findErr := e.accounts.FindByOwner(ctx, ownerID, subtype, currency, nil); findErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

// Balance returns an account's current committed balance.
func (e *Engine) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	account, err := e.accounts.FindById(ctx, accountID, nil)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// BalanceByOwner returns the balance of the (owner, subtype, currency)
// account, if it has been created.
func (e *Engine) BalanceByOwner(ctx context.Context, ownerID uuid.UUID, subtype Subtype, currency string) (int64, error) {
	account, err := e.accounts.FindByOwner(ctx, ownerID, subtype, currency, nil)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// PostOutcome is the full result of one posting, including both accounts'
// balances as committed inside the same atomic scope — the "authoritative
// post-commit balance read" spec §4.6 requires callers to use instead of
// externally computed before/after values.
type PostOutcome struct {
	Posting           *Posting
	FromBalanceBefore int64
	FromBalanceAfter  int64
	ToBalanceBefore   int64
	ToBalanceAfter    int64
}

// Post performs exactly two updates — debit fromAccountID, credit
// toAccountID — inside a single atomic scope, per spec §4.5. It retries a
// bounded number of times with exponential backoff on write-conflict
// (TransientConflict) errors; any other error fails immediately.
func (e *Engine) Post(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount int64, currency, txType, externalRef string, createdBy uuid.UUID, owner common.ResourceOwner) (*Posting, error) {
	outcome, err := e.PostDetailed(ctx, fromAccountID, toAccountID, amount, currency, txType, externalRef, createdBy, owner)
	if err != nil {
		return nil, err
	}
	return outcome.Posting, nil
}

// PostDetailed is Post but also returns each account's balance immediately
// before and after the posting, read inside the same commit.
func (e *Engine) PostDetailed(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount int64, currency, txType, externalRef string, createdBy uuid.UUID, owner common.ResourceOwner) (*PostOutcome, error) {
	if amount <= 0 {
		return nil, common.NewInvalidInput("amount must be a strictly positive integer", "amount", amount)
	}
	if fromAccountID == toAccountID {
		return nil, common.NewInvalidInput("fromAccountId and toAccountId must be distinct")
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxPostAttempts; attempt++ {
		outcome, err := e.attemptPost(ctx, fromAccountID, toAccountID, amount, currency, txType, externalRef, createdBy, owner)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !common.IsTransientConflict(err) {
			return nil, err
		}
		slog.WarnContext(ctx, "ledger post retrying after write conflict",
			"attempt", attempt+1, "from_account_id", fromAccountID, "to_account_id", toAccountID)
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, lastErr
}

func (e *Engine) attemptPost(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount int64, currency, txType, externalRef string, createdBy uuid.UUID, owner common.ResourceOwner) (*PostOutcome, error) {
	sess, err := e.newSession(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	result, err := sess.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		if externalRef != "" {
			if existing, findErr := e.postings.FindByExternalRef(sessCtx, fromAccountID, toAccountID, txType, externalRef, sess); findErr == nil {
				from, err := e.accounts.FindById(sessCtx, fromAccountID, sess)
				if err != nil {
					return nil, err
				}
				to, err := e.accounts.FindById(sessCtx, toAccountID, sess)
				if err != nil {
					return nil, err
				}
				return &PostOutcome{
					Posting:           existing,
					FromBalanceBefore: from.Balance,
					FromBalanceAfter:  from.Balance,
					ToBalanceBefore:   to.Balance,
					ToBalanceAfter:    to.Balance,
				}, nil
			} else if !common.IsNotFound(findErr) {
				return nil, findErr
			}
		}

		from, err := e.accounts.FindById(sessCtx, fromAccountID, sess)
		if err != nil {
			return nil, err
		}
		to, err := e.accounts.FindById(sessCtx, toAccountID, sess)
		if err != nil {
			return nil, err
		}

		if from.Currency != currency || to.Currency != currency {
			return nil, common.NewCurrencyMismatch("account currency does not match posting currency",
				"from_currency", from.Currency, "to_currency", to.Currency, "posting_currency", currency)
		}

		newFromBalance := from.Balance - amount
		if newFromBalance < 0 && !from.AllowNegative {
			return nil, common.NewInsufficientFunds("source account balance would go negative",
				"account_id", from.ID.String(), "balance", from.Balance, "amount", amount)
		}
		newToBalance := to.Balance + amount

		if err := e.accounts.CompareAndSwapBalance(sessCtx, from.ID, from.Version, newFromBalance, sess); err != nil {
			return nil, err
		}
		if err := e.accounts.CompareAndSwapBalance(sessCtx, to.ID, to.Version, newToBalance, sess); err != nil {
			return nil, err
		}

		posting := NewPosting(owner, fromAccountID, toAccountID, amount, currency, txType, externalRef, createdBy)
		created, err := e.postings.Create(sessCtx, posting, sess)
		if err != nil {
			return nil, err
		}
		return &PostOutcome{
			Posting:           created,
			FromBalanceBefore: from.Balance,
			FromBalanceAfter:  newFromBalance,
			ToBalanceBefore:   to.Balance,
			ToBalanceAfter:    newToBalance,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*PostOutcome), nil
}
