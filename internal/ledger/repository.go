package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

// AccountRepository is the narrow port Engine drives Account persistence
// through; CompareAndSwapBalance is the one write an Engine needs beyond
// plain create/read, carrying the optimistic-concurrency check inline.
type AccountRepository interface {
	FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*Account, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, subtype Subtype, currency string, sess repository.Session) (*Account, error)
	Create(ctx context.Context, a *Account, sess repository.Session) (*Account, error)
	// CompareAndSwapBalance applies newBalance only if the account's stored
	// Version still equals expectedVersion, bumping the version; otherwise
	// it returns a TransientConflict error so the caller can retry.
	CompareAndSwapBalance(ctx context.Context, accountID uuid.UUID, expectedVersion, newBalance int64, sess repository.Session) error
}

// PostingRepository is the narrow port Engine drives Posting persistence
// through, including the externalRef idempotency lookup.
type PostingRepository interface {
	FindByExternalRef(ctx context.Context, from, to uuid.UUID, txType, externalRef string, sess repository.Session) (*Posting, error)
	Create(ctx context.Context, p *Posting, sess repository.Session) (*Posting, error)
}

type accountRepoAdapter struct {
	repo repository.Repository[Account]
}

// NewAccountRepository wraps a generic repository.Repository[Account].
func NewAccountRepository(repo repository.Repository[Account]) AccountRepository {
	return &accountRepoAdapter{repo: repo}
}

func (r *accountRepoAdapter) FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*Account, error) {
	return r.repo.FindById(ctx, id.String(), sess)
}

func (r *accountRepoAdapter) FindByOwner(ctx context.Context, ownerID uuid.UUID, subtype Subtype, currency string, sess repository.Session) (*Account, error) {
	return r.repo.FindOne(ctx, repository.Query{Filters: []repository.Filter{
		{Field: "owner_id", Operator: repository.OpEquals, Value: ownerID.String()},
		{Field: "subtype", Operator: repository.OpEquals, Value: string(subtype)},
		{Field: "currency", Operator: repository.OpEquals, Value: currency},
	}}, sess)
}

func (r *accountRepoAdapter) Create(ctx context.Context, a *Account, sess repository.Session) (*Account, error) {
	return r.repo.Create(ctx, a, sess)
}

func (r *accountRepoAdapter) CompareAndSwapBalance(ctx context.Context, accountID uuid.UUID, expectedVersion, newBalance int64, sess repository.Session) error {
	current, err := r.repo.FindOne(ctx, repository.Query{Filters: []repository.Filter{
		{Field: "id", Operator: repository.OpEquals, Value: accountID.String()},
		{Field: "version", Operator: repository.OpEquals, Value: expectedVersion},
	}}, sess)
	if err != nil {
		if common.IsNotFound(err) {
			return common.NewTransientConflict("account balance changed concurrently", "account_id", accountID.String())
		}
		return err
	}
	current.Balance = newBalance
	current.Version = expectedVersion + 1
	current.UpdatedAt = time.Now().UTC()
	_, err = r.repo.Update(ctx, current, sess)
	return err
}

type postingRepoAdapter struct {
	repo repository.Repository[Posting]
}

// NewPostingRepository wraps a generic repository.Repository[Posting].
func NewPostingRepository(repo repository.Repository[Posting]) PostingRepository {
	return &postingRepoAdapter{repo: repo}
}

func (r *postingRepoAdapter) FindByExternalRef(ctx context.Context, from, to uuid.UUID, txType, externalRef string, sess repository.Session) (*Posting, error) {
	if externalRef == "" {
		return nil, common.NewNotFound("no external ref supplied")
	}
	return r.repo.FindOne(ctx, repository.Query{Filters: []repository.Filter{
		{Field: "from_account_id", Operator: repository.OpEquals, Value: from.String()},
		{Field: "to_account_id", Operator: repository.OpEquals, Value: to.String()},
		{Field: "type", Operator: repository.OpEquals, Value: txType},
		{Field: "external_ref", Operator: repository.OpEquals, Value: externalRef},
	}}, sess)
}

func (r *postingRepoAdapter) Create(ctx context.Context, p *Posting, sess repository.Session) (*Posting, error) {
	return r.repo.Create(ctx, p, sess)
}
