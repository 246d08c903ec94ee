package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/repository"
)

// Repository is the narrow port Service drives Wallet persistence through.
type Repository interface {
	FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*Wallet, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, currency, category string, sess repository.Session) (*Wallet, error)
	Create(ctx context.Context, w *Wallet, sess repository.Session) (*Wallet, error)
	Update(ctx context.Context, w *Wallet, sess repository.Session) (*Wallet, error)
}

// TransactionRepository is the narrow port Service drives WalletTransaction
// persistence through.
type TransactionRepository interface {
	Create(ctx context.Context, tx *WalletTransaction, sess repository.Session) (*WalletTransaction, error)
}

type repoAdapter struct {
	repo repository.Repository[Wallet]
}

// NewRepository wraps a generic repository.Repository[Wallet].
func NewRepository(repo repository.Repository[Wallet]) Repository {
	return &repoAdapter{repo: repo}
}

func (r *repoAdapter) FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*Wallet, error) {
	return r.repo.FindById(ctx, id.String(), sess)
}

func (r *repoAdapter) FindByOwner(ctx context.Context, ownerID uuid.UUID, currency, category string, sess repository.Session) (*Wallet, error) {
	return r.repo.FindOne(ctx, repository.Query{Filters: []repository.Filter{
		{Field: "owner_id", Operator: repository.OpEquals, Value: ownerID.String()},
		{Field: "currency", Operator: repository.OpEquals, Value: currency},
		{Field: "category", Operator: repository.OpEquals, Value: category},
	}}, sess)
}

func (r *repoAdapter) Create(ctx context.Context, w *Wallet, sess repository.Session) (*Wallet, error) {
	return r.repo.Create(ctx, w, sess)
}

func (r *repoAdapter) Update(ctx context.Context, w *Wallet, sess repository.Session) (*Wallet, error) {
	return r.repo.Update(ctx, w, sess)
}

type transactionRepoAdapter struct {
	repo repository.Repository[WalletTransaction]
}

// NewTransactionRepository wraps a generic repository.Repository[WalletTransaction].
func NewTransactionRepository(repo repository.Repository[WalletTransaction]) TransactionRepository {
	return &transactionRepoAdapter{repo: repo}
}

func (r *transactionRepoAdapter) Create(ctx context.Context, tx *WalletTransaction, sess repository.Session) (*WalletTransaction, error) {
	return r.repo.Create(ctx, tx, sess)
}
