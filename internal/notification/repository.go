package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/repository"
)

// Repository persists Notification records (C2). Adapts the generic
// repository.Repository[Notification] the same way internal/bonus and
// internal/wallet adapt theirs.
type Repository interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	Update(ctx context.Context, n *Notification) (*Notification, error)
	FindById(ctx context.Context, id uuid.UUID) (*Notification, error)
}

type notificationRepoAdapter struct {
	repo repository.Repository[Notification]
}

// NewRepository wraps a generic repository.Repository[Notification].
func NewRepository(repo repository.Repository[Notification]) Repository {
	return &notificationRepoAdapter{repo: repo}
}

func (a *notificationRepoAdapter) Create(ctx context.Context, n *Notification) (*Notification, error) {
	return a.repo.Create(ctx, n, nil)
}

func (a *notificationRepoAdapter) Update(ctx context.Context, n *Notification) (*Notification, error) {
	return a.repo.Update(ctx, n, nil)
}

func (a *notificationRepoAdapter) FindById(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return a.repo.FindById(ctx, id.String(), nil)
}
