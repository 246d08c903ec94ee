package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

// repoAdapter adapts the generic repository.Repository[User] onto the
// narrower Repository port the session engine consumes.
type repoAdapter struct {
	repo repository.Repository[User]
}

// NewRepository wraps a generic repository.Repository[User] as a
// user.Repository.
func NewRepository(repo repository.Repository[User]) Repository {
	return &repoAdapter{repo: repo}
}

func identifierField(kind IdentifierKind) string {
	switch kind {
	case IdentifierEmail:
		return "email"
	case IdentifierPhone:
		return "phone"
	default:
		return "username"
	}
}

func (r *repoAdapter) FindByIdentifier(ctx context.Context, tenantID string, kind IdentifierKind, identifier string) (*User, error) {
	filters := []repository.Filter{
		{Field: identifierField(kind), Operator: repository.OpEquals, Value: identifier},
	}
	if tenantID != "" {
		filters = append(filters, repository.Filter{Field: "resource_owner.tenant_id", Operator: repository.OpEquals, Value: tenantID})
	}
	u, err := r.repo.FindOne(ctx, repository.Query{Filters: filters}, nil)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repoAdapter) FindById(ctx context.Context, id string) (*User, error) {
	u, err := r.repo.FindById(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repoAdapter) Update(ctx context.Context, u *User, sess repository.Session) (*User, error) {
	if u.ID == uuid.Nil {
		return nil, common.NewInvalidInput("cannot update a user without an id")
	}
	return r.repo.Update(ctx, u, sess)
}
