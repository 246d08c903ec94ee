package bonus

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/repository"
)

// TemplateRepository is the narrow port Service looks up bonus Templates
// through. Templates are operator-authored configuration, not something
// this package creates, so the port is read-only.
type TemplateRepository interface {
	FindByCode(ctx context.Context, code string) (*Template, error)
}

// UserBonusRepository is the narrow port Service drives UserBonus
// persistence through, including the per-window eligibility lookups
// concrete handlers rely on.
type UserBonusRepository interface {
	FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*UserBonus, error)
	// FindLatestByUserAndTemplate returns the most recent UserBonus a user
	// claimed against templateCode, or a NotFound error if they never have.
	FindLatestByUserAndTemplate(ctx context.Context, userID uuid.UUID, templateCode string) (*UserBonus, error)
	// CountByTemplate returns how many UserBonus records exist for
	// templateCode across all users, backing flash templates' total-uses cap.
	CountByTemplate(ctx context.Context, templateCode string) (int64, error)
	Create(ctx context.Context, b *UserBonus, sess repository.Session) (*UserBonus, error)
	Update(ctx context.Context, b *UserBonus, sess repository.Session) (*UserBonus, error)
}

type templateRepoAdapter struct {
	repo repository.Repository[Template]
}

// NewTemplateRepository wraps a generic repository.Repository[Template],
// looking templates up by their operator-assigned Code rather than their
// generated id.
func NewTemplateRepository(repo repository.Repository[Template]) TemplateRepository {
	return &templateRepoAdapter{repo: repo}
}

func (r *templateRepoAdapter) FindByCode(ctx context.Context, code string) (*Template, error) {
	return r.repo.FindOne(ctx, repository.Query{
		Filters: []repository.Filter{{Field: "code", Operator: repository.OpEquals, Value: code}},
	}, nil)
}

type userBonusRepoAdapter struct {
	repo repository.Repository[UserBonus]
}

// NewUserBonusRepository wraps a generic repository.Repository[UserBonus].
func NewUserBonusRepository(repo repository.Repository[UserBonus]) UserBonusRepository {
	return &userBonusRepoAdapter{repo: repo}
}

func (r *userBonusRepoAdapter) FindById(ctx context.Context, id uuid.UUID, sess repository.Session) (*UserBonus, error) {
	return r.repo.FindById(ctx, id.String(), sess)
}

func (r *userBonusRepoAdapter) FindLatestByUserAndTemplate(ctx context.Context, userID uuid.UUID, templateCode string) (*UserBonus, error) {
	return r.repo.FindOne(ctx, repository.Query{
		Filters: []repository.Filter{
			{Field: "user_id", Operator: repository.OpEquals, Value: userID.String()},
			{Field: "template_code", Operator: repository.OpEquals, Value: templateCode},
		},
		Sort: []repository.SortSpec{{Field: "created_at", Direction: repository.Descending}},
		Take: 1,
	}, nil)
}

func (r *userBonusRepoAdapter) CountByTemplate(ctx context.Context, templateCode string) (int64, error) {
	return r.repo.Count(ctx, repository.Query{
		Filters: []repository.Filter{{Field: "template_code", Operator: repository.OpEquals, Value: templateCode}},
	}, nil)
}

func (r *userBonusRepoAdapter) Create(ctx context.Context, b *UserBonus, sess repository.Session) (*UserBonus, error) {
	return r.repo.Create(ctx, b, sess)
}

func (r *userBonusRepoAdapter) Update(ctx context.Context, b *UserBonus, sess repository.Session) (*UserBonus, error) {
	return r.repo.Update(ctx, b, sess)
}
