package kyc

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/user"
)

// Service drives a verification submission through Provider and persists
// the outcome on the User entity.
type Service struct {
	provider Provider
	users    user.Repository
}

func NewService(provider Provider, users user.Repository) *Service {
	return &Service{provider: provider, users: users}
}

// Submit verifies documents for userID and stores the resulting Status on
// the user's KYCStatus field. The bonus engine and any gateway route
// gating access on verification read this field rather than calling
// Provider directly, so this is the only write path into it.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, documents []Document) (Status, error) {
	status, err := s.provider.Verify(ctx, userID, documents)
	if err != nil {
		return "", err
	}

	u, err := s.users.FindById(ctx, userID.String())
	if err != nil {
		return "", err
	}
	u.KYCStatus = string(status)
	if _, err := s.users.Update(ctx, u, nil); err != nil {
		return "", err
	}
	return status, nil
}
