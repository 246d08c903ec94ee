package kyc_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/kyc"
	"github.com/coreledger/platform/internal/repository"
	"github.com/coreledger/platform/internal/user"
)

type fakeUsers struct {
	rows map[string]*user.User
}

func newFakeUsers(u *user.User) *fakeUsers {
	return &fakeUsers{rows: map[string]*user.User{u.GetID().String(): u}}
}

func (f *fakeUsers) FindByIdentifier(_ context.Context, _ string, _ user.IdentifierKind, _ string) (*user.User, error) {
	return nil, common.NewNotFound("not implemented")
}

func (f *fakeUsers) FindById(_ context.Context, id string) (*user.User, error) {
	if u, ok := f.rows[id]; ok {
		return u, nil
	}
	return nil, common.NewNotFound("user not found")
}

func (f *fakeUsers) Update(_ context.Context, u *user.User, _ repository.Session) (*user.User, error) {
	f.rows[u.GetID().String()] = u
	return u, nil
}

func TestSubmit_StubProviderMarksUserPending(t *testing.T) {
	u := &user.User{BaseEntity: common.NewEntity(common.ResourceOwner{})}
	users := newFakeUsers(u)
	svc := kyc.NewService(kyc.StubProvider{}, users)

	status, err := svc.Submit(context.Background(), u.GetID(), []kyc.Document{{Type: "passport", URI: "s3://doc/1"}})
	require.NoError(t, err)
	assert.Equal(t, kyc.StatusPending, status)

	stored, err := users.FindById(context.Background(), u.GetID().String())
	require.NoError(t, err)
	assert.Equal(t, string(kyc.StatusPending), stored.KYCStatus)
}

type erroringProvider struct{}

func (erroringProvider) Verify(_ context.Context, _ uuid.UUID, _ []kyc.Document) (kyc.Status, error) {
	return "", common.NewDependencyUnavailable("provider offline")
}

func TestSubmit_ProviderFailureDoesNotTouchUser(t *testing.T) {
	u := &user.User{BaseEntity: common.NewEntity(common.ResourceOwner{})}
	users := newFakeUsers(u)
	svc := kyc.NewService(erroringProvider{}, users)

	_, err := svc.Submit(context.Background(), u.GetID(), nil)
	require.Error(t, err)
	assert.Empty(t, u.KYCStatus)
}
