package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/security"
)

func newTestService() (*Service, security.PasswordHasher) {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	return NewService(memory.NewStore().Users(), hasher), hasher
}

func createReq(username string) *model.CreateUserRequest {
	return &model.CreateUserRequest{
		Username: username,
		Password: "correct-horse",
		FullName: "Ada Admin",
		Email:    username + "@hospital.test",
		Role:     model.RoleMortuaryStaff,
	}
}

func TestCreate(t *testing.T) {
	svc, hasher := newTestService()
	ctx := context.Background()

	u, err := svc.Create(ctx, createReq("ada"))
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)
	assert.NoError(t, hasher.Compare(u.PasswordHash, "correct-horse"))

	_, err = svc.Create(ctx, createReq("ada"))
	assert.ErrorIs(t, err, errors.ErrConflictKind)

	short := createReq("bob")
	short.Password = "short"
	_, err = svc.Create(ctx, short)
	assert.True(t, errors.HasCode(err, errors.ErrBadRequest))
}

func TestUpdate(t *testing.T) {
	svc, hasher := newTestService()
	ctx := context.Background()
	u, err := svc.Create(ctx, createReq("ada"))
	require.NoError(t, err)

	role := model.RoleAdmin
	password := "battery-staple"
	u, err = svc.Update(ctx, u.ID, &model.UpdateUserRequest{Role: &role, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.NoError(t, hasher.Compare(u.PasswordHash, password))

	_, err = svc.Update(ctx, 404, &model.UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, errors.ErrNotFoundKind)
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	admin, err := svc.Create(ctx, createReq("admin"))
	require.NoError(t, err)
	other, err := svc.Create(ctx, createReq("other"))
	require.NoError(t, err)

	err = svc.Delete(ctx, admin.ID, admin.ID)
	assert.True(t, errors.HasCode(err, errors.ErrBadRequest))

	require.NoError(t, svc.Delete(ctx, other.ID, admin.ID))
	users, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
}
