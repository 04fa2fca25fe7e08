package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/pkg/auth"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/security"
)

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	users := memory.NewStore().Users()
	hash, err := hasher.Hash("s3cret-pass")
	require.NoError(t, err)
	u := &model.User{Username: "mortician", PasswordHash: hash, Role: model.RoleMortuaryStaff, CreatedAt: time.Now()}
	require.NoError(t, users.Create(ctx, u))

	svc := NewService(users, auth.NewJWTService("test-secret", "mortuary-api", time.Hour), hasher, logger.Nop())

	resp, err := svc.Login(ctx, "mortician", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, u.ID, resp.User.ID)

	claims, err := svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleMortuaryStaff, claims.Role)

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "mortician", "guess")
		assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody", "s3cret-pass")
		assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "not-a-token")
		assert.True(t, errors.HasCode(err, errors.ErrUnauthorized))
	})
}
