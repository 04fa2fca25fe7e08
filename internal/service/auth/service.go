package auth

import (
	"context"
	"fmt"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/pkg/auth"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/security"
)

type AuthServicer interface {
	Login(ctx context.Context, username, password string) (*model.LoginResponse, error)
	ValidateToken(ctx context.Context, token string) (*model.Claims, error)
}

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	log      *logger.Logger
}

func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		log:      log,
	}
}

// Login checks the credentials and issues an access token. Unknown users and
// wrong passwords get the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	invalid := errors.Unauthorized(fmt.Errorf("invalid credentials"))

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.HasCode(err, errors.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.log.WithContext(ctx).Warn("failed login", "username", username)
		return nil, invalid
	}

	token, expiry, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &model.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiry.Seconds()),
		User:        user,
	}, nil
}

func (s *Service) ValidateToken(ctx context.Context, token string) (*model.Claims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, errors.Unauthorized(err)
	}
	return claims, nil
}
