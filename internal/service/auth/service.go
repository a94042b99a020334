// Package auth signs users in and issues token pairs.
package auth

import (
	"context"
	"time"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
	"github.com/raktaseva/blood-api/pkg/auth"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/security"
	"github.com/raktaseva/blood-api/pkg/validator"
)

type Service struct {
	users    repository.UserRepository
	jwt      auth.JWTService
	hasher   security.PasswordHasher
	validate *validator.Validator
	logger   *logger.Logger
}

func NewService(
	users repository.UserRepository,
	jwtSvc auth.JWTService,
	hasher security.PasswordHasher,
	validate *validator.Validator,
	log *logger.Logger,
) *Service {
	return &Service{
		users:    users,
		jwt:      jwtSvc,
		hasher:   hasher,
		validate: validate,
		logger:   log,
	}
}

// Login verifies credentials and returns a token pair. Missing accounts
// and bad passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, input *model.LoginRequest) (*model.TokenPair, *model.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, nil, apperrors.Unauthorized(nil)
	}
	if user.Status != model.UserStatusActive {
		return nil, nil, apperrors.Forbidden("account is not active")
	}
	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		return nil, nil, apperrors.Unauthorized(nil)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Error(err, "failed to stamp last login", "user_id", user.ID.String())
	}

	s.logger.Info("user logged in", "user_id", user.ID.String(), "role", user.Role)
	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	if user.Status != model.UserStatusActive {
		return nil, apperrors.Forbidden("account is not active")
	}

	return s.issueTokens(user)
}

func (s *Service) issueTokens(user *model.User) (*model.TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
