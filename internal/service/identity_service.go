package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/tabletop-hub/internal/auth"
	"github.com/yakoovad/tabletop-hub/internal/db"
	"github.com/yakoovad/tabletop-hub/internal/model"
	"github.com/yakoovad/tabletop-hub/internal/repository"
	"github.com/yakoovad/tabletop-hub/pkg/logger"
	"go.uber.org/zap"
)

type IdentityService struct {
	tx db.Transactor

	users  repository.UserRepository
	tokens repository.TokenRepository
	issuer *auth.Issuer
}

func NewIdentityService(tx db.Transactor, issuer *auth.Issuer) *IdentityService {
	return &IdentityService{tx: tx, issuer: issuer}
}

// Register creates the user and hands back a fresh access token. The token is issued only after
// the user row is committed, since the token store may live outside postgres. If issuing fails the
// account stays and the user can log in.
func (s *IdentityService) Register(ctx context.Context, in *model.Registration) (*model.Token, error) {
	l := logger.FromContext(ctx)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	var userID int64

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		_, err := s.users.GetByUsername(txCtx, in.Username)
		switch {
		case err == nil:
			l.Warn("username already exists", zap.String("username", in.Username))
			return NewError(ErrorCodeConflict, "username already exists")
		case !errors.Is(err, repository.ErrNotFound):
			l.Error("failed to look up username", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to register user")
		}

		_, err = s.users.GetByEmail(txCtx, in.Email)
		switch {
		case err == nil:
			l.Warn("email already exists", zap.String("email", in.Email))
			return NewError(ErrorCodeConflict, "email already exists")
		case !errors.Is(err, repository.ErrNotFound):
			l.Error("failed to look up email", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to register user")
		}

		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			l.Error("failed to hash password", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to register user")
		}

		user := &repository.User{
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: hash,
		}
		err = s.users.Create(txCtx, user)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return NewError(ErrorCodeConflict, "username or email already exists")
		case err != nil:
			l.Error("failed to create user", zap.String("username", in.Username), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to register user")
		}

		userID = user.ID
		return nil
	})

	if err = finish(err); err != nil {
		return nil, err
	}

	l.Debug("user registered", zap.Int64("user_id", userID))
	return s.issue(ctx, userID)
}

func (s *IdentityService) Login(ctx context.Context, in *model.Credentials) (*model.Token, error) {
	l := logger.FromContext(ctx)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeUnauthorized, "invalid credentials")
	case err != nil:
		l.Error("failed to get user", zap.String("username", in.Username), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to log in")
	}

	err = auth.CheckPassword(user.PasswordHash, in.Password)
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		l.Warn("wrong password", zap.Int64("user_id", user.ID))
		return nil, NewError(ErrorCodeUnauthorized, "invalid credentials")
	case err != nil:
		l.Error("failed to check password", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to log in")
	}

	return s.issue(ctx, user.ID)
}

// Authenticate verifies the signature and that the token has not been revoked.
func (s *IdentityService) Authenticate(ctx context.Context, tokenString string) (*auth.TokenClaims, error) {
	l := logger.FromContext(ctx)

	claims, err := s.issuer.VerifyToken(tokenString)
	if err != nil {
		l.Debug("token rejected", zap.Error(err))
		return nil, NewError(ErrorCodeUnauthorized, "invalid or expired token")
	}

	live, err := s.tokens.Exists(ctx, claims.TokenID())
	if err != nil {
		l.Error("failed to look up token", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to authenticate")
	}
	if !live {
		return nil, NewError(ErrorCodeUnauthorized, "token has been revoked")
	}

	return claims, nil
}

func (s *IdentityService) Logout(ctx context.Context, tokenID string) error {
	l := logger.FromContext(ctx)

	err := s.tokens.Delete(ctx, tokenID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return NewError(ErrorCodeUnauthorized, "not logged in")
	case err != nil:
		l.Error("failed to revoke token", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to log out")
	}
	return nil
}

func (s *IdentityService) GetProfile(ctx context.Context, callerID int64) (*model.User, error) {
	user, err := s.users.Get(ctx, callerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "user not found")
	case err != nil:
		logger.FromContext(ctx).Error("failed to get user", zap.Int64("user_id", callerID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get profile")
	}

	return &model.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (s *IdentityService) issue(ctx context.Context, userID int64) (*model.Token, error) {
	l := logger.FromContext(ctx)

	signed, claims, err := s.issuer.GenerateToken(userID)
	if err != nil {
		l.Error("failed to sign token", zap.Int64("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to issue token")
	}

	if err = s.tokens.Save(ctx, &repository.AccessToken{
		ID:        claims.TokenID(),
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		l.Error("failed to store token", zap.Int64("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to issue token")
	}

	return &model.Token{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *IdentityService) WithUserRepo(r repository.UserRepository) *IdentityService {
	s.users = r
	return s
}

func (s *IdentityService) WithTokenRepo(r repository.TokenRepository) *IdentityService {
	s.tokens = r
	return s
}
