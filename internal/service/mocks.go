package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/tabletop-hub/internal/repository"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *repository.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Get(ctx context.Context, userID int64) (*repository.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Save(ctx context.Context, token *repository.AccessToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) Exists(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRepository) Delete(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

type MockGameRepository struct {
	mock.Mock
}

func (m *MockGameRepository) Create(ctx context.Context, game *repository.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

func (m *MockGameRepository) Get(ctx context.Context, gameID int64) (*repository.Game, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Game), args.Error(1)
}

func (m *MockGameRepository) GetForUpdate(ctx context.Context, gameID int64) (*repository.Game, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Game), args.Error(1)
}

func (m *MockGameRepository) List(ctx context.Context) ([]*repository.Game, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Game), args.Error(1)
}

func (m *MockGameRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*repository.Game, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Game), args.Error(1)
}

func (m *MockGameRepository) Patch(ctx context.Context, patch *repository.GamePatch) (*repository.Game, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Game), args.Error(1)
}

func (m *MockGameRepository) Delete(ctx context.Context, gameID int64) error {
	args := m.Called(ctx, gameID)
	return args.Error(0)
}

func (m *MockGameRepository) AddPlayer(ctx context.Context, gameID, userID int64) (bool, error) {
	args := m.Called(ctx, gameID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameRepository) IncrementParticipants(ctx context.Context, gameID int64) error {
	args := m.Called(ctx, gameID)
	return args.Error(0)
}

func (m *MockGameRepository) IsPlayer(ctx context.Context, gameID, userID int64) (bool, error) {
	args := m.Called(ctx, gameID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameRepository) GetPlayers(ctx context.Context, gameID int64) ([]*repository.Player, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Player), args.Error(1)
}

type MockJoinRequestRepository struct {
	mock.Mock
}

func (m *MockJoinRequestRepository) Create(ctx context.Context, req *repository.JoinRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockJoinRequestRepository) Get(ctx context.Context, requestID int64) (*repository.JoinRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.JoinRequest), args.Error(1)
}

func (m *MockJoinRequestRepository) GetForUpdate(ctx context.Context, requestID int64) (*repository.JoinRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.JoinRequest), args.Error(1)
}

func (m *MockJoinRequestRepository) MarkAccepted(ctx context.Context, requestID int64, at time.Time) error {
	args := m.Called(ctx, requestID, at)
	return args.Error(0)
}

func (m *MockJoinRequestRepository) Delete(ctx context.Context, requestID int64) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

func (m *MockJoinRequestRepository) ListByRequester(ctx context.Context, requesterID int64) ([]*repository.JoinRequest, error) {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.JoinRequest), args.Error(1)
}

func (m *MockJoinRequestRepository) ListPendingForOwner(ctx context.Context, ownerID int64) ([]*repository.JoinRequest, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.JoinRequest), args.Error(1)
}
