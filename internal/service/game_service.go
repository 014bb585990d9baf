package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/tabletop-hub/internal/db"
	"github.com/yakoovad/tabletop-hub/internal/model"
	"github.com/yakoovad/tabletop-hub/internal/repository"
	"github.com/yakoovad/tabletop-hub/pkg/logger"
	"go.uber.org/zap"
)

// GameService is the CRUD surface for one game kind. Only the owner may change or remove a game.
type GameService struct {
	tx   db.Transactor
	kind model.GameKind

	games repository.GameRepository
}

func NewGameService(tx db.Transactor, kind model.GameKind) *GameService {
	return &GameService{tx: tx, kind: kind}
}

func (g *GameService) Kind() model.GameKind {
	return g.kind
}

// List returns every game. An empty slice is the "nothing to show" signal, not an error.
func (g *GameService) List(ctx context.Context) ([]*model.Game, error) {
	games, err := g.games.List(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list games", zap.String("kind", string(g.kind)), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list "+g.plural())
	}
	return toModelGames(g.kind, games), nil
}

func (g *GameService) ListMine(ctx context.Context, callerID int64) ([]*model.Game, error) {
	games, err := g.games.ListByOwner(ctx, callerID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list owned games",
			zap.String("kind", string(g.kind)),
			zap.Int64("owner_id", callerID),
			zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list "+g.plural())
	}
	return toModelGames(g.kind, games), nil
}

// Create stores the game with the caller as owner and first participant.
// Game and owner membership are written together or not at all.
func (g *GameService) Create(ctx context.Context, callerID int64, in *model.GameInput) (*model.Game, error) {
	l := logger.FromContext(ctx)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	var res *model.Game

	err := g.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		row := &repository.Game{
			OwnerID:          callerID,
			Name:             in.Name,
			Description:      in.Description,
			ParticipantCount: 1,
		}
		err := g.games.Create(txCtx, row)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeInvalidBody, "unknown owner for "+string(g.kind))
		case err != nil:
			l.Error("failed to create game", zap.String("kind", string(g.kind)), zap.Int64("owner_id", callerID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create "+string(g.kind))
		}

		inserted, err := g.games.AddPlayer(txCtx, row.ID, callerID)
		if err != nil || !inserted {
			l.Error("failed to add owner as participant",
				zap.String("kind", string(g.kind)),
				zap.Int64("game_id", row.ID),
				zap.Int64("owner_id", callerID),
				zap.Error(err))
			return NewError(ErrorCodeInvalidBody, "failed to register owner as participant")
		}

		res, err = g.detail(txCtx, row.ID)
		return err
	})

	if err = finish(err); err != nil {
		return nil, err
	}

	l.Debug("game created", zap.String("kind", string(g.kind)), zap.Int64("game_id", res.ID))
	return res, nil
}

// Get returns the game together with its roster.
func (g *GameService) Get(ctx context.Context, gameID int64) (*model.Game, error) {
	return g.detail(ctx, gameID)
}

// Update replaces name and description. A missing game is NOT_FOUND and a caller other than the
// owner gets FORBIDDEN; the input is only validated after both checks pass.
func (g *GameService) Update(ctx context.Context, gameID, callerID int64, in *model.GameInput) (*model.Game, error) {
	l := logger.FromContext(ctx)

	var res *model.Game

	err := g.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := g.lockOwned(txCtx, gameID, callerID)
		if err != nil {
			return err
		}

		if err = validateInput(in); err != nil {
			return err
		}

		updated, err := g.games.Patch(txCtx, &repository.GamePatch{
			ID:          gameID,
			Name:        &in.Name,
			Description: &in.Description,
		})
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return g.notFound()
		case err != nil:
			l.Error("failed to update game", zap.String("kind", string(g.kind)), zap.Int64("game_id", gameID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update "+string(g.kind))
		}

		updated.OwnerUsername = current.OwnerUsername
		res = toModelGame(g.kind, updated)
		return nil
	})

	if err = finish(err); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *GameService) Delete(ctx context.Context, gameID, callerID int64) error {
	l := logger.FromContext(ctx)

	err := g.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := g.lockOwned(txCtx, gameID, callerID); err != nil {
			return err
		}

		err := g.games.Delete(txCtx, gameID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return g.notFound()
		case err != nil:
			l.Error("failed to delete game", zap.String("kind", string(g.kind)), zap.Int64("game_id", gameID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete "+string(g.kind))
		}

		l.Debug("game deleted", zap.String("kind", string(g.kind)), zap.Int64("game_id", gameID))
		return nil
	})

	return finish(err)
}

// lockOwned loads the game for update and checks that callerID owns it.
func (g *GameService) lockOwned(ctx context.Context, gameID, callerID int64) (*repository.Game, error) {
	l := logger.FromContext(ctx)

	game, err := g.games.GetForUpdate(ctx, gameID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, g.notFound()
	case err != nil:
		l.Error("failed to get game", zap.String("kind", string(g.kind)), zap.Int64("game_id", gameID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get "+string(g.kind))
	}

	if game.OwnerID != callerID {
		l.Warn("caller is not the owner",
			zap.String("kind", string(g.kind)),
			zap.Int64("game_id", gameID),
			zap.Int64("caller_id", callerID))
		return nil, NewError(ErrorCodeForbidden, "you are not the master of this "+string(g.kind))
	}
	return game, nil
}

func (g *GameService) detail(ctx context.Context, gameID int64) (*model.Game, error) {
	l := logger.FromContext(ctx)

	row, err := g.games.Get(ctx, gameID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, g.notFound()
	case err != nil:
		l.Error("failed to get game", zap.String("kind", string(g.kind)), zap.Int64("game_id", gameID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get "+string(g.kind))
	}

	players, err := g.games.GetPlayers(ctx, gameID)
	if err != nil {
		l.Error("failed to get players", zap.String("kind", string(g.kind)), zap.Int64("game_id", gameID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get "+string(g.kind))
	}

	res := toModelGame(g.kind, row)
	res.Players = toModelPlayers(players)
	return res, nil
}

func (g *GameService) notFound() *Error {
	return NewError(ErrorCodeNotFound, string(g.kind)+" not found")
}

func (g *GameService) plural() string {
	return string(g.kind) + "s"
}

func (g *GameService) WithGameRepo(r repository.GameRepository) *GameService {
	g.games = r
	return g
}
