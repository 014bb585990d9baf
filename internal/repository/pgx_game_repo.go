package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/tabletop-hub/internal/db"
)

type Game struct {
	ID               int64     `db:"id"`
	OwnerID          int64     `db:"owner_id"`
	OwnerUsername    string    `db:"owner_username"`
	Name             string    `db:"name"`
	Description      string    `db:"description"`
	ParticipantCount int       `db:"participant_count"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type GamePatch struct {
	ID          int64   `db:"id"`
	Name        *string `db:"name"`
	Description *string `db:"description"`
}

type Player struct {
	UserID   int64     `db:"user_id"`
	Username string    `db:"username"`
	JoinedAt time.Time `db:"joined_at"`
}

type GameRepository interface {
	Create(ctx context.Context, game *Game) error
	Get(ctx context.Context, gameID int64) (*Game, error)
	// GetForUpdate locks the game row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, gameID int64) (*Game, error)
	List(ctx context.Context) ([]*Game, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*Game, error)
	Patch(ctx context.Context, patch *GamePatch) (*Game, error)
	Delete(ctx context.Context, gameID int64) error

	// AddPlayer reports false when the user already was on the roster.
	AddPlayer(ctx context.Context, gameID, userID int64) (bool, error)
	IncrementParticipants(ctx context.Context, gameID int64) error
	IsPlayer(ctx context.Context, gameID, userID int64) (bool, error)
	GetPlayers(ctx context.Context, gameID int64) ([]*Player, error)
}

type pgxGameRepository struct {
	pool *pgxpool.Pool
	t    GameTables
}

func NewPgxGameRepository(pool *pgxpool.Pool, tables GameTables) GameRepository {
	return &pgxGameRepository{pool: pool, t: tables}
}

func (p *pgxGameRepository) selectGames(mods ...bob.Mod[*dialect.SelectQuery]) bob.BaseQuery[*dialect.SelectQuery] {
	q := psql.Select(
		sm.Columns(
			psql.Quote(p.t.Games, "id"),
			psql.Quote(p.t.Games, "owner_id"),
			psql.Quote("users", "username"),
			psql.Quote(p.t.Games, "name"),
			psql.Quote(p.t.Games, "description"),
			psql.Quote(p.t.Games, "participant_count"),
			psql.Quote(p.t.Games, "created_at"),
			psql.Quote(p.t.Games, "updated_at"),
		),
		sm.From(p.t.Games),
		sm.InnerJoin("users").On(psql.Quote("users", "id").EQ(psql.Quote(p.t.Games, "owner_id"))),
	)
	q.Apply(mods...)
	return q
}

func scanGame(row pgx.Row) (*Game, error) {
	g := &Game{}
	err := row.Scan(
		&g.ID,
		&g.OwnerID,
		&g.OwnerUsername,
		&g.Name,
		&g.Description,
		&g.ParticipantCount,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

func (p *pgxGameRepository) queryGames(ctx context.Context, q bob.BaseQuery[*dialect.SelectQuery]) ([]*Game, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Game, error) {
		return scanGame(row)
	})
}

func (p *pgxGameRepository) getOne(ctx context.Context, q bob.BaseQuery[*dialect.SelectQuery]) (*Game, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	g, err := scanGame(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// Create inserts the game and fills in ID and timestamps.
func (p *pgxGameRepository) Create(ctx context.Context, game *Game) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into(p.t.Games, "owner_id", "name", "description", "participant_count"),
		im.Values(psql.Arg(game.OwnerID), psql.Arg(game.Name), psql.Arg(game.Description), psql.Arg(game.ParticipantCount)),
		im.Returning("id", "created_at", "updated_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&game.ID, &game.CreatedAt, &game.UpdatedAt)
	return translatePgError(err)
}

func (p *pgxGameRepository) Get(ctx context.Context, gameID int64) (*Game, error) {
	return p.getOne(ctx, p.selectGames(
		sm.Where(psql.Quote(p.t.Games, "id").EQ(psql.Arg(gameID))),
	))
}

func (p *pgxGameRepository) GetForUpdate(ctx context.Context, gameID int64) (*Game, error) {
	return p.getOne(ctx, p.selectGames(
		sm.Where(psql.Quote(p.t.Games, "id").EQ(psql.Arg(gameID))),
		sm.ForUpdate(p.t.Games),
	))
}

func (p *pgxGameRepository) List(ctx context.Context) ([]*Game, error) {
	return p.queryGames(ctx, p.selectGames(
		sm.OrderBy(psql.Quote(p.t.Games, "id")),
	))
}

func (p *pgxGameRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*Game, error) {
	return p.queryGames(ctx, p.selectGames(
		sm.Where(psql.Quote(p.t.Games, "owner_id").EQ(psql.Arg(ownerID))),
		sm.OrderBy(psql.Quote(p.t.Games, "id")),
	))
}

// Patch updates the non-nil fields. OwnerUsername is left empty in the result.
func (p *pgxGameRepository) Patch(ctx context.Context, patch *GamePatch) (*Game, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 3)
	if patch.Name != nil {
		sets = append(sets, um.SetCol("name").ToArg(*patch.Name))
	}
	if patch.Description != nil {
		sets = append(sets, um.SetCol("description").ToArg(*patch.Description))
	}
	sets = append(sets, um.SetCol("updated_at").ToArg(time.Now()))

	q := psql.Update(
		um.Table(p.t.Games),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning("id", "owner_id", "name", "description", "participant_count", "created_at", "updated_at"),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	g := &Game{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&g.ID,
		&g.OwnerID,
		&g.Name,
		&g.Description,
		&g.ParticipantCount,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// Delete removes the game; players and join requests go with it through ON DELETE CASCADE.
func (p *pgxGameRepository) Delete(ctx context.Context, gameID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From(p.t.Games),
		dm.Where(psql.Quote("id").EQ(psql.Arg(gameID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxGameRepository) AddPlayer(ctx context.Context, gameID, userID int64) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into(p.t.Players, p.t.GameColumn, "user_id"),
		im.Values(psql.Arg(gameID), psql.Arg(userID)),
		im.OnConflict(psql.Quote(p.t.GameColumn), psql.Quote("user_id")).DoNothing(),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return false, translatePgError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *pgxGameRepository) IncrementParticipants(ctx context.Context, gameID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table(p.t.Games),
		um.SetCol("participant_count").To(psql.Raw("participant_count + 1")),
		um.SetCol("updated_at").ToArg(time.Now()),
		um.Where(psql.Quote("id").EQ(psql.Arg(gameID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxGameRepository) IsPlayer(ctx context.Context, gameID, userID int64) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("user_id"),
		sm.From(p.t.Players),
		sm.Where(
			psql.Quote(p.t.GameColumn).EQ(psql.Arg(gameID)).
				And(psql.Quote("user_id").EQ(psql.Arg(userID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var id int64
	if err = e.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *pgxGameRepository) GetPlayers(ctx context.Context, gameID int64) ([]*Player, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(
			psql.Quote(p.t.Players, "user_id"),
			psql.Quote("users", "username"),
			psql.Quote(p.t.Players, "joined_at"),
		),
		sm.From(p.t.Players),
		sm.InnerJoin("users").On(psql.Quote("users", "id").EQ(psql.Quote(p.t.Players, "user_id"))),
		sm.Where(psql.Quote(p.t.Players, p.t.GameColumn).EQ(psql.Arg(gameID))),
		sm.OrderBy(psql.Quote(p.t.Players, "joined_at")),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Player, error) {
		pl := &Player{}
		if err := row.Scan(&pl.UserID, &pl.Username, &pl.JoinedAt); err != nil {
			return nil, err
		}
		return pl, nil
	})
}
