package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/tabletop-hub/internal/db"
)

type pgxTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &pgxTokenRepository{pool: pool}
}

func (p *pgxTokenRepository) Save(ctx context.Context, token *AccessToken) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("auth_tokens", "id", "user_id", "expires_at"),
		im.Values(psql.Arg(token.ID), psql.Arg(token.UserID), psql.Arg(token.ExpiresAt)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return translatePgError(err)
}

func (p *pgxTokenRepository) Exists(ctx context.Context, tokenID string) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("user_id"),
		sm.From("auth_tokens"),
		sm.Where(
			psql.Quote("id").EQ(psql.Arg(tokenID)).
				And(psql.Quote("expires_at").GT(psql.Raw("now()"))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var userID int64
	if err = e.QueryRow(ctx, sql, args...).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *pgxTokenRepository) Delete(ctx context.Context, tokenID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("auth_tokens"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(tokenID))),
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
