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

type JoinRequest struct {
	ID          int64      `db:"id"`
	RequesterID int64      `db:"requester_id"`
	TargetID    int64      `db:"target_id"`
	Accepted    bool       `db:"accepted"`
	CreatedAt   time.Time  `db:"created_at"`
	AcceptedAt  *time.Time `db:"accepted_at"`
}

type JoinRequestRepository interface {
	// Create returns ErrAlreadyExists for a second request on the same (requester, target)
	// and ErrNotFound when the target does not exist.
	Create(ctx context.Context, req *JoinRequest) error
	Get(ctx context.Context, requestID int64) (*JoinRequest, error)
	// GetForUpdate locks the request row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, requestID int64) (*JoinRequest, error)
	MarkAccepted(ctx context.Context, requestID int64, at time.Time) error
	Delete(ctx context.Context, requestID int64) error
	ListByRequester(ctx context.Context, requesterID int64) ([]*JoinRequest, error)
	// ListPendingForOwner returns not yet accepted requests on every game owned by ownerID.
	ListPendingForOwner(ctx context.Context, ownerID int64) ([]*JoinRequest, error)
}

type pgxJoinRequestRepository struct {
	pool *pgxpool.Pool
	t    GameTables
}

func NewPgxJoinRequestRepository(pool *pgxpool.Pool, tables GameTables) JoinRequestRepository {
	return &pgxJoinRequestRepository{pool: pool, t: tables}
}

func (p *pgxJoinRequestRepository) selectRequests(mods ...bob.Mod[*dialect.SelectQuery]) bob.BaseQuery[*dialect.SelectQuery] {
	q := psql.Select(
		sm.Columns(
			psql.Quote(p.t.Requests, "id"),
			psql.Quote(p.t.Requests, "requester_id"),
			psql.Quote(p.t.Requests, p.t.GameColumn),
			psql.Quote(p.t.Requests, "accepted"),
			psql.Quote(p.t.Requests, "created_at"),
			psql.Quote(p.t.Requests, "accepted_at"),
		),
		sm.From(p.t.Requests),
	)
	q.Apply(mods...)
	return q
}

func scanJoinRequest(row pgx.Row) (*JoinRequest, error) {
	r := &JoinRequest{}
	err := row.Scan(&r.ID, &r.RequesterID, &r.TargetID, &r.Accepted, &r.CreatedAt, &r.AcceptedAt)
	return r, err
}

func (p *pgxJoinRequestRepository) getOne(ctx context.Context, q bob.BaseQuery[*dialect.SelectQuery]) (*JoinRequest, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	r, err := scanJoinRequest(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (p *pgxJoinRequestRepository) queryRequests(ctx context.Context, q bob.BaseQuery[*dialect.SelectQuery]) ([]*JoinRequest, error) {
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*JoinRequest, error) {
		return scanJoinRequest(row)
	})
}

// Create inserts a pending request and fills in ID and CreatedAt.
func (p *pgxJoinRequestRepository) Create(ctx context.Context, req *JoinRequest) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into(p.t.Requests, "requester_id", p.t.GameColumn),
		im.Values(psql.Arg(req.RequesterID), psql.Arg(req.TargetID)),
		im.Returning("id", "accepted", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&req.ID, &req.Accepted, &req.CreatedAt)
	return translatePgError(err)
}

func (p *pgxJoinRequestRepository) Get(ctx context.Context, requestID int64) (*JoinRequest, error) {
	return p.getOne(ctx, p.selectRequests(
		sm.Where(psql.Quote(p.t.Requests, "id").EQ(psql.Arg(requestID))),
	))
}

func (p *pgxJoinRequestRepository) GetForUpdate(ctx context.Context, requestID int64) (*JoinRequest, error) {
	return p.getOne(ctx, p.selectRequests(
		sm.Where(psql.Quote(p.t.Requests, "id").EQ(psql.Arg(requestID))),
		sm.ForUpdate(p.t.Requests),
	))
}

// markAcceptedQuery only matches a still pending row, so a second accept affects nothing.
func (p *pgxJoinRequestRepository) markAcceptedQuery(requestID int64, at time.Time) bob.BaseQuery[*dialect.UpdateQuery] {
	return psql.Update(
		um.Table(p.t.Requests),
		um.SetCol("accepted").ToArg(true),
		um.SetCol("accepted_at").ToArg(at),
		um.Where(
			psql.Quote("id").EQ(psql.Arg(requestID)).
				And(psql.Quote("accepted").EQ(psql.Arg(false))),
		),
	)
}

func (p *pgxJoinRequestRepository) MarkAccepted(ctx context.Context, requestID int64, at time.Time) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := p.markAcceptedQuery(requestID, at).Build(ctx)
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

func (p *pgxJoinRequestRepository) Delete(ctx context.Context, requestID int64) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From(p.t.Requests),
		dm.Where(psql.Quote("id").EQ(psql.Arg(requestID))),
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

func (p *pgxJoinRequestRepository) ListByRequester(ctx context.Context, requesterID int64) ([]*JoinRequest, error) {
	return p.queryRequests(ctx, p.selectRequests(
		sm.Where(psql.Quote(p.t.Requests, "requester_id").EQ(psql.Arg(requesterID))),
		sm.OrderBy(psql.Quote(p.t.Requests, "id")),
	))
}

func (p *pgxJoinRequestRepository) pendingForOwnerQuery(ownerID int64) bob.BaseQuery[*dialect.SelectQuery] {
	return p.selectRequests(
		sm.InnerJoin(p.t.Games).On(psql.Quote(p.t.Games, "id").EQ(psql.Quote(p.t.Requests, p.t.GameColumn))),
		sm.Where(
			psql.Quote(p.t.Games, "owner_id").EQ(psql.Arg(ownerID)).
				And(psql.Quote(p.t.Requests, "accepted").EQ(psql.Arg(false))),
		),
		sm.OrderBy(psql.Quote(p.t.Requests, "id")),
	)
}

func (p *pgxJoinRequestRepository) ListPendingForOwner(ctx context.Context, ownerID int64) ([]*JoinRequest, error) {
	return p.queryRequests(ctx, p.pendingForOwnerQuery(ownerID))
}
