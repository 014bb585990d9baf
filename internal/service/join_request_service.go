package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/tabletop-hub/internal/db"
	"github.com/yakoovad/tabletop-hub/internal/model"
	"github.com/yakoovad/tabletop-hub/internal/repository"
	"github.com/yakoovad/tabletop-hub/pkg/logger"
	"go.uber.org/zap"
)

// JoinRequestService runs the request-to-join workflow for one game kind.
// A request is pending until the game owner accepts it or the requester withdraws it.
type JoinRequestService struct {
	tx   db.Transactor
	kind model.GameKind
	now  func() time.Time

	games    repository.GameRepository
	requests repository.JoinRequestRepository
}

func NewJoinRequestService(tx db.Transactor, kind model.GameKind) *JoinRequestService {
	return &JoinRequestService{tx: tx, kind: kind, now: time.Now}
}

func (j *JoinRequestService) Kind() model.GameKind {
	return j.kind
}

// Create files a pending request from callerID to join targetID. There is at most one request
// per (requester, target); the unique index settles concurrent submissions.
func (j *JoinRequestService) Create(ctx context.Context, callerID, targetID int64) (*model.JoinRequest, error) {
	l := logger.FromContext(ctx).With(
		zap.String("kind", string(j.kind)),
		zap.Int64("requester_id", callerID),
		zap.Int64("target_id", targetID),
	)

	_, err := j.games.Get(ctx, targetID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, j.targetNotFound()
	case err != nil:
		l.Error("failed to get target", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create request")
	}

	member, err := j.games.IsPlayer(ctx, targetID, callerID)
	if err != nil {
		l.Error("failed to check roster", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create request")
	}
	if member {
		return nil, NewError(ErrorCodeConflict, "you already take part in this "+string(j.kind))
	}

	req := &repository.JoinRequest{
		RequesterID: callerID,
		TargetID:    targetID,
	}
	err = j.requests.Create(ctx, req)
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		l.Warn("duplicate join request")
		return nil, NewError(ErrorCodeConflict, "your request has already been sent")
	case errors.Is(err, repository.ErrNotFound):
		return nil, j.targetNotFound()
	case err != nil:
		l.Error("failed to create join request", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create request")
	}

	l.Debug("join request created", zap.Int64("request_id", req.ID))
	return toModelJoinRequest(j.kind, req), nil
}

// Accept lets the owner of the target admit the requester. Roster, participant count and the
// request flag change in one transaction with the request and game rows locked.
func (j *JoinRequestService) Accept(ctx context.Context, requestID, callerID int64) (*model.JoinRequest, error) {
	l := logger.FromContext(ctx).With(
		zap.String("kind", string(j.kind)),
		zap.Int64("request_id", requestID),
		zap.Int64("caller_id", callerID),
	)

	var res *model.JoinRequest

	err := j.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		req, err := j.requests.GetForUpdate(txCtx, requestID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "request not found")
		case err != nil:
			l.Error("failed to get join request", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept request")
		}

		game, err := j.games.GetForUpdate(txCtx, req.TargetID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return j.targetNotFound()
		case err != nil:
			l.Error("failed to get target", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept request")
		}

		if game.OwnerID != callerID {
			l.Warn("caller does not own the target", zap.Int64("owner_id", game.OwnerID))
			return NewError(ErrorCodeForbidden, "you are not allowed to accept this request")
		}

		if req.Accepted {
			return NewError(ErrorCodeAlreadyAccepted, "the request has already been accepted")
		}

		inserted, err := j.games.AddPlayer(txCtx, game.ID, req.RequesterID)
		if err != nil {
			l.Error("failed to add player", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept request")
		}

		// participant_count mirrors the roster, so only a new roster row bumps it
		if inserted {
			if err = j.games.IncrementParticipants(txCtx, game.ID); err != nil {
				l.Error("failed to increment participants", zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to accept request")
			}
		}

		acceptedAt := j.now()
		if err = j.requests.MarkAccepted(txCtx, req.ID, acceptedAt); err != nil {
			l.Error("failed to mark request accepted", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept request")
		}

		req.Accepted = true
		req.AcceptedAt = &acceptedAt
		res = toModelJoinRequest(j.kind, req)

		l.Debug("join request accepted", zap.Int64("requester_id", req.RequesterID))
		return nil
	})

	if err = finish(err); err != nil {
		return nil, err
	}
	return res, nil
}

// Withdraw deletes a request. Only the requester may do so.
func (j *JoinRequestService) Withdraw(ctx context.Context, requestID, callerID int64) error {
	l := logger.FromContext(ctx).With(
		zap.String("kind", string(j.kind)),
		zap.Int64("request_id", requestID),
		zap.Int64("caller_id", callerID),
	)

	err := j.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		req, err := j.requests.GetForUpdate(txCtx, requestID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "request not found")
		case err != nil:
			l.Error("failed to get join request", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to withdraw request")
		}

		if req.RequesterID != callerID {
			l.Warn("caller is not the requester")
			return NewError(ErrorCodeForbidden, "you did not send this request")
		}

		err = j.requests.Delete(txCtx, requestID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "request not found")
		case err != nil:
			l.Error("failed to delete join request", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to withdraw request")
		}
		return nil
	})

	return finish(err)
}

// ListSent returns the caller's requests. No requests is reported as NOT_FOUND.
func (j *JoinRequestService) ListSent(ctx context.Context, callerID int64) ([]*model.JoinRequest, error) {
	reqs, err := j.requests.ListByRequester(ctx, callerID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list sent requests", zap.Int64("caller_id", callerID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list requests")
	}
	if len(reqs) == 0 {
		return nil, NewError(ErrorCodeNotFound, "you have not sent any request")
	}
	return toModelJoinRequests(j.kind, reqs), nil
}

// ListReceived returns pending requests on games the caller owns. Owning no games and having
// no pending requests are both NOT_FOUND, with different messages.
func (j *JoinRequestService) ListReceived(ctx context.Context, callerID int64) ([]*model.JoinRequest, error) {
	l := logger.FromContext(ctx)

	owned, err := j.games.ListByOwner(ctx, callerID)
	if err != nil {
		l.Error("failed to list owned games", zap.Int64("caller_id", callerID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list requests")
	}
	if len(owned) == 0 {
		return nil, NewError(ErrorCodeNotFound, "you have not created any "+string(j.kind))
	}

	reqs, err := j.requests.ListPendingForOwner(ctx, callerID)
	if err != nil {
		l.Error("failed to list received requests", zap.Int64("caller_id", callerID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list requests")
	}
	if len(reqs) == 0 {
		return nil, NewError(ErrorCodeNotFound, "there are no pending requests on your "+string(j.kind)+"s")
	}
	return toModelJoinRequests(j.kind, reqs), nil
}

func (j *JoinRequestService) targetNotFound() *Error {
	return NewError(ErrorCodeNotFound, string(j.kind)+" not found")
}

func (j *JoinRequestService) WithGameRepo(r repository.GameRepository) *JoinRequestService {
	j.games = r
	return j
}

func (j *JoinRequestService) WithJoinRequestRepo(r repository.JoinRequestRepository) *JoinRequestService {
	j.requests = r
	return j
}
