package repository

import (
	"context"
	"time"
)

// AccessToken is the server side record of an issued token. A token whose record is gone is revoked.
type AccessToken struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

type TokenRepository interface {
	Save(ctx context.Context, token *AccessToken) error
	// Exists reports whether the token is live: stored and not expired.
	Exists(ctx context.Context, tokenID string) (bool, error)
	// Delete returns ErrNotFound when there is nothing to revoke.
	Delete(ctx context.Context, tokenID string) error
}
