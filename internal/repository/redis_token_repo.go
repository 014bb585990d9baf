package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisTokenPrefix = "auth:token:"

type redisTokenRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisTokenRepository(client redis.UniversalClient) TokenRepository {
	return &redisTokenRepository{client: client, now: time.Now}
}

func redisTokenKey(tokenID string) string {
	return redisTokenPrefix + tokenID
}

// Save stores the token with a TTL matching its expiry so redis drops it on its own.
func (r *redisTokenRepository) Save(ctx context.Context, token *AccessToken) error {
	ttl := token.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return errors.New("token already expired")
	}

	ok, err := r.client.SetNX(ctx, redisTokenKey(token.ID), strconv.FormatInt(token.UserID, 10), ttl).Result()
	if err != nil {
		return errors.Wrap(err, "redis set token")
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (r *redisTokenRepository) Exists(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, redisTokenKey(tokenID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis exists token")
	}
	return n > 0, nil
}

func (r *redisTokenRepository) Delete(ctx context.Context, tokenID string) error {
	n, err := r.client.Del(ctx, redisTokenKey(tokenID)).Result()
	if err != nil {
		return errors.Wrap(err, "redis delete token")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
