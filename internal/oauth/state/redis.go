package state

import (
	"context"

	rdb "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "oauth:state:"

// Redis is the distributed store for multi-instance deployments. GETDEL is
// the atomic take; key expiry is the purge.
type Redis struct {
	c   *rdb.Client
	log zerolog.Logger
}

// NewRedis creates a redis-backed store.
func NewRedis(addr string, db int, log zerolog.Logger) *Redis {
	return &Redis{
		c:   rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		log: log,
	}
}

// Create generates a fresh token and records it with the standard TTL.
func (r *Redis) Create(ctx context.Context) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	if err := r.c.Set(ctx, keyPrefix+token, "1", TTL).Err(); err != nil {
		return "", err
	}

	return token, nil
}

// TryConsume removes the token and reports whether it existed. A token that
// outlived its TTL is already gone, so expiry needs no separate check.
func (r *Redis) TryConsume(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	v, err := r.c.GetDel(ctx, keyPrefix+token).Result()
	if err == rdb.Nil {
		return false
	}
	if err != nil {
		// A broken store must fail the CSRF check, never pass it.
		r.log.Error().Err(err).Msg("state store: redis GETDEL failed")
		return false
	}

	return v != ""
}

// Close releases the underlying redis connection.
func (r *Redis) Close() error {
	return r.c.Close()
}
