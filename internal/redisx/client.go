// README: Redis client plus the claim/release guard used for idempotency and dedup.
package redisx

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

func New(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Guard claims keys with SET NX so that only the first caller proceeds.
type Guard struct {
	rdb *redis.Client
}

func NewGuard(rdb *redis.Client) *Guard {
	return &Guard{rdb: rdb}
}

// Claim returns false when the key is already held.
func (g *Guard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "claim %s", key)
	}
	return ok, nil
}

// Release drops a claim so a failed attempt can be retried.
func (g *Guard) Release(ctx context.Context, key string) error {
	return errors.Wrapf(g.rdb.Del(ctx, key).Err(), "release %s", key)
}
