// README: Redis client initialization for idempotency keys, dedup claims and rating cache.
package infra

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"gigmarket/internal/redisx"
)

func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redisx.New(addr, password, db)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}
	return rdb, nil
}
