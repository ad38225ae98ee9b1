// README: Rating aggregator recomputes published reputation from the full review set.
package rating

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"gigmarket/internal/redisx"
	"gigmarket/internal/types"
)

type Repository interface {
	UserRatings(ctx context.Context, reviewee types.ID, dir Direction) ([]int, error)
	GigRatings(ctx context.Context, gigID types.ID) ([]int, error)
	WriteUserStat(ctx context.Context, id types.ID, dir Direction, st Stat) error
	WriteGigStat(ctx context.Context, id types.ID, st Stat) error
	ReadUserStat(ctx context.Context, id types.ID, dir Direction) (Stat, error)
	ReadGigStat(ctx context.Context, id types.ID) (Stat, error)
}

// Cache holds published stats for the read path. A miss returns ok=false.
// Set overwrites and belongs to recomputes; SetNX only fills an absent key and
// reports whether it did.
type Cache interface {
	Get(ctx context.Context, key string) (Stat, bool, error)
	Set(ctx context.Context, key string, st Stat) error
	SetNX(ctx context.Context, key string, st Stat) (bool, error)
}

const (
	subjectUser = "user"
	subjectGig  = "gig"
)

// Aggregator is the only writer of reputation stats. Every recompute is a full
// recompute, so concurrent runs for one subject converge.
type Aggregator struct {
	repo  Repository
	cache Cache
	log   logrus.FieldLogger
}

func NewAggregator(repo Repository, cache Cache, log logrus.FieldLogger) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{repo: repo, cache: cache, log: log}
}

// Recompute rebuilds the stat of a user in one direction.
func (a *Aggregator) Recompute(ctx context.Context, subject types.ID, dir Direction) (Stat, error) {
	if subject == "" {
		return Stat{}, ErrBadRequest
	}
	if _, ok := ParseDirection(string(dir)); !ok {
		return Stat{}, errors.Wrapf(ErrBadRequest, "unknown direction %q", dir)
	}
	ratings, err := a.repo.UserRatings(ctx, subject, dir)
	if err != nil {
		return Stat{}, err
	}
	st := Aggregate(ratings)
	if err := a.repo.WriteUserStat(ctx, subject, dir, st); err != nil {
		return Stat{}, err
	}
	a.refresh(ctx, redisx.RatingKey(subjectUser, string(subject), string(dir)), st)
	return st, nil
}

// RecomputeGig rebuilds a gig's stat from the client-direction reviews left on its orders.
func (a *Aggregator) RecomputeGig(ctx context.Context, gigID types.ID) (Stat, error) {
	if gigID == "" {
		return Stat{}, ErrBadRequest
	}
	ratings, err := a.repo.GigRatings(ctx, gigID)
	if err != nil {
		return Stat{}, err
	}
	st := Aggregate(ratings)
	if err := a.repo.WriteGigStat(ctx, gigID, st); err != nil {
		return Stat{}, err
	}
	a.refresh(ctx, redisx.RatingKey(subjectGig, string(gigID), string(DirectionClient)), st)
	return st, nil
}

// UserStat returns the published stat, served from cache when possible.
func (a *Aggregator) UserStat(ctx context.Context, subject types.ID, dir Direction) (Stat, error) {
	if _, ok := ParseDirection(string(dir)); !ok {
		return Stat{}, errors.Wrapf(ErrBadRequest, "unknown direction %q", dir)
	}
	key := redisx.RatingKey(subjectUser, string(subject), string(dir))
	return a.cached(ctx, key, func() (Stat, error) {
		return a.repo.ReadUserStat(ctx, subject, dir)
	})
}

func (a *Aggregator) GigStat(ctx context.Context, gigID types.ID) (Stat, error) {
	key := redisx.RatingKey(subjectGig, string(gigID), string(DirectionClient))
	return a.cached(ctx, key, func() (Stat, error) {
		return a.repo.ReadGigStat(ctx, gigID)
	})
}

func (a *Aggregator) cached(ctx context.Context, key string, load func() (Stat, error)) (Stat, error) {
	if a.cache != nil {
		st, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.log.WithError(err).WithField("key", key).Warn("rating cache read failed")
		} else if ok {
			return st, nil
		}
	}
	st, err := load()
	if err != nil {
		return Stat{}, err
	}
	a.fill(ctx, key, st)
	return st, nil
}

// fill caches a loaded value only when no recompute has published one since.
func (a *Aggregator) fill(ctx context.Context, key string, st Stat) {
	if a.cache == nil {
		return
	}
	if _, err := a.cache.SetNX(ctx, key, st); err != nil {
		a.log.WithError(err).WithField("key", key).Warn("rating cache fill failed")
	}
}

func (a *Aggregator) refresh(ctx context.Context, key string, st Stat) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, key, st); err != nil {
		a.log.WithError(err).WithField("key", key).Warn("rating cache write failed")
	}
}

// RedisCache stores stats as JSON with a short TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: redisx.TTLRatingCache}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Stat, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Stat{}, false, nil
	}
	if err != nil {
		return Stat{}, false, errors.Wrap(err, "redis get")
	}
	var st Stat
	if err := json.Unmarshal(b, &st); err != nil {
		return Stat{}, false, errors.Wrap(err, "decode cached stat")
	}
	return st, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, st Stat) error {
	b, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encode stat")
	}
	return errors.Wrap(c.rdb.Set(ctx, key, b, c.ttl).Err(), "redis set")
}

func (c *RedisCache) SetNX(ctx context.Context, key string, st Stat) (bool, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return false, errors.Wrap(err, "encode stat")
	}
	ok, err := c.rdb.SetNX(ctx, key, b, c.ttl).Result()
	return ok, errors.Wrap(err, "redis setnx")
}
