package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisNearestCache keeps nearest-road distances in Redis with a TTL.
type RedisNearestCache struct {
	client  redis.UniversalClient
	profile string
	ttl     time.Duration
}

// NewRedisClient opens a client and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func NewRedisNearestCache(client redis.UniversalClient, profile string, ttl time.Duration) *RedisNearestCache {
	return &RedisNearestCache{client: client, profile: profile, ttl: ttl}
}

func (r *RedisNearestCache) key(p orb.Point) string {
	return "nearest:" + r.profile + ":" + domain.CoordinatesOf(p).String()
}

func (r *RedisNearestCache) GetMany(ctx context.Context, points []orb.Point) (_ map[orb.Point]float64, err error) {
	defer obs.Time(ctx, "nearest.redis.GetMany")(&err)

	uniq := uniquePoints(points)
	if len(uniq) == 0 {
		return map[orb.Point]float64{}, nil
	}

	keys := make([]string, len(uniq))
	for i, p := range uniq {
		keys[i] = r.key(p)
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get nearest redis: mget: %w", err)
	}

	out := make(map[orb.Point]float64, len(uniq))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("get nearest redis: parse %q: %w", keys[i], err)
		}
		out[uniq[i]] = d
	}
	return out, nil
}

func (r *RedisNearestCache) PutMany(ctx context.Context, distances map[orb.Point]float64) error {
	if len(distances) == 0 {
		return nil
	}

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for p, d := range distances {
			pipe.Set(ctx, r.key(p), strconv.FormatFloat(d, 'g', -1, 64), r.ttl)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("put nearest redis: %w", err)
	}
	return nil
}
