package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redisEnvelope wraps the stored value so a sliding expiration can be
// re-applied on every read.
type redisEnvelope[T any] struct {
	Value   *T            `json:"value"`
	Sliding time.Duration `json:"sliding,omitempty"`
}

// RedisRepo is a Redis-backed implementation of Repo. Entries are stored
// as JSON with a server-side TTL; Claim uses GETDEL so that at most one
// concurrent caller wins.
type RedisRepo[T any] struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepo creates a Redis entity store. The prefix namespaces keys so
// several entity types can share one database.
func NewRedisRepo[T any](client redis.UniversalClient, prefix string) *RedisRepo[T] {
	return &RedisRepo[T]{client: client, prefix: prefix}
}

var _ Repo[struct{}] = (*RedisRepo[struct{}])(nil)

func (r *RedisRepo[T]) key(key string) string {
	return r.prefix + ":" + key
}

func (r *RedisRepo[T]) Set(ctx context.Context, key string, value *T, opts Options) error {
	envelope := redisEnvelope[T]{Value: value, Sliding: opts.SlidingExpiration}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Set] marshal")
	}

	var ttl time.Duration
	switch {
	case !opts.AbsoluteExpiration.IsZero():
		ttl = time.Until(opts.AbsoluteExpiration)
	case opts.AbsoluteExpirationRelativeToNow > 0:
		ttl = opts.AbsoluteExpirationRelativeToNow
	case opts.SlidingExpiration > 0:
		ttl = opts.SlidingExpiration
	}
	if ttl < 0 {
		// Already past its expiration; make sure nothing lingers.
		return r.Remove(ctx, key)
	}

	if err := r.client.Set(ctx, r.key(key), payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Set] set")
	}
	return nil
}

func (r *RedisRepo[T]) Get(ctx context.Context, key string, removeOnRetrieval bool) (*T, error) {
	if removeOnRetrieval {
		return r.Claim(ctx, key)
	}

	payload, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Get] get")
	}

	var envelope redisEnvelope[T]
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Get] unmarshal")
	}

	if envelope.Sliding > 0 {
		if err := r.client.Expire(ctx, r.key(key), envelope.Sliding).Err(); err != nil {
			return nil, errors.Wrap(err, "[RedisRepo.Get] expire")
		}
	}
	return envelope.Value, nil
}

func (r *RedisRepo[T]) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Remove] del")
	}
	return nil
}

func (r *RedisRepo[T]) Claim(ctx context.Context, key string) (*T, error) {
	payload, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Claim] getdel")
	}

	var envelope redisEnvelope[T]
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Claim] unmarshal")
	}
	return envelope.Value, nil
}
