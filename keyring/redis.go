package keyring

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRingSize is the number of keys Rotate keeps when keep <= 0.
const DefaultRingSize = 3

// RedisSource loads the key ring from a Redis list, newest key first.
// Several processes sharing the list rotate in lockstep.
type RedisSource struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisSource returns a source reading "<prefix>:keys". An empty prefix
// defaults to "cs".
func NewRedisSource(redisClient redis.UniversalClient, prefix string) *RedisSource {
	if prefix == "" {
		prefix = "cs"
	}
	return &RedisSource{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisSource) keysKey() string {
	return s.prefix + ":keys"
}

func (s *RedisSource) currentKey() string {
	return s.prefix + ":current"
}

// Keys implements Source.
func (s *RedisSource) Keys(ctx context.Context) ([][]byte, error) {
	if s == nil || s.redis == nil {
		return nil, ErrKeyStoreUnavailable
	}
	vals, err := s.redis.LRange(ctx, s.keysKey(), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoKeys
		}
		return nil, fmt.Errorf("%w: %v", ErrKeyStoreUnavailable, err)
	}

	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		if v == "" {
			continue
		}
		out = append(out, []byte(v))
	}
	if len(out) == 0 {
		return nil, ErrNoKeys
	}
	return out, nil
}

// Rotate makes k the signing key and trims the ring to keep entries, so the
// previous keys still verify until they fall off the end.
func (s *RedisSource) Rotate(ctx context.Context, k Key, keep int) error {
	if s == nil || s.redis == nil {
		return ErrKeyStoreUnavailable
	}
	if len(k.Secret) == 0 {
		return ErrNoKeys
	}
	if keep <= 0 {
		keep = DefaultRingSize
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.keysKey(), k.Secret)
		pipe.LTrim(ctx, s.keysKey(), 0, int64(keep-1))
		pipe.Set(ctx, s.currentKey(), k.ID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyStoreUnavailable, err)
	}
	return nil
}

// CurrentID returns the ID of the key installed by the last Rotate.
func (s *RedisSource) CurrentID(ctx context.Context) (string, error) {
	if s == nil || s.redis == nil {
		return "", ErrKeyStoreUnavailable
	}
	id, err := s.redis.Get(ctx, s.currentKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoKeys
		}
		return "", fmt.Errorf("%w: %v", ErrKeyStoreUnavailable, err)
	}
	return id, nil
}
