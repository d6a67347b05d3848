package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyMissing is returned by the guarded writes when the guard key does not exist.
var ErrKeyMissing = errors.New("guard key missing")

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *Store) ListLen(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}

func (s *Store) ListGetAll(ctx context.Context, key string) ([]string, error) {
	return s.client.LRange(ctx, key, 0, -1).Result()
}

// SortedMembers returns the members of a sorted set by ascending score.
func (s *Store) SortedMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.ZRange(ctx, key, 0, -1).Result()
}

// CreateIndexed writes hash fields under key and indexes key's member in indexKey at score,
// all in one MULTI/EXEC. It reports false if key already existed.
func (s *Store) CreateIndexed(ctx context.Context, key string, fields map[string]interface{}, indexKey, member string, score float64) (bool, error) {
	created := false
	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			pipe.ZAdd(ctx, indexKey, redis.Z{Score: score, Member: member})
			return nil
		})
		created = err == nil
		return err
	}, key)
	return created, err
}

// AppendSequenced increments counterKey and pushes value onto listKey in one MULTI/EXEC,
// provided guardKey exists. Only guardKey is watched, so concurrent appends never abort each other.
func (s *Store) AppendSequenced(ctx context.Context, guardKey, counterKey, listKey string, value interface{}) (int64, error) {
	var seq int64
	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, guardKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrKeyMissing
		}
		var incr *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, counterKey)
			pipe.RPush(ctx, listKey, value)
			return nil
		})
		if err != nil {
			return err
		}
		seq = incr.Val()
		return nil
	}, guardKey)
	return seq, err
}

// DeleteIndexed removes keys and the member from indexKey atomically. It reports false if guardKey was absent.
func (s *Store) DeleteIndexed(ctx context.Context, guardKey, indexKey, member string, keys ...string) (bool, error) {
	var deleted bool
	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, guardKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, append([]string{guardKey}, keys...)...)
			pipe.ZRem(ctx, indexKey, member)
			return nil
		})
		deleted = err == nil
		return err
	}, guardKey)
	return deleted, err
}

const maxWatchRetries = 5

// watch runs fn as an optimistic transaction, retrying when a watched key changed underneath it.
func (s *Store) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}
