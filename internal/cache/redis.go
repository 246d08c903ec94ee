package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a go-redis client to the Cache interface. Tags are modeled as
// Redis sets of member keys; InvalidateTag deletes the tagged keys then the
// set itself. This is the production cache for the Operation State Tracker
// (C8), which spec §5 requires to be "shared across replicas".
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing *redis.Client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return err
	}
	for _, tag := range tags {
		tagKey := "tag:" + tag
		if err := r.client.SAdd(ctx, tagKey, key).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) InvalidateTag(ctx context.Context, tag string) error {
	tagKey := "tag:" + tag
	members, err := r.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return err
	}
	if len(members) > 0 {
		if err := r.client.Del(ctx, members...).Err(); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, tagKey).Err()
}

// ScanPrefix uses Redis's cursor-based SCAN command, never KEYS, so
// discovery never blocks the server on a large keyspace (spec §4.8).
func (r *Redis) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
