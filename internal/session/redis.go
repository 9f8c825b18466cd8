package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/geocoder89/leadhub/internal/redisclient"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "leadhub:session:"
	userKeyPrefix    = "leadhub:user_sessions:"
)

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(client *redisclient.Client) *RedisStore {
	return &RedisStore{rdb: client.Raw()}
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	userKey := userKeyPrefix + s.Username

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKeyPrefix+s.ID, b, ttl)
		pipe.SAdd(ctx, userKey, s.ID)
		// every session shares the same TTL, so the newest one bounds the index
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	b, err := r.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}

	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeyPrefix+id)
		pipe.SRem(ctx, userKeyPrefix+s.Username, id)
		return nil
	})
	return err
}

func (r *RedisStore) DeleteUser(ctx context.Context, username string) error {
	userKey := userKeyPrefix + username

	ids, err := r.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, userKey)

	return r.rdb.Del(ctx, keys...).Err()
}
