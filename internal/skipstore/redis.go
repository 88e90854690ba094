package skipstore

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each skip set as a Redis set under prefix+identifier key.
type RedisStore struct {
	rdb    goredis.Cmdable
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// RedisConfig configures Dial.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Dial connects to Redis and verifies the connection with a ping.
func Dial(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisStore, *goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStore(rdb, cfg.KeyPrefix, cfg.TTL, logger), rdb, nil
}

// NewRedisStore wraps an existing client. A non-positive ttl keeps sets forever.
func NewRedisStore(rdb goredis.Cmdable, prefix string, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "skipstore").Logger(),
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Load implements Store. Tokens that are no longer known sources are dropped.
func (s *RedisStore) Load(ctx context.Context, key string) (domain.SkipSet, error) {
	members, err := s.rdb.SMembers(ctx, s.key(key)).Result()
	if err != nil {
		return domain.SkipSet{}, fmt.Errorf("loading skip set %s: %w", key, err)
	}

	names := make([]domain.SourceName, 0, len(members))
	for _, m := range members {
		name, err := domain.ParseSourceName(m)
		if err != nil {
			s.logger.Warn().Str("key", key).Str("token", m).Msg("dropping unknown source in stored skip set")
			continue
		}
		names = append(names, name)
	}
	return domain.NewSkipSet(names...), nil
}

// Save implements Store. SADD and EXPIRE run in one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, key string, set domain.SkipSet) error {
	if set.Len() == 0 {
		return nil
	}

	tokens := set.Strings()
	members := make([]any, len(tokens))
	for i, t := range tokens {
		members[i] = t
	}

	k := s.key(key)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SAdd(ctx, k, members...)
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving skip set %s: %w", key, err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("clearing skip set %s: %w", key, err)
	}
	return nil
}
