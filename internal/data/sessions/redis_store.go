package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dbdict-backend/internal/platform/envutil"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type RedisStore struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStoreFromEnv connects to REDIS_ADDR. Sessions expire after
// SESSION_TTL_HOURS of inactivity (default 7 days, 0 disables expiry).
func NewRedisStoreFromEnv(log *logger.Logger) (*RedisStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := time.Duration(envutil.Int("SESSION_TTL_HOURS", 24*7)) * time.Hour
	return NewRedisStore(log, rdb, envutil.String("SESSION_KEY_PREFIX", "dbdict:session:"), ttl), nil
}

func NewRedisStore(log *logger.Logger, rdb goredis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		log:    log.With("service", "RedisSessionStore"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	if err := ValidateID(id); err != nil {
		return Session{}, err
	}
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return newSession(id, s.now().UTC()), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get session: %w", err)
	}
	return decodeSession(id, raw)
}

func (s *RedisStore) Save(ctx context.Context, in Session) (Session, error) {
	out, err := prepareSave(in, s.now().UTC())
	if err != nil {
		return Session{}, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(out.ID), raw, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("redis set session: %w", err)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	n, err := s.rdb.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists session: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func decodeSession(id string, raw []byte) (Session, error) {
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if out.ID == "" {
		out.ID = id
	}
	if out.History == nil {
		out.History = []Turn{}
	}
	return out, nil
}
