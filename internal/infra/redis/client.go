// Package redis provides the optional cross-restart cache for the
// stat-office session.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/regfetch/internal/core/domain"
)

const sessionKey = "regfetch:statoffice:session"

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// SessionStore caches the stat-office session in Redis so a restarted
// process reuses a still-valid session instead of logging in again.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a store and verifies connectivity.
func NewSessionStore(cfg Config) (*SessionStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &SessionStore{rdb: rdb}, nil
}

// Load fetches the cached session. Returns an error when none is cached.
func (s *SessionStore) Load(ctx context.Context) (*domain.Session, error) {
	val, err := s.rdb.Get(ctx, sessionKey).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("no cached session")
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("cached session corrupt: %w", err)
	}
	return &sess, nil
}

// Save caches the session with a TTL matching its remaining lifetime.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refusing to cache expired session")
	}
	if err := s.rdb.Set(ctx, sessionKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Delete drops the cached session.
func (s *SessionStore) Delete(ctx context.Context) error {
	return s.rdb.Del(ctx, sessionKey).Err()
}

// Close closes the Redis connection.
func (s *SessionStore) Close() error {
	return s.rdb.Close()
}
