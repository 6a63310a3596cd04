package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/session"
)

// RedisStore persists conversation histories in Redis as JSON blobs.
// Keys are prefixed so multiple deployments can share an instance.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a Redis-backed history store
func NewRedisStore(cfg *config.Config) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	return &RedisStore{
		client:    client,
		keyPrefix: cfg.StoreKeyPrefix,
		ttl:       time.Duration(cfg.StoreTTLHours) * time.Hour,
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.keyPrefix + sessionID
}

// Load returns the stored history, or an empty slice for an unknown session
func (r *RedisStore) Load(ctx context.Context, sessionID string) ([]session.Message, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err == redis.Nil {
		return []session.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var history []session.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return history, nil
}

// Save replaces the stored history for the session
func (r *RedisStore) Save(ctx context.Context, sessionID string, history []session.Message) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sessionID, err)
	}

	if err := r.client.Set(ctx, r.key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes the session's history
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// Ping verifies connectivity, used by the readiness probe
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// NewStore creates the history store selected by STORE_DRIVER
func NewStore(cfg *config.Config) (session.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return NewMemoryStore(time.Duration(cfg.StoreTTLHours) * time.Hour), nil
	case "redis":
		return NewRedisStore(cfg), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
