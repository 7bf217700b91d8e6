package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/port"
)

// DefaultKeyPrefix is prepended to the token to form the session hash key
const DefaultKeyPrefix = "session:"

// RedisStore resolves session tokens written by the school portal. Each
// session is a hash at {prefix}{token} with fields id, role and name.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore creates a session store over client
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

// Get returns the session for token, or nil when it is unknown or incomplete
func (s *RedisStore) Get(ctx context.Context, token string) (*port.Session, error) {
	if token == "" {
		return nil, nil
	}

	data, err := s.client.HGetAll(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		s.logger.Error("Failed to read session", zap.Error(err))
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return parseSession(data), nil
}

// Ping checks the redis server is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseSession(data map[string]string) *port.Session {
	if len(data) == 0 || data["id"] == "" || data["role"] == "" {
		return nil
	}
	return &port.Session{
		UserID: data["id"],
		Role:   data["role"],
		Name:   data["name"],
	}
}

var _ port.SessionStore = (*RedisStore)(nil)
