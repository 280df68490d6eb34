package hashgate

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

// RedisKeyPrefix namespaces gate entries in Redis.
const RedisKeyPrefix = "codeagent:filehash:"

// RedisConfig configures the Redis gate.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// RedisGate shares entries between workers through Redis.
type RedisGate struct {
	client *redis.Client
}

var _ Gate = (*RedisGate)(nil)

// NewRedisGate creates a gate. It does not contact the server.
func NewRedisGate(cfg RedisConfig) *RedisGate {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return NewRedisGateWithClient(redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}))
}

// NewRedisGateWithClient wraps an existing client.
func NewRedisGateWithClient(client *redis.Client) *RedisGate {
	return &RedisGate{client: client}
}

func redisKey(root, path string) string {
	return RedisKeyPrefix + Key(root, path)
}

// ShouldSkip implements Gate.
func (g *RedisGate) ShouldSkip(ctx context.Context, root, path, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	stored, err := g.client.Get(ctx, redisKey(root, path)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.New(apperrors.ErrCodeNetworkUnavailable, "redis hash gate lookup failed", err)
	}
	return stored == hash, nil
}

// Commit implements Gate.
func (g *RedisGate) Commit(ctx context.Context, root, path, hash string) error {
	if err := g.client.Set(ctx, redisKey(root, path), hash, 0).Err(); err != nil {
		return apperrors.New(apperrors.ErrCodeNetworkUnavailable, "redis hash gate write failed", err)
	}
	return nil
}

// Forget implements Gate.
func (g *RedisGate) Forget(ctx context.Context, root, path string) error {
	if err := g.client.Del(ctx, redisKey(root, path)).Err(); err != nil {
		return apperrors.New(apperrors.ErrCodeNetworkUnavailable, "redis hash gate delete failed", err)
	}
	return nil
}

// Close implements Gate.
func (g *RedisGate) Close() error {
	return g.client.Close()
}
