package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeSessionsKey = "active_sessions"

// Registry mirrors session lifecycles into shared storage so other processes
// can see which relay sessions are live.
type Registry interface {
	Register(ctx context.Context, id string, createdAt time.Time) error
	SetState(ctx context.Context, id string, state State) error
	Remove(ctx context.Context, id string) error
	Close() error
}

// RedisRegistry stores each session as a hash under session:<id> and keeps the
// ids of live sessions in the active_sessions set.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRegistry returns a Redis backed registry, or a no-op registry when
// Redis cannot be reached. The relay keeps working either way.
func ConnectRegistry(ctx context.Context, addr, password string, ttl time.Duration, logger *slog.Logger) Registry {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("⚠️ redis unavailable, session registry disabled", slog.String("addr", addr), slog.Any("err", err))
		_ = client.Close()
		return NopRegistry{}
	}

	logger.Info("✅ connected to redis", slog.String("addr", addr))
	return NewRedisRegistry(client, ttl)
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (r *RedisRegistry) Register(ctx context.Context, id string, createdAt time.Time) error {
	now := time.Now()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(id), map[string]interface{}{
			"created_at":    createdAt.Format(time.RFC3339),
			"last_activity": now.Format(time.RFC3339),
			"status":        string(StateConnecting),
		})
		pipe.SAdd(ctx, activeSessionsKey, id)
		pipe.Expire(ctx, sessionKey(id), r.ttl)
		return nil
	})
	return err
}

func (r *RedisRegistry) SetState(ctx context.Context, id string, state State) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(id), map[string]interface{}{
			"last_activity": time.Now().Format(time.RFC3339),
			"status":        string(state),
		})
		pipe.Expire(ctx, sessionKey(id), r.ttl)
		return nil
	})
	return err
}

func (r *RedisRegistry) Remove(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, activeSessionsKey, id)
		return nil
	})
	return err
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// NopRegistry discards every update.
type NopRegistry struct{}

func (NopRegistry) Register(context.Context, string, time.Time) error { return nil }
func (NopRegistry) SetState(context.Context, string, State) error { return nil }
func (NopRegistry) Remove(context.Context, string) error { return nil }
func (NopRegistry) Close() error { return nil }
