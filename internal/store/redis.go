package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mossy-p/voice-broker/config"
	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/redis/go-redis/v9"
)

// Redis stores room state in Redis so several broker processes share it.
type Redis struct {
	client *redis.Client
}

// Connect opens a Redis connection and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func agentKey(room string) string { return "room:" + room + ":agent" }
func peersKey(room string) string { return "room:" + room + ":peers" }

func (r *Redis) SetAgentConfig(ctx context.Context, room string, cfg agent.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode agent config: %w", err)
	}
	if err := r.client.Set(ctx, agentKey(room), data, roomTTL).Err(); err != nil {
		return fmt.Errorf("store agent config: %w", err)
	}
	return nil
}

func (r *Redis) AgentConfig(ctx context.Context, room string) (agent.Config, bool, error) {
	data, err := r.client.Get(ctx, agentKey(room)).Bytes()
	if errors.Is(err, redis.Nil) {
		return agent.Config{}, false, nil
	}
	if err != nil {
		return agent.Config{}, false, fmt.Errorf("load agent config: %w", err)
	}

	var cfg agent.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return agent.Config{}, false, fmt.Errorf("decode agent config: %w", err)
	}
	return cfg, true, nil
}

func (r *Redis) DeleteAgentConfig(ctx context.Context, room string) error {
	return r.client.Del(ctx, agentKey(room)).Err()
}

func (r *Redis) AddPeer(ctx context.Context, room, peerID string) error {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, peersKey(room), peerID)
	pipe.Expire(ctx, peersKey(room), roomTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add peer: %w", err)
	}
	return nil
}

func (r *Redis) RemovePeer(ctx context.Context, room, peerID string) error {
	return r.client.SRem(ctx, peersKey(room), peerID).Err()
}

func (r *Redis) PeerCount(ctx context.Context, room string) (int, error) {
	n, err := r.client.SCard(ctx, peersKey(room)).Result()
	if err != nil {
		return 0, fmt.Errorf("count peers: %w", err)
	}
	return int(n), nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
