package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const cellKeyPrefix = "robot:command:"

// RedisConfig holds the configuration for the Redis-backed command store.
type RedisConfig struct {
	Logger   *slog.Logger
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps one cell per robot in Redis, so every hub replica sees
// the same last-written value. SET/GET/DEL on a single key gives the
// required last-write-wins semantics without any locking.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a new Redis-backed command store.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("redis config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{client: client, logger: cfg.Logger}, nil
}

// CellKey returns the Redis key holding the robot's cell.
func CellKey(robotID string) string {
	return cellKeyPrefix + robotID
}

// SetDesired implements Store.
func (s *RedisStore) SetDesired(ctx context.Context, robotID string, cmd Command, reason string) error {
	if !cmd.Valid() {
		return errInvalidCommand
	}
	if reason == "" {
		reason = ReasonManual
	}

	payload, err := json.Marshal(Cell{Command: cmd, Reason: reason})
	if err != nil {
		return fmt.Errorf("failed to encode command cell: %w", err)
	}

	if err := s.client.Set(ctx, CellKey(robotID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write command cell for robot %s: %w", robotID, err)
	}

	s.logger.Debug("command cell written",
		"robot_id", robotID,
		"command", string(cmd),
		"reason", reason,
	)
	return nil
}

// GetDesired implements Store.
func (s *RedisStore) GetDesired(ctx context.Context, robotID string) (Cell, error) {
	payload, err := s.client.Get(ctx, CellKey(robotID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return DefaultCell(), nil
		}
		return Cell{}, fmt.Errorf("failed to read command cell for robot %s: %w", robotID, err)
	}

	var cell Cell
	if err := json.Unmarshal(payload, &cell); err != nil {
		// A corrupt cell reads as stopped rather than poisoning the poll loop.
		s.logger.Error("corrupt command cell, reading as default",
			"robot_id", robotID,
			"error", err,
		)
		return DefaultCell(), nil
	}
	return cell, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, robotID string) error {
	if err := s.client.Del(ctx, CellKey(robotID)).Err(); err != nil {
		return fmt.Errorf("failed to clear command cell for robot %s: %w", robotID, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
