package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/pkg/errors"
)

// Service: wraps a Valkey client for caching and the quota ledger counters.
type Service struct {
	client    valkey.Client
	logger    *slog.Logger
	closeOnce sync.Once
}

// Config: Valkey connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewCacheService: creates a Valkey cache service and establishes the connection.
func NewCacheService(cfg Config, logger *slog.Logger) (*Service, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		BlockingPoolSize:  constants.ValkeyConfig.BlockingPoolSize,
		PipelineMultiplex: constants.ValkeyConfig.PipelineMultiplex,
		Dialer:            net.Dialer{Timeout: constants.ValkeyConfig.ReadyTimeout},
	})
	if err != nil {
		return nil, errors.NewCacheError("failed to create cache client", "init", "", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ValkeyConfig.ReadyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, errors.NewCacheError("failed to connect to cache store", "ping", "", err)
	}

	logger.Info("Cache store connected",
		slog.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		slog.Int("db", cfg.DB),
		slog.Int("pool_size", constants.ValkeyConfig.BlockingPoolSize),
	)

	return &Service{
		client: client,
		logger: logger,
	}, nil
}

// NewWithClient: wraps an already-connected Valkey client. Useful when the
// caller manages the client lifecycle (or in tests against a fake server).
func NewWithClient(client valkey.Client, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
	}
}

// Get: fetches a key and unmarshals the value into dest. A missing key is not
// an error; dest is left untouched.
func (c *Service) Get(ctx context.Context, key string, dest any) error {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if valkey.IsValkeyNil(resp.Error()) {
		return nil
	}
	if resp.Error() != nil {
		c.logger.Error("Cache get operation failed", slog.String("key", key), slog.Any("error", resp.Error()))
		return errors.NewCacheError("get failed", "get", key, resp.Error())
	}

	value, err := resp.ToString()
	if err != nil {
		c.logger.Error("Cache value conversion failed", slog.String("key", key), slog.Any("error", err))
		return errors.NewCacheError("conversion failed", "get", key, err)
	}

	if dest != nil {
		if err := json.Unmarshal([]byte(value), dest); err != nil {
			c.logger.Error("Cache value unmarshal failed", slog.String("key", key), slog.Any("error", err))
			return errors.NewCacheError("unmarshal failed", "get", key, err)
		}
	}

	return nil
}

// GetString: fetches a key as a raw string. Returns ("", false, nil) when the
// key does not exist.
func (c *Service) GetString(ctx context.Context, key string) (string, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if valkey.IsValkeyNil(resp.Error()) {
		return "", false, nil
	}
	if resp.Error() != nil {
		return "", false, errors.NewCacheError("get failed", "get", key, resp.Error())
	}

	value, err := resp.ToString()
	if err != nil {
		return "", false, errors.NewCacheError("conversion failed", "get", key, err)
	}
	return value, true, nil
}

// Set: marshals the value to JSON and stores it, with an optional TTL.
func (c *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	var cmd valkey.Completed
	if ttl > 0 {
		cmd = c.client.B().Set().Key(key).Value(string(jsonData)).ExSeconds(int64(ttl.Seconds())).Build()
	} else {
		cmd = c.client.B().Set().Key(key).Value(string(jsonData)).Build()
	}

	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Error("Cache set failed", slog.String("key", key), slog.Any("error", err))
		return errors.NewCacheError("set failed", "set", key, err)
	}

	return nil
}

// SetString: stores a raw string value, with an optional TTL.
func (c *Service) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = c.client.B().Set().Key(key).Value(value).ExSeconds(int64(ttl.Seconds())).Build()
	} else {
		cmd = c.client.B().Set().Key(key).Value(value).Build()
	}

	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Error("Cache set failed", slog.String("key", key), slog.Any("error", err))
		return errors.NewCacheError("set failed", "set", key, err)
	}
	return nil
}

// IncrBy: atomically increments a counter key and returns the new value.
func (c *Service) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	resp := c.client.Do(ctx, c.client.B().Incrby().Key(key).Increment(delta).Build())
	if resp.Error() != nil {
		c.logger.Error("Cache incrby failed", slog.String("key", key), slog.Any("error", resp.Error()))
		return 0, errors.NewCacheError("incrby failed", "incrby", key, resp.Error())
	}

	value, err := resp.AsInt64()
	if err != nil {
		return 0, errors.NewCacheError("incrby conversion failed", "incrby", key, err)
	}
	return value, nil
}

// GetInt64: fetches a counter key as an integer. Returns (0, nil) when the key
// does not exist.
func (c *Service) GetInt64(ctx context.Context, key string) (int64, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if valkey.IsValkeyNil(resp.Error()) {
		return 0, nil
	}
	if resp.Error() != nil {
		return 0, errors.NewCacheError("get failed", "get", key, resp.Error())
	}

	value, err := resp.AsInt64()
	if err != nil {
		return 0, errors.NewCacheError("conversion failed", "get", key, err)
	}
	return value, nil
}

// Del: deletes a key.
func (c *Service) Del(ctx context.Context, key string) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error(); err != nil {
		c.logger.Error("Cache delete failed", slog.String("key", key), slog.Any("error", err))
		return errors.NewCacheError("delete failed", "delete", key, err)
	}
	return nil
}

// Expire: sets a TTL on an existing key.
func (c *Service) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Do(ctx, c.client.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build()).Error(); err != nil {
		c.logger.Error("Cache expire failed", slog.String("key", key), slog.Any("error", err))
		return errors.NewCacheError("expire failed", "expire", key, err)
	}
	return nil
}

// Exists: reports whether a key exists.
func (c *Service) Exists(ctx context.Context, key string) (bool, error) {
	resp := c.client.Do(ctx, c.client.B().Exists().Key(key).Build())
	if resp.Error() != nil {
		c.logger.Error("Cache exists failed", slog.String("key", key), slog.Any("error", resp.Error()))
		return false, errors.NewCacheError("exists failed", "exists", key, resp.Error())
	}

	count, err := resp.AsInt64()
	if err != nil {
		return false, errors.NewCacheError("exists conversion failed", "exists", key, err)
	}

	return count > 0, nil
}

// Close: shuts down the cache connection.
func (c *Service) Close() error {
	c.closeOnce.Do(func() {
		if c.client == nil {
			return
		}

		c.client.Close()
		c.logger.Info("Cache store disconnected")
	})

	return nil
}

// IsConnected: reports whether the cache store answers PING.
func (c *Service) IsConnected(ctx context.Context) bool {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error() == nil
}

// WaitUntilReady: blocks until the cache store answers PING or the timeout
// elapses.
func (c *Service) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for cache store to be ready")
		case <-ticker.C:
			if c.IsConnected(ctx) {
				return nil
			}
		}
	}
}

// GetClient: exposes the underlying Valkey client.
func (c *Service) GetClient() valkey.Client {
	return c.client
}
