package publish

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures live notification of scan envelopes over a Redis
// pub/sub channel. Messages are fire-and-forget: subscribers that are not
// connected miss them.
type RedisConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Addr         string        `json:"addr" yaml:"addr"`
	Password     string        `json:"-" yaml:"password"`
	DB           int           `json:"db" yaml:"db" validate:"gte=0"`
	Channel      string        `json:"channel" yaml:"channel"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" validate:"gte=0"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries"`
	TLSEnabled   bool          `json:"tls_enabled" yaml:"tls_enabled"`
}

// DefaultRedisConfig returns a disabled notifier for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Channel:      "sentinel:scans",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		MaxRetries:   3,
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *RedisConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return errors.New("publish: redis addr is required")
	}
	if c.Channel == "" {
		return errors.New("publish: redis channel is required")
	}
	return nil
}

// redisPublisher is the part of *redis.Client the notifier uses.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisPublisher announces envelopes on a Redis channel.
type RedisPublisher struct {
	client  redisPublisher
	channel string
	version string
	logger  *slog.Logger
	closed  atomic.Bool

	published   atomic.Int64
	subscribers atomic.Int64
	errors      atomic.Int64
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(cfg RedisConfig, version string, logger *slog.Logger) (*RedisPublisher, error) {
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	client := redis.NewClient(opts)

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newRedisPublisher(client, cfg.Channel, version, logger), nil
}

func newRedisPublisher(client redisPublisher, channel, version string, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		version: version,
		logger:  logger.With("component", "redis-publisher", "channel", channel),
	}
}

// Publish sends each envelope as one message. It stops at the first failure.
func (p *RedisPublisher) Publish(ctx context.Context, envelopes ...Envelope) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	for _, env := range envelopes {
		if env.Version == "" {
			env.Version = p.version
		}
		data, err := env.Marshal()
		if err != nil {
			return err
		}
		n, err := p.client.Publish(ctx, p.channel, data).Result()
		if err != nil {
			p.errors.Add(1)
			return fmt.Errorf("publish: redis publish failed: %w", err)
		}
		p.published.Add(1)
		p.subscribers.Add(n)
		if n == 0 {
			p.logger.Debug("no subscribers received envelope", "scan_id", env.ScanID)
		}
	}
	return nil
}

// RedisStats holds notifier counters. Deliveries counts messages received
// across all subscribers.
type RedisStats struct {
	Published  int64
	Deliveries int64
	Errors     int64
}

// Stats returns the notifier counters.
func (p *RedisPublisher) Stats() RedisStats {
	return RedisStats{
		Published:  p.published.Load(),
		Deliveries: p.subscribers.Load(),
		Errors:     p.errors.Load(),
	}
}

// Close closes the Redis connection. It is safe to call more than once.
func (p *RedisPublisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.client.Close()
}
