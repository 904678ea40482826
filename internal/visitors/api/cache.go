package api

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "visitors:api"
	versionKey        = keyPrefix + ":version"
	invalidateChannel = "visitors.api.invalidate"
)

// Cache stores raw Analytics API response bodies in Redis. Keys embed a
// generation number; Bump moves every process sharing the Redis to a new
// generation so stale bodies simply expire.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns a response cache. A nil client yields a cache that never
// hits.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current generation, starting at 1.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil {
		return 0, err
	}
	if ver < 1 {
		return 1, nil
	}
	return ver, nil
}

// Key builds the cache key of one endpoint call in the current generation.
// Segments are query-escaped so a ':' inside a project name cannot collide
// with another endpoint's parameters.
func (c *Cache) Key(ctx context.Context, endpoint string, params ...string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(params)+3)
	parts = append(parts, keyPrefix, "v"+strconv.FormatInt(ver, 10), url.QueryEscape(endpoint))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p))
	}
	return strings.Join(parts, ":"), nil
}

// Lookup returns the stored body for key. A miss is not an error.
func (c *Cache) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	body, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return body, true, nil
}

// Store saves a response body under key for the configured TTL.
func (c *Cache) Store(ctx context.Context, key string, body []byte) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Set(ctx, key, body, c.ttl).Err()
}

// Bump starts a new generation and announces it to listeners.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	if _, err := c.Version(ctx); err != nil {
		return err
	}
	ver, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, invalidateChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation follows generation announcements on channel (the
// default channel when empty) until ctx ends. Announcements only ever move
// the generation forward, which matters when several Redis instances relay
// them.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string, logger *slog.Logger) error {
	if !c.enabled() {
		return nil
	}
	if channel == "" {
		channel = invalidateChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					logger.Warn("ignoring cache invalidation", slog.String("payload", msg.Payload))
					continue
				}
				if err := c.advance(ctx, ver); err != nil {
					logger.Warn("apply cache invalidation", slog.Int64("version", ver), slog.Any("error", err))
				}
			}
		}
	}()
	return nil
}

// advance raises the stored generation to ver if it is behind.
func (c *Cache) advance(ctx context.Context, ver int64) error {
	current, err := c.Version(ctx)
	if err != nil || current >= ver {
		return err
	}
	return c.client.Set(ctx, versionKey, ver, 0).Err()
}
