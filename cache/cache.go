// Package cache keeps rendered inventory output in Redis so repeated
// `--list` and `--host` calls from Ansible do not query Neo4j every time.
// Entries are namespaced by representing node and dropped on every store.
package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	ansiblegraph "github.com/ntoofu/neo4j-ansible-inventory"
)

// Cache stores rendered inventory documents.
type Cache interface {
	// Get returns the cached document. ok is false on a miss.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key. A zero ttl keeps the entry until it is
	// invalidated.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Invalidate removes every entry under namespace.
	Invalidate(ctx context.Context, namespace string) error

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// Redis implements Cache using go-redis/v9.
type Redis struct {
	client *redis.Client
}

var _ Cache = (*Redis)(nil)

// NewRedis creates a Redis cache with the given options and checks the
// connection.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 2 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 2 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 2 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if opts.TLS != nil {
		redisOpts.TLSConfig = opts.TLS
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// Get returns the document stored under key.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores data under key.
func (c *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes the namespace's keys, found with SCAN so a large
// keyspace is never blocked.
func (c *Redis) Invalidate(ctx context.Context, namespace string) error {
	iter := c.client.Scan(ctx, 0, escapePattern(namespace)+":*", 100).Iterator()

	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", namespace, err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", namespace, err)
	}
	return flush()
}

// Ping checks that Redis answers.
func (c *Redis) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Namespace returns the key prefix shared by every entry of one logical
// inventory.
func Namespace(prefix string, def *ansiblegraph.Definition) string {
	return formatKeyName(prefix, def.RepresentingLabel, def.RepresentingName)
}

// ListKey is the key of the rendered `--list` document.
func ListKey(prefix string, def *ansiblegraph.Definition) string {
	return formatKeyName(Namespace(prefix, def), "list")
}

// HostKey is the key of one host's rendered variables.
func HostKey(prefix string, def *ansiblegraph.Definition, host string) string {
	return formatKeyName(Namespace(prefix, def), "host", host)
}

// formatKeyName creates a Redis key from parts.
func formatKeyName(parts ...string) string {
	return strings.Join(parts, ":")
}

// escapePattern quotes glob metacharacters for SCAN MATCH.
func escapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
