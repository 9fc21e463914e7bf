// Package redis implements the tree store backend on Redis or Valkey.
//
// A node's children are indexed in a sorted set (score 0, lexicographic order)
// and each child is a hash whose field values are JSON encoded. New children
// are announced on a per-node stream. All keys of a node share one hash tag,
// so scripts touching the index, a child and the stream stay in one slot:
//
//	<prefix>node:{<path>}          ZSET  child keys
//	<prefix>node:{<path>}/<key>    HASH  child fields
//	<prefix>events:{<path>}        STREAM new children (field "id")
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tocha/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Defaults for the stream consumer.
const (
	DefaultKeyPrefix = "tocha:"
	DefaultGroup     = "tocha"
	DefaultBlock     = 5 * time.Second
	DefaultBatch     = 16
)

// Config holds connection parameters for a Redis or Valkey store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// Group and Consumer name the stream consumer. Consumer defaults to a random id.
	Group        string
	Consumer     string
	Block        time.Duration
	Batch        int64
	QueryTimeout time.Duration
}

// Store implements db.Store via rueidis.
type Store struct {
	client       rueidis.Client
	keys         keyspace
	group        string
	consumer     string
	block        time.Duration
	batch        int64
	queryTimeout time.Duration
}

// NewStore creates a Redis/Valkey store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg), nil
}

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, cfg Config) *Store {
	return newStore(c, cfg)
}

func newStore(c rueidis.Client, cfg Config) *Store {
	s := &Store{
		client:       c,
		keys:         keyspace{prefix: cfg.KeyPrefix},
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		block:        cfg.Block,
		batch:        cfg.Batch,
		queryTimeout: cfg.QueryTimeout,
	}
	if s.keys.prefix == "" {
		s.keys.prefix = DefaultKeyPrefix
	}
	if s.group == "" {
		s.group = DefaultGroup
	}
	if s.consumer == "" {
		s.consumer = "tocha-" + uuid.NewString()
	}
	if s.block <= 0 {
		s.block = DefaultBlock
	}
	if s.batch <= 0 {
		s.batch = DefaultBatch
	}
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// keyspace derives the keys of a node.
type keyspace struct {
	prefix string
}

func normalizePath(path string) string {
	return strings.Trim(path, "/")
}

func (k keyspace) index(path string) string {
	return k.prefix + "node:{" + normalizePath(path) + "}"
}

func (k keyspace) child(path, key string) string {
	return k.index(path) + "/" + key
}

func (k keyspace) events(path string) string {
	return k.prefix + "events:{" + normalizePath(path) + "}"
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
