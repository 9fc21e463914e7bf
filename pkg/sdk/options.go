package tocha

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "postgres", "redis" or "valkey"
	url      string
	addrs    []string
	password string

	keyPrefix    string
	queryTimeout time.Duration
	skipSchema   bool

	requestsCollection string
	refField           string
	concurrency        int
	maxResults         int
	k1, b              float64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithPostgres connects to a PostgreSQL database holding the documents table.
func WithPostgres(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.url = url
	})
}

// WithRedis connects to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey connects to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the Redis/Valkey key prefix. Default: "tocha:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithQueryTimeout bounds each fetch and write-back. Default: 30s.
func WithQueryTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryTimeout = d
	})
}

// WithoutSchemaInit skips creating the PostgreSQL table and trigger on connect.
func WithoutSchemaInit() Option {
	return optionFunc(func(c *clientConfig) {
		c.skipSchema = true
	})
}

// WithRequestsCollection names the collection (or node) Serve watches.
// Default: "tocha_searches".
func WithRequestsCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.requestsCollection = name
	})
}

// WithRefField sets the ref field for requests without queryRef. Default: "key".
func WithRefField(field string) Option {
	return optionFunc(func(c *clientConfig) {
		c.refField = field
	})
}

// WithConcurrency sets how many requests Serve processes at once. Default: 8.
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithMaxResults caps the number of hits. 0 (default) is unbounded.
func WithMaxResults(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxResults = n
	})
}

// WithBM25 overrides the ranking parameters. Defaults: k1=1.2, b=0.75.
func WithBM25(k1, b float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.k1 = k1
		c.b = b
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
