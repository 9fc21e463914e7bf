package tocha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/tocha/internal/db"
	dbPostgres "github.com/kailas-cloud/tocha/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/tocha/internal/db/redis"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
	"github.com/kailas-cloud/tocha/internal/trigger"
	healthuc "github.com/kailas-cloud/tocha/internal/usecase/health"
	searchuc "github.com/kailas-cloud/tocha/internal/usecase/search"
)

const (
	defaultReadinessTimeout   = 10 * time.Second
	defaultQueryTimeout       = 30 * time.Second
	defaultRequestsCollection = "tocha_searches"
)

type searchUseCase interface {
	Search(ctx context.Context, raw []byte) ([]result.Result, error)
}

type runnerUseCase interface {
	Run(ctx context.Context) error
}

type schemaIniter interface {
	InitSchema(ctx context.Context) error
}

// Client is the tocha SDK entry point.
type Client struct {
	store     db.Store
	searchSvc searchUseCase
	runner    runnerUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to the backend.
// The provided context is used for the readiness check and schema setup.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		queryTimeout:       defaultQueryTimeout,
		requestsCollection: defaultRequestsCollection,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("tocha: backend required (use WithPostgres, WithRedis or WithValkey)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("tocha: database not ready: %w", err)
	}

	if si, ok := store.(schemaIniter); ok && !cfg.skipSchema {
		if err := si.InitSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("tocha: init schema: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "postgres":
		if cfg.url == "" {
			return nil, errors.New("tocha: postgres url required")
		}
		s, err := dbPostgres.NewStore(dbPostgres.Config{
			URL:          cfg.url,
			QueryTimeout: cfg.queryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("tocha: create postgres store: %w", err)
		}
		return s, nil
	case "redis", "valkey":
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, fmt.Errorf("tocha: %s address required", cfg.driver)
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:        cfg.addrs,
			Password:     cfg.password,
			KeyPrefix:    cfg.keyPrefix,
			QueryTimeout: cfg.queryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("tocha: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("tocha: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	searchSvc := searchuc.New(store, store, nil, searchuc.Config{
		MaxResults:      cfg.maxResults,
		K1:              cfg.k1,
		B:               cfg.b,
		DefaultRefField: cfg.refField,
	})
	runner := trigger.New(store, searchSvc, trigger.Config{
		Location:    cfg.requestsCollection,
		Concurrency: cfg.concurrency,
	})

	return &Client{
		store:     store,
		searchSvc: searchSvc,
		runner:    runner,
		healthSvc: healthuc.New(store, nil),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search fetches the candidates described by req and ranks them in-process.
// Nothing is written to the backend.
func (c *Client) Search(ctx context.Context, req SearchRequest) (hits []Hit, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("search", start, err, "collection", req.Collection, "hits", len(hits))
	}()

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("tocha: encode request: %w", err)
	}

	results, err := c.searchSvc.Search(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Collection, err)
	}

	hits = make([]Hit, len(results))
	for i := range results {
		hits[i] = Hit{ID: results[i].Ref(), Score: results[i].Score(), Data: results[i].Data()}
	}
	c.obs.observeHits(len(hits))
	return hits, nil
}

// Serve answers request records created in the requests collection until ctx
// is done, then waits for the requests in flight.
func (c *Client) Serve(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("serve", start, err) }()

	if err = c.runner.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
