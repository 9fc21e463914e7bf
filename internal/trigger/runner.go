// Package trigger feeds newly created request records to the search pipeline.
package trigger

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/logger"
)

// DefaultConcurrency is the number of requests processed at once.
const DefaultConcurrency = 8

// ErrNotRunning is reported by Alive while no subscription is active.
var ErrNotRunning = errors.New("trigger: subscription not running")

// Handler processes one request record. Only write-back failures are returned.
type Handler interface {
	Handle(ctx context.Context, location, requestID string, raw []byte) error
}

// Config holds runner settings.
type Config struct {
	// Location is the requests collection (or node) to watch.
	Location    string
	Concurrency int
}

// Runner dispatches subscribed records to the handler on a bounded worker group.
type Runner struct {
	sub         db.Subscriber
	handler     Handler
	location    string
	concurrency int
	running     atomic.Bool
}

// New creates a Runner.
func New(sub db.Subscriber, handler Handler, cfg Config) *Runner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{sub: sub, handler: handler, location: cfg.Location, concurrency: concurrency}
}

// Run blocks until ctx is done or the subscription fails, then waits for the
// requests already dispatched. In-flight requests are not cancelled with ctx;
// backend timeouts bound them.
func (r *Runner) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("trigger runner starting",
		zap.String("location", r.location),
		zap.Int("concurrency", r.concurrency),
	)

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	r.running.Store(true)
	defer r.running.Store(false)

	err := r.sub.Subscribe(ctx, r.location, func(ctx context.Context, ev db.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Blocks while all workers are busy.
		g.Go(func() error {
			r.process(context.WithoutCancel(ctx), ev)
			return nil
		})
		return nil
	})

	_ = g.Wait()
	log.Info("trigger runner stopped")
	return err
}

// Alive reports whether Run is currently subscribed.
func (r *Runner) Alive() error {
	if !r.running.Load() {
		return ErrNotRunning
	}
	return nil
}

func (r *Runner) process(ctx context.Context, ev db.Event) {
	log := logger.FromContext(ctx).With(zap.String("request_id", ev.ID))
	ctx = logger.ContextWithLogger(ctx, log)

	if err := r.handler.Handle(ctx, r.location, ev.ID, ev.Record); err != nil {
		// Left unacknowledged; the record has no response.
		log.Error("search request not answered", zap.Error(err))
		return
	}
	if ev.Ack == nil {
		return
	}
	if err := ev.Ack(ctx); err != nil {
		log.Warn("ack failed", zap.Error(err))
	}
}
