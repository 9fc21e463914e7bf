package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tocha/internal/domain"
	"github.com/kailas-cloud/tocha/internal/domain/search/request"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
	"github.com/kailas-cloud/tocha/internal/fts"
	"github.com/kailas-cloud/tocha/internal/logger"
)

// Config tunes ranking and result size.
type Config struct {
	// MaxResults caps the written results. 0 means unbounded.
	MaxResults int
	// K1 and B are the BM25 parameters. Both zero selects the defaults.
	K1 float64
	B  float64
	// DefaultRefField applies to records without queryRef. Empty means "key".
	DefaultRefField string
}

// Service runs the search pipeline for one request record at a time.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	fetcher Fetcher
	writer  ResponseWriter
	obs     Observer
	cfg     Config
}

// New creates a search service. obs can be nil.
func New(fetcher Fetcher, writer ResponseWriter, obs Observer, cfg Config) *Service {
	if obs == nil {
		obs = nopObserver{}
	}
	if cfg.K1 == 0 && cfg.B == 0 {
		cfg.K1, cfg.B = fts.DefaultK1, fts.DefaultB
	}
	return &Service{fetcher: fetcher, writer: writer, obs: obs, cfg: cfg}
}

// Handle parses the raw request record, ranks the matching documents and
// writes exactly one response back to location/requestID. Faults before the
// write, panics included, become a failure response. Only a write-back failure
// is returned (wrapping domain.ErrWriteBack).
func (s *Service) Handle(ctx context.Context, location, requestID string, raw []byte) error {
	start := time.Now()
	tr := newTracker(s.obs)

	var source string
	results, err := s.run(ctx, tr, raw, &source)

	resp := result.Success(results)
	outcome := OutcomeSuccess
	if err != nil {
		tr.fail()
		resp = result.Failure(err)
		outcome = OutcomeFailed
	}

	tr.enter(Writing)
	werr := s.writer.WriteResponse(ctx, location, requestID, resp)
	if werr != nil {
		outcome = OutcomeWriteFailed
	}
	tr.enter(Done)

	hits := len(resp.Results())
	s.obs.ObserveRequest(outcome, hits)

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("location", location),
		zap.String("source", source),
		zap.String("outcome", string(outcome)),
		zap.Int("hits", hits),
		zap.Duration("latency", time.Since(start)),
	}
	log := logger.FromContext(ctx)
	switch {
	case werr != nil:
		log.Error("search_request", append(fields, zap.Error(werr))...)
		return fmt.Errorf("%w: %w", domain.ErrWriteBack, werr)
	case err != nil:
		log.Warn("search_request", append(fields, zap.String("failed_stage", string(tr.failedAt)), zap.Error(err))...)
	default:
		log.Info("search_request", fields...)
	}
	return nil
}

// Search runs the pipeline on a raw request record and returns the ranked
// results without writing anything back. Errors wrap the domain sentinels.
func (s *Service) Search(ctx context.Context, raw []byte) ([]result.Result, error) {
	tr := newTracker(s.obs)

	var source string
	results, err := s.run(ctx, tr, raw, &source)
	if err != nil {
		tr.fail()
		return nil, err
	}
	tr.enter(Done)
	return results, nil
}

// run executes Parsing through Assembling.
func (s *Service) run(ctx context.Context, tr *tracker, raw []byte, source *string) (results []result.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("panic during %s: %v", tr.stage, r)
		}
	}()

	req, err := request.Parse(raw, request.WithDefaultRefField(s.cfg.DefaultRefField))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRequestValidation, err)
	}
	*source = req.Source()

	tr.enter(Fetching)
	corpus, err := s.fetcher.Fetch(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendQuery, err)
	}

	tr.enter(Indexing)
	idx, err := fts.Build(corpus, req.Fields(), fts.WithBM25(s.cfg.K1, s.cfg.B))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexing, err)
	}

	tr.enter(Ranking)
	matches, err := idx.Search(req.Query())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexing, err)
	}

	tr.enter(Assembling)
	results = Assemble(ctx, matches, corpus)
	if s.cfg.MaxResults > 0 && len(results) > s.cfg.MaxResults {
		results = results[:s.cfg.MaxResults]
	}
	return results, nil
}
