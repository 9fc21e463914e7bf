package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/tocha/internal/domain/document"
	"github.com/kailas-cloud/tocha/internal/domain/search/request"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
)

// Fetcher materializes the candidate corpus for a request.
type Fetcher interface {
	Fetch(ctx context.Context, req *request.Request) (*document.Corpus, error)
}

// ResponseWriter persists the response on the request record.
type ResponseWriter interface {
	WriteResponse(ctx context.Context, location, requestID string, resp result.Response) error
}

// Observer records pipeline telemetry. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveStage(stage Stage, elapsed time.Duration)
	ObserveRequest(outcome Outcome, hits int)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(Stage, time.Duration) {}
func (nopObserver) ObserveRequest(Outcome, int)       {}
