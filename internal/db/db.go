package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/tocha/internal/domain/document"
	"github.com/kailas-cloud/tocha/internal/domain/search/request"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
)

// Store is the backend facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	Fetcher
	ResponseWriter
	Subscriber
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Fetcher materializes the candidate corpus for a search request.
// Documents are keyed by their reference value. Read only.
type Fetcher interface {
	Fetch(ctx context.Context, req *request.Request) (*document.Corpus, error)
}

// ResponseWriter persists the response on the request record at location/requestID.
// The backend assigns responseTimestamp at write time.
type ResponseWriter interface {
	WriteResponse(ctx context.Context, location, requestID string, resp result.Response) error
}

// Event is a newly created request record.
type Event struct {
	ID     string
	Record []byte
	// Ack marks the event as processed. Nil when the backend has nothing to acknowledge.
	Ack func(ctx context.Context) error
}

// Subscriber delivers request records created under location until ctx is done.
// deliver may be called concurrently; an error from it leaves the event unacknowledged.
type Subscriber interface {
	Subscribe(ctx context.Context, location string, deliver func(ctx context.Context, ev Event) error) error
}
