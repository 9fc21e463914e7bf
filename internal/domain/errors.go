package domain

import "errors"

// Pipeline error kinds. Stages wrap the underlying cause with one of these
// sentinels ("%w: %w") so callers can classify failures with errors.Is.
var (
	// ErrRequestValidation signals a missing or malformed request field.
	ErrRequestValidation = errors.New("invalid search request")
	// ErrBackendQuery signals a rejected query construction or a failed fetch.
	ErrBackendQuery = errors.New("backend query failed")
	// ErrIndexing signals an unexpected field shape or an unparsable query.
	ErrIndexing = errors.New("indexing failed")
	// ErrAssembly signals a reference integrity fault while joining results.
	ErrAssembly = errors.New("response assembly failed")
	// ErrWriteBack signals that the response could not be persisted.
	ErrWriteBack = errors.New("write-back failed")
)
