package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrUnsupportedQuery marks a request the backend cannot express.
	ErrUnsupportedQuery = errors.New("db: unsupported query")
)

// Op constants name the failed backend operation for error context.
const (
	OpSchema     = "SCHEMA"
	OpSelect     = "SELECT"
	OpUpdate     = "UPDATE"
	OpListen     = "LISTEN"
	OpZRange     = "ZRANGE"
	OpHGetAll    = "HGETALL"
	OpEval       = "EVALSHA"
	OpXGroup     = "XGROUP CREATE"
	OpXReadGroup = "XREADGROUP"
	OpXAck       = "XACK"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
