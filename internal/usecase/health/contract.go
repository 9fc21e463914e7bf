package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// WorkerChecker reports whether the trigger subscription is running.
type WorkerChecker interface {
	Alive() error
}
