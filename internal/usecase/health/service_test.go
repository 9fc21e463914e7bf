package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockWorker struct {
	err error
}

func (m *mockWorker) Alive() error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name     string
		dbErr    error
		worker   WorkerChecker
		status   Status
		database CheckResult
		workerOK CheckResult // "" when the check is absent
	}{
		{"all healthy", nil, &mockWorker{}, Healthy, CheckOK, CheckOK},
		{"db down", down, &mockWorker{}, Unhealthy, CheckError, CheckOK},
		{"worker stopped", nil, &mockWorker{err: down}, Degraded, CheckOK, CheckError},
		{"both down", down, &mockWorker{err: down}, Unhealthy, CheckError, CheckError},
		{"no worker", nil, nil, Healthy, CheckOK, ""},
		{"no worker db down", down, nil, Unhealthy, CheckError, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := New(&mockDBPinger{err: tc.dbErr}, tc.worker).Check(context.Background())

			if r.Status != tc.status {
				t.Errorf("status: got %q, want %q", r.Status, tc.status)
			}
			if r.Checks["database"] != tc.database {
				t.Errorf("database: got %q, want %q", r.Checks["database"], tc.database)
			}
			got, ok := r.Checks["worker"]
			if tc.workerOK == "" {
				if ok {
					t.Error("worker check should be absent")
				}
				return
			}
			if got != tc.workerOK {
				t.Errorf("worker: got %q, want %q", got, tc.workerOK)
			}
		})
	}
}
