package search

import "time"

// Stage is a step of the per-request pipeline.
type Stage string

// Pipeline stages in execution order, plus the terminal failure state.
const (
	Parsing    Stage = "parsing"
	Fetching   Stage = "fetching"
	Indexing   Stage = "indexing"
	Ranking    Stage = "ranking"
	Assembling Stage = "assembling"
	Writing    Stage = "writing"
	Done       Stage = "done"
	Failed     Stage = "failed"
)

// Outcome classifies a finished request.
type Outcome string

// Request outcomes.
const (
	// OutcomeSuccess: a successful response was written.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailed: a failure response was written.
	OutcomeFailed Outcome = "failed"
	// OutcomeWriteFailed: no response could be written.
	OutcomeWriteFailed Outcome = "write_failed"
)

// tracker walks the stages of one request and reports how long each took.
type tracker struct {
	obs     Observer
	stage   Stage
	entered time.Time
	// failedAt is the stage that faulted, empty on success.
	failedAt Stage
}

func newTracker(obs Observer) *tracker {
	return &tracker{obs: obs, stage: Parsing, entered: time.Now()}
}

func (t *tracker) enter(next Stage) {
	now := time.Now()
	if t.stage != Failed {
		t.obs.ObserveStage(t.stage, now.Sub(t.entered))
	}
	t.stage, t.entered = next, now
}

// fail records the faulting stage and moves to Failed.
func (t *tracker) fail() {
	t.failedAt = t.stage
	t.enter(Failed)
}
