package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	searchuc "github.com/kailas-cloud/tocha/internal/usecase/search"
)

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tocha",
			Name:      "search_requests_total",
			Help:      "Total number of processed search requests",
		},
		[]string{"backend", "outcome"},
	)

	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tocha",
			Name:      "search_stage_duration_seconds",
			Help:      "Time spent in each search pipeline stage",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tocha",
			Name:      "search_results",
			Help:      "Number of hits written per successful search request",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers the pipeline metrics with the default registry.
// Safe to call more than once.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(SearchRequestsTotal)
		prometheus.MustRegister(SearchStageDuration)
		prometheus.MustRegister(SearchResults)
	})
}

// SearchObserver reports pipeline telemetry for one backend.
type SearchObserver struct {
	backend string
}

var _ searchuc.Observer = (*SearchObserver)(nil)

// NewSearchObserver creates an observer labelled with the backend driver name.
func NewSearchObserver(backend string) *SearchObserver {
	return &SearchObserver{backend: backend}
}

// ObserveStage records the time spent in a stage.
func (o *SearchObserver) ObserveStage(stage searchuc.Stage, elapsed time.Duration) {
	SearchStageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// ObserveRequest counts a finished request; hits are recorded only on success.
func (o *SearchObserver) ObserveRequest(outcome searchuc.Outcome, hits int) {
	SearchRequestsTotal.WithLabelValues(o.backend, string(outcome)).Inc()
	if outcome == searchuc.OutcomeSuccess {
		SearchResults.Observe(float64(hits))
	}
}
