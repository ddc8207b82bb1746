// Package metrics records pipeline counters and timings through a pluggable
// backend. The default backend discards everything, so callers never need to
// check whether metrics are configured.
package metrics

import "time"

const (
	TestsTotal           = "lakehouse_tests_total"
	QueryDurationSeconds = "lakehouse_query_duration_seconds"
	LayerModelsTotal     = "lakehouse_layer_models_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes collected metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Reset restores the no-op backend.
func Reset() {
	backend = nopBackend{}
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordTest counts one data-quality test outcome.
func RecordTest(layer, status string) {
	backend.IncCounter(TestsTotal, 1, Labels{
		"layer":  layer,
		"status": status,
	})
}

// RecordQuery observes how long a query took to reach its terminal state.
func RecordQuery(state string, d time.Duration) {
	backend.ObserveHistogram(QueryDurationSeconds, d.Seconds(), Labels{
		"state": state,
	})
}

// RecordModels counts models materialized for a layer.
func RecordModels(layer string, n int) {
	if n <= 0 {
		return
	}
	backend.IncCounter(LayerModelsTotal, float64(n), Labels{
		"layer": layer,
	})
}
