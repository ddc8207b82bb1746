// Package prompush pushes lakehouse metrics to a Prometheus Pushgateway.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/nucleus/lakehouse/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	testCounter   *prometheus.CounterVec
	queryDuration *prometheus.SummaryVec
	modelCounter  *prometheus.CounterVec
}

// NewBackend constructs a Pushgateway backend grouped under jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "lakehouse"
	}

	reg := prometheus.NewRegistry()

	testCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.TestsTotal,
			Help: "Data-quality test executions, partitioned by layer and status.",
		},
		[]string{"layer", "status"},
	)
	queryDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.QueryDurationSeconds,
			Help:       "Time from query submission to terminal state, partitioned by state.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"state"},
	)
	modelCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.LayerModelsTotal,
			Help: "Models materialized, partitioned by layer.",
		},
		[]string{"layer"},
	)

	for _, c := range []prometheus.Collector{testCounter, queryDuration, modelCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		testCounter:   testCounter,
		queryDuration: queryDuration,
		modelCounter:  modelCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.TestsTotal:
		b.testCounter.WithLabelValues(labels["layer"], labels["status"]).Add(delta)
	case metrics.LayerModelsTotal:
		b.modelCounter.WithLabelValues(labels["layer"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.QueryDurationSeconds {
		return
	}
	b.queryDuration.WithLabelValues(labels["state"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
