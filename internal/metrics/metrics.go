// Package metrics exposes run metrics in the Prometheus text format. The CLI
// is short lived, so metrics are written to a file for the node exporter
// textfile collector instead of being scraped.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
)

// Run is what one reconciliation contributes to the metrics.
type Run struct {
	Outcome    string
	Inbound    int
	Outbound   int
	Exclusions map[string]int
	Duration   time.Duration
}

// Recorder owns a registry with the stocktake collectors.
type Recorder struct {
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	movements  *prometheus.CounterVec
	exclusions *prometheus.CounterVec
	duration   prometheus.Histogram
	textfile   string
}

// New creates a recorder. When textfile is not empty Flush writes to it.
func New(textfile string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocktake_runs_total",
			Help: "Reconciliation runs by outcome.",
		}, []string{"outcome"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocktake_movements_total",
			Help: "Stock movements applied by direction.",
		}, []string{"direction"}),
		exclusions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocktake_exclusions_total",
			Help: "Scanned codes skipped by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stocktake_run_duration_seconds",
			Help:    "Duration of reconciliation runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		textfile: textfile,
	}
	r.registry.MustRegister(r.runs, r.movements, r.exclusions, r.duration)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe records a run.
func (r *Recorder) Observe(run Run) {
	r.runs.WithLabelValues(run.Outcome).Inc()
	r.movements.WithLabelValues("in").Add(float64(run.Inbound))
	r.movements.WithLabelValues("out").Add(float64(run.Outbound))
	for reason, n := range run.Exclusions {
		r.exclusions.WithLabelValues(reason).Add(float64(n))
	}
	r.duration.Observe(run.Duration.Seconds())
}

// Flush writes the registry to the textfile. It does nothing without one.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.textfile), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(r.textfile), err)
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return errors.WrapIO("write", r.textfile, err)
	}
	return nil
}
