// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bootstrap

import (
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "agentbox"

// Metrics collects per-step timings for the node exporter's textfile
// collector. The run happens once per boot, so nothing is served.
type Metrics struct {
	registry *prometheus.Registry
	duration *prometheus.GaugeVec
	success  *prometheus.GaugeVec
	lastRun  prometheus.Gauge
	result   prometheus.Gauge
}

// NewMetrics returns an empty metrics set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "step",
			Name:      "duration_seconds",
			Help:      "Time taken by each bootstrap step.",
		}, []string{"step"}),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "step",
			Name:      "success",
			Help:      "Whether each bootstrap step succeeded (1) or failed (0).",
		}, []string{"step"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "When the last bootstrap run finished.",
		}),
		result: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "run_exit_code",
			Help:      "Exit code of the last bootstrap run.",
		}),
	}
	m.registry.MustRegister(m.duration, m.success, m.lastRun, m.result)
	return m
}

// ObserveStep records a finished step.
func (m *Metrics) ObserveStep(step string, elapsed time.Duration, err error) {
	m.duration.WithLabelValues(step).Set(elapsed.Seconds())
	ok := 1.0
	if err != nil {
		ok = 0
	}
	m.success.WithLabelValues(step).Set(ok)
}

// ObserveRun records the end of the run.
func (m *Metrics) ObserveRun(finished time.Time, err error) {
	m.lastRun.Set(float64(finished.Unix()))
	m.result.Set(float64(ExitCode(err)))
}

// Registry exposes the collectors, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes the metrics in the text exposition
// format.
func (m *Metrics) WriteTextfile(path string) error {
	return errors.Annotatef(prometheus.WriteToTextfile(path, m.registry), "writing metrics to %s", path)
}
