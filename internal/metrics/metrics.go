// Package metrics records per-run module outcomes in a private Prometheus
// registry that can be dumped in the textfile-collector format.
package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "ctsrun"

// Recorder holds the collectors for a single run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry
	log      log.Logger

	modulesTotal   *prometheus.CounterVec
	moduleDuration *prometheus.HistogramVec
	runExitCode    *prometheus.GaugeVec
	runDuration    *prometheus.GaugeVec
}

// New creates a recorder whose series carry the given run id.
func New(runID string, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.Root()
	}
	constLabels := prometheus.Labels{"run_id": runID}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		log:      logger,
		modulesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "modules_total",
			Help:        "Count of executed test modules by outcome",
			ConstLabels: constLabels,
		}, []string{"status"}),
		moduleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   Namespace,
			Name:        "module_duration_seconds",
			Help:        "Wall time of one test runner invocation",
			ConstLabels: constLabels,
			Buckets:     []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
		}, []string{"module"}),
		runExitCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "run_exit_code",
			Help:        "Aggregate exit code of the run",
			ConstLabels: constLabels,
		}, []string{"arch", "platform"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the whole run",
			ConstLabels: constLabels,
		}, []string{"arch", "platform"}),
	}
	r.registry.MustRegister(r.modulesTotal, r.moduleDuration, r.runExitCode, r.runDuration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordModule counts one module invocation.
func (r *Recorder) RecordModule(module, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.log.Debug("metric inc", "m", "modules_total", "module", module, "status", status)
	r.modulesTotal.WithLabelValues(status).Inc()
	r.moduleDuration.WithLabelValues(module).Observe(d.Seconds())
}

// RecordRun stores the aggregate outcome of the run.
func (r *Recorder) RecordRun(arch, platform string, exitCode int, d time.Duration) {
	if r == nil {
		return
	}
	r.runExitCode.WithLabelValues(arch, platform).Set(float64(exitCode))
	r.runDuration.WithLabelValues(arch, platform).Set(d.Seconds())
}

// WriteTextfile writes every gathered series to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
