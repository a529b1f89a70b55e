// Package metrics collects per-run counters in a private Prometheus
// registry. There is no HTTP endpoint: the registry is written once at the
// end of a run in the node-exporter textfile format.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gotidy/pkg/models"
)

type Recorder struct {
	registry *prometheus.Registry

	filesScanned    prometheus.Counter
	filesSkipped    *prometheus.CounterVec
	filesHashed     prometheus.Counter
	bytesHashed     prometheus.Counter
	duplicateGroups prometheus.Counter
	operations      *prometheus.CounterVec
	lastRun         prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		filesScanned: f.NewCounter(prometheus.CounterOpts{
			Name: "gotidy_files_scanned_total",
			Help: "Eligible files recorded by the scanner",
		}),
		filesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gotidy_files_skipped_total",
			Help: "Entries skipped during scanning or processing, by reason",
		}, []string{"reason"}),
		filesHashed: f.NewCounter(prometheus.CounterOpts{
			Name: "gotidy_files_hashed_total",
			Help: "Duplicate candidates whose content was hashed",
		}),
		bytesHashed: f.NewCounter(prometheus.CounterOpts{
			Name: "gotidy_hashed_bytes_total",
			Help: "Bytes read while hashing duplicate candidates",
		}),
		duplicateGroups: f.NewCounter(prometheus.CounterOpts{
			Name: "gotidy_duplicate_groups_total",
			Help: "Duplicate groups found",
		}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gotidy_operations_total",
			Help: "Filesystem operations by kind and status",
		}, []string{"kind", "status"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "gotidy_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

func (r *Recorder) FileScanned() {
	if r == nil {
		return
	}
	r.filesScanned.Inc()
}

func (r *Recorder) FileSkipped(reason string) {
	if r == nil {
		return
	}
	r.filesSkipped.WithLabelValues(reason).Inc()
}

func (r *Recorder) FileHashed(bytes int64) {
	if r == nil {
		return
	}
	r.filesHashed.Inc()
	r.bytesHashed.Add(float64(bytes))
}

func (r *Recorder) DuplicateGroup() {
	if r == nil {
		return
	}
	r.duplicateGroups.Inc()
}

func (r *Recorder) Operation(kind models.OpKind, status models.OpStatus) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(string(kind), string(status)).Inc()
}

func (r *Recorder) MarkRun(t time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
