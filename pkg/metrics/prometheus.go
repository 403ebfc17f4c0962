package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	fetchCalls *prometheus.CounterVec
	stops      *prometheus.CounterVec
	records    *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "futureshist_fetch_calls_total",
			Help: "Adapter calls by series and whether the page had data",
		}, []string{"series", "non_empty"}),
		stops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "futureshist_fetch_stops_total",
			Help: "Pagination loops ended, by stop reason",
		}, []string{"series", "reason"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "futureshist_records_written_total",
			Help: "Records delivered to a backend",
		}, []string{"backend", "series"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "futureshist_errors_total",
			Help: "Errors by kind",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "futureshist_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordFetchCall(series string, nonEmpty bool) {
	r.fetchCalls.WithLabelValues(series, strconv.FormatBool(nonEmpty)).Inc()
}

func (r *Recorder) RecordStop(series, reason string) {
	r.stops.WithLabelValues(series, reason).Inc()
}

func (r *Recorder) RecordRecords(backend, series string, n int) {
	r.records.WithLabelValues(backend, series).Add(float64(n))
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordFetchCall(string, bool)      {}
func (Nop) RecordStop(string, string)         {}
func (Nop) RecordRecords(string, string, int) {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
