// Package metrics holds the Prometheus collectors of the seat detector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Artifact sources reported by RecordArtifact.
const (
	ArtifactFromAdapter = "adapter"
	ArtifactFromScan    = "scan"
	ArtifactNone        = "none"
)

// Metrics is safe to use through a nil pointer, every recorder becomes a no-op.
type Metrics struct {
	DetectRequests    *prometheus.CounterVec
	Verdicts          *prometheus.CounterVec
	Artifacts         *prometheus.CounterVec
	StoreWriteErrors  *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	CatalogRows       *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics builds the collectors and registers them with registry.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register seat metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.DetectRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_detect_requests_total",
			Help: "Detection pipeline runs partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	m.Verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_verdicts_total",
			Help: "Occupancy verdicts written to the seat store.",
		},
		[]string{"status"},
	)

	m.Artifacts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_artifacts_total",
			Help: "Annotated artifacts resolved partitioned by where they came from.",
		},
		[]string{"source"},
	)

	m.StoreWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_store_write_errors_total",
			Help: "Failed document writes partitioned by collection.",
		},
		[]string{"collection"},
	)

	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seat_inference_duration_seconds",
			Help:    "Time spent inside the detection model adapter.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"status"},
	)

	m.CatalogRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_catalog_rows_total",
			Help: "Catalog rows processed by the bulk import partitioned by result.",
		},
		[]string{"result"},
	)
}

func (m *Metrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.DetectRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordVerdict(status string) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordArtifact(source string) {
	if m == nil {
		return
	}
	m.Artifacts.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordStoreWriteError(collection string) {
	if m == nil {
		return
	}
	m.StoreWriteErrors.WithLabelValues(collection).Inc()
}

// RecordInference observes one adapter call.
func (m *Metrics) RecordInference(durationSeconds float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.InferenceDuration.WithLabelValues(status).Observe(durationSeconds)
}

func (m *Metrics) RecordCatalogRows(written, skipped int) {
	if m == nil {
		return
	}
	m.CatalogRows.WithLabelValues("written").Add(float64(written))
	m.CatalogRows.WithLabelValues("skipped").Add(float64(skipped))
}

// Registry returns the registry the collectors live in, for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectRequests.Describe(ch)
	m.Verdicts.Describe(ch)
	m.Artifacts.Describe(ch)
	m.StoreWriteErrors.Describe(ch)
	m.InferenceDuration.Describe(ch)
	m.CatalogRows.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectRequests.Collect(ch)
	m.Verdicts.Collect(ch)
	m.Artifacts.Collect(ch)
	m.StoreWriteErrors.Collect(ch)
	m.InferenceDuration.Collect(ch)
	m.CatalogRows.Collect(ch)
}
