// Package metrics provides Prometheus metrics for searchmeta
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup operations
const (
	OpTypeMetadata        = "type_metadata"
	OpContainedInMetadata = "contained_in_metadata"
	OpContainsMetadata    = "contains_metadata"
)

// Lookup results
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Metrics holds all Prometheus metrics for searchmeta. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Metadata lookup metrics
	LookupsTotal  *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec
	CachedTypes   prometheus.Gauge

	// Containment metrics
	ResolutionsTotal *prometheus.CounterVec
	AffectedEntities prometheus.Histogram

	// Catalog metrics
	CatalogPublishesTotal *prometheus.CounterVec

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// New creates all metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchmeta_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchmeta_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "searchmeta_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Metadata lookup metrics
	m.LookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchmeta_lookups_total",
			Help: "Total number of metadata lookups",
		},
		[]string{"operation", "result"},
	)

	m.BuildDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchmeta_build_duration_seconds",
			Help:    "Duration of metadata builds in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	m.CachedTypes = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "searchmeta_cached_types",
			Help: "Number of metadata entries held in the provider cache",
		},
	)

	// Containment metrics
	m.ResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchmeta_containment_resolutions_total",
			Help: "Total number of contained-in resolutions",
		},
		[]string{"kind", "status"},
	)

	m.AffectedEntities = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searchmeta_containment_affected",
			Help:    "Number of containing types or entities found per resolution",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// Catalog metrics
	m.CatalogPublishesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchmeta_catalog_publishes_total",
			Help: "Total number of metadata snapshot publishes",
		},
		[]string{"result"},
	)

	// Server metrics
	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "searchmeta_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// StartUptime periodically updates the uptime gauge until ctx is done
func (m *Metrics) StartUptime(ctx context.Context, every time.Duration) {
	if m == nil {
		return
	}

	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
			}
		}
	}()
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RequestStarted marks a gRPC request in flight and returns its completion func
func (m *Metrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.GrpcRequestsInFlight.Inc()
	return m.GrpcRequestsInFlight.Dec
}

// RecordLookup records a metadata lookup
func (m *Metrics) RecordLookup(operation, result string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(operation, result).Inc()
}

// RecordBuild records the duration of a metadata build
func (m *Metrics) RecordBuild(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BuildDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetCachedTypes updates the provider cache size
func (m *Metrics) SetCachedTypes(n int) {
	if m == nil {
		return
	}
	m.CachedTypes.Set(float64(n))
}

// RecordResolution records a containment resolution and its fan-out
func (m *Metrics) RecordResolution(kind string, affected int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ResolutionsTotal.WithLabelValues(kind, status).Inc()
	if err == nil {
		m.AffectedEntities.Observe(float64(affected))
	}
}

// RecordPublish records a catalog publish: changed, unchanged or error
func (m *Metrics) RecordPublish(result string) {
	if m == nil {
		return
	}
	m.CatalogPublishesTotal.WithLabelValues(result).Inc()
}
