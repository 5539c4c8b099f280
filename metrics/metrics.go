// Package metrics implements Prometheus-backed instrumentation for the
// runtime: checkpoint, worker, S3, gRPC, dataset, and error counters,
// exposed over an HTTP server alongside health and readiness endpoints.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns every Prometheus collector the runtime reports. It implements
// checkpoint.MetricsRecorder, storage.RequestObserver, dataset.MetricsRecorder,
// and rpcserver.GRPCMetricsRecorder so every package can depend on its own
// narrow interface without importing this package directly.
type Metrics struct {
	registry *prometheus.Registry

	checkpointsTotal     prometheus.Counter
	checkpointBytesTotal prometheus.Counter
	checkpointDuration   prometheus.Histogram

	activeWorkers            prometheus.Gauge
	workerRegistrationsTotal prometheus.Counter
	workerHeartbeatsTotal    prometheus.Counter

	s3RequestsTotal   *prometheus.CounterVec
	s3RequestDuration *prometheus.HistogramVec

	grpcRequestsTotal   *prometheus.CounterVec
	grpcRequestDuration *prometheus.HistogramVec

	datasetsTotal prometheus.Gauge

	errorsTotal *prometheus.CounterVec
}

// New constructs and registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		checkpointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_checkpoints_total",
			Help: "Total number of checkpoints saved",
		}),
		checkpointBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_checkpoint_bytes_total",
			Help: "Total bytes uploaded to storage",
		}),
		checkpointDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_checkpoint_duration_seconds",
			Help:    "Time to save a checkpoint",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),

		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_active_workers",
			Help: "Number of registered workers currently in ACTIVE status",
		}),
		workerRegistrationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_worker_registrations_total",
			Help: "Total number of worker registrations",
		}),
		workerHeartbeatsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_worker_heartbeats_total",
			Help: "Total number of worker heartbeats",
		}),

		s3RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_s3_requests_total",
			Help: "Total S3 API requests",
		}, []string{"operation", "status"}),
		s3RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_s3_request_duration_seconds",
			Help:    "S3 request latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"operation"}),

		grpcRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_grpc_requests_total",
			Help: "Total gRPC requests",
		}, []string{"method", "status"}),
		grpcRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_grpc_request_duration_seconds",
			Help:    "gRPC request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method"}),

		datasetsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_datasets_total",
			Help: "Total number of dataset registrations, re-registrations of an existing id included",
		}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_errors_total",
			Help: "Total errors by type",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		m.checkpointsTotal,
		m.checkpointBytesTotal,
		m.checkpointDuration,
		m.activeWorkers,
		m.workerRegistrationsTotal,
		m.workerHeartbeatsTotal,
		m.s3RequestsTotal,
		m.s3RequestDuration,
		m.grpcRequestsTotal,
		m.grpcRequestDuration,
		m.datasetsTotal,
		m.errorsTotal,
	)
	return m
}

// RecordCheckpointSaved implements checkpoint.MetricsRecorder.
func (m *Metrics) RecordCheckpointSaved(duration time.Duration) {
	m.checkpointsTotal.Inc()
	m.checkpointDuration.Observe(duration.Seconds())
}

// RecordError implements checkpoint.MetricsRecorder and is reused by every
// other component that reports an error kind.
func (m *Metrics) RecordError(kind string) {
	m.errorsTotal.WithLabelValues(kind).Inc()
}

// ObserveS3Request implements storage.RequestObserver.
func (m *Metrics) ObserveS3Request(operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.s3RequestsTotal.WithLabelValues(operation, status).Inc()
	m.s3RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddBytesUploaded implements storage.RequestObserver.
func (m *Metrics) AddBytesUploaded(n int64) {
	m.checkpointBytesTotal.Add(float64(n))
}

// RecordDatasetRegistered implements dataset.MetricsRecorder.
func (m *Metrics) RecordDatasetRegistered() {
	m.datasetsTotal.Inc()
}

// RecordGRPCRequest implements rpcserver.GRPCMetricsRecorder.
func (m *Metrics) RecordGRPCRequest(method, code string, duration time.Duration) {
	m.grpcRequestsTotal.WithLabelValues(method, code).Inc()
	m.grpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetActiveWorkers overwrites the active-worker gauge; callers sample this
// periodically from worker.Registry.ActiveCount.
func (m *Metrics) SetActiveWorkers(n int) {
	m.activeWorkers.Set(float64(n))
}

// RecordWorkerRegistered implements rpcserver.WorkerMetricsRecorder.
func (m *Metrics) RecordWorkerRegistered() {
	m.workerRegistrationsTotal.Inc()
}

// RecordWorkerHeartbeat implements rpcserver.WorkerMetricsRecorder.
func (m *Metrics) RecordWorkerHeartbeat() {
	m.workerHeartbeatsTotal.Inc()
}

// Server exposes /metrics, /health, and /ready over HTTP.
type Server struct {
	httpServer *http.Server
}

// NewServer builds an HTTP server bound to addr, serving m's registry.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Run starts serving and blocks until the server stops or fails.
func (s *Server) Run() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
