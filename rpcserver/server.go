// Package rpcserver wires the Worker Registry, Checkpoint Manager, and
// Dataset Registry behind the pulse.v1.PulseService gRPC contract: request
// validation, domain-to-wire translation, and error-to-status mapping.
package rpcserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lloredia/pulsecheckpoint-runtime/checkpoint"
	"github.com/lloredia/pulsecheckpoint-runtime/dataset"
	"github.com/lloredia/pulsecheckpoint-runtime/pulsev1"
	"github.com/lloredia/pulsecheckpoint-runtime/storage"
	"github.com/lloredia/pulsecheckpoint-runtime/worker"
)

// healthProbeKey is an arbitrary, never-written key used only to confirm
// the storage adapter can reach its bucket; a missing key is a healthy
// result, an S3Error is not.
const healthProbeKey = "_healthcheck/probe"

// GRPCMetricsRecorder receives a callback for every completed RPC.
type GRPCMetricsRecorder interface {
	RecordGRPCRequest(method, code string, duration time.Duration)
}

// WorkerMetricsRecorder receives a callback for worker lifecycle events that
// aren't captured by the generic per-RPC counters.
type WorkerMetricsRecorder interface {
	RecordWorkerRegistered()
	RecordWorkerHeartbeat()
}

type noopMetrics struct{}

func (noopMetrics) RecordGRPCRequest(string, string, time.Duration) {}
func (noopMetrics) RecordWorkerRegistered()                         {}
func (noopMetrics) RecordWorkerHeartbeat()                          {}

// workerMetrics is the recorder type of Server's metrics field: the per-RPC
// callbacks of GRPCMetricsRecorder plus the worker-lifecycle callbacks of
// WorkerMetricsRecorder.
type workerMetrics interface {
	GRPCMetricsRecorder
	WorkerMetricsRecorder
}

// Server implements pulsev1.PulseServiceServer over a Worker Registry,
// Checkpoint Manager, and Dataset Registry.
type Server struct {
	workers     *worker.Registry
	checkpoints *checkpoint.Manager
	datasets    *dataset.Registry
	storage     storage.Adapter

	logger  *zap.Logger
	metrics workerMetrics

	version   string
	startedAt time.Time
}

var _ pulsev1.PulseServiceServer = (*Server)(nil)

// Option configures a Server at construction.
type Option func(*Server)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics attaches a metrics recorder; defaults to a no-op.
func WithMetrics(rec workerMetrics) Option {
	return func(s *Server) { s.metrics = rec }
}

// WithVersion overrides the version string reported by HealthCheck.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// New constructs a Server over the given components.
func New(workers *worker.Registry, checkpoints *checkpoint.Manager, datasets *dataset.Registry, storageAdapter storage.Adapter, opts ...Option) *Server {
	s := &Server{
		workers:     workers,
		checkpoints: checkpoints,
		datasets:    datasets,
		storage:     storageAdapter,
		logger:      zap.NewNop(),
		metrics:     noopMetrics{},
		version:     "dev",
		startedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// record wraps a handler body, timing it and reporting the resulting grpc
// code to the metrics sink regardless of outcome.
func (s *Server) record(method string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.RecordGRPCRequest(method, status.Code(err).String(), time.Since(start))
	return err
}

func toTimestamp(t time.Time) *pulsev1.Timestamp {
	if t.IsZero() {
		return nil
	}
	return &pulsev1.Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

func toWireWorker(w *worker.Worker) *pulsev1.Worker {
	if w == nil {
		return nil
	}
	return &pulsev1.Worker{
		WorkerID:      w.WorkerID,
		Labels:        w.Labels,
		Status:        pulsev1.WorkerStatus(w.Status),
		RegisteredAt:  toTimestamp(w.RegisteredAt),
		LastHeartbeat: toTimestamp(w.LastHeartbeat),
	}
}

func toWireCheckpoint(c *checkpoint.Checkpoint) *pulsev1.CheckpointInfo {
	if c == nil {
		return nil
	}
	return &pulsev1.CheckpointInfo{
		CheckpointID: c.CheckpointID,
		WorkerID:     c.WorkerID,
		StoragePath:  c.StoragePath,
		SizeBytes:    c.SizeBytes,
		Checksum:     c.Checksum,
		Labels:       c.Labels,
		CreatedAt:    toTimestamp(c.CreatedAt),
		Status:       pulsev1.CheckpointStatus(c.Status),
	}
}

func toWireDataset(d *dataset.Dataset) *pulsev1.DatasetInfo {
	if d == nil {
		return nil
	}
	return &pulsev1.DatasetInfo{
		ID:           d.ID,
		Path:         d.Path,
		Labels:       d.Labels,
		RegisteredAt: toTimestamp(d.RegisteredAt),
	}
}

// RegisterWorker implements pulsev1.PulseServiceServer.
func (s *Server) RegisterWorker(ctx context.Context, req *pulsev1.RegisterWorkerRequest) (*pulsev1.RegisterWorkerResponse, error) {
	var resp *pulsev1.RegisterWorkerResponse
	err := s.record("RegisterWorker", func() error {
		if req.WorkerID == "" {
			return status.Error(codes.InvalidArgument, "worker_id is required")
		}
		w, err := s.workers.Register(req.WorkerID, req.Labels)
		if err != nil {
			if errors.Is(err, worker.ErrAlreadyExists) {
				return status.Errorf(codes.AlreadyExists, "worker %s already registered", req.WorkerID)
			}
			return status.Error(codes.InvalidArgument, err.Error())
		}
		s.logger.Info("worker registered", zap.String("worker_id", req.WorkerID))
		s.metrics.RecordWorkerRegistered()
		resp = &pulsev1.RegisterWorkerResponse{Success: true, Message: "worker registered", Worker: toWireWorker(w)}
		return nil
	})
	return resp, err
}

// DeregisterWorker implements pulsev1.PulseServiceServer.
func (s *Server) DeregisterWorker(ctx context.Context, req *pulsev1.DeregisterWorkerRequest) (*pulsev1.DeregisterWorkerResponse, error) {
	var resp *pulsev1.DeregisterWorkerResponse
	err := s.record("DeregisterWorker", func() error {
		if err := s.workers.Deregister(req.WorkerID); err != nil {
			if errors.Is(err, worker.ErrNotFound) {
				return status.Errorf(codes.NotFound, "worker %s not found", req.WorkerID)
			}
			return status.Error(codes.Internal, err.Error())
		}
		resp = &pulsev1.DeregisterWorkerResponse{Success: true, Message: "worker deregistered"}
		return nil
	})
	return resp, err
}

// Heartbeat implements pulsev1.PulseServiceServer.
func (s *Server) Heartbeat(ctx context.Context, req *pulsev1.HeartbeatRequest) (*pulsev1.HeartbeatResponse, error) {
	var resp *pulsev1.HeartbeatResponse
	err := s.record("Heartbeat", func() error {
		if err := s.workers.Heartbeat(req.WorkerID, worker.Status(req.Status)); err != nil {
			if errors.Is(err, worker.ErrNotFound) {
				return status.Errorf(codes.NotFound, "worker %s not found", req.WorkerID)
			}
			return status.Error(codes.Internal, err.Error())
		}
		s.metrics.RecordWorkerHeartbeat()
		resp = &pulsev1.HeartbeatResponse{Success: true, ServerTime: toTimestamp(time.Now().UTC())}
		return nil
	})
	return resp, err
}

// ListWorkers implements pulsev1.PulseServiceServer.
func (s *Server) ListWorkers(ctx context.Context, req *pulsev1.ListWorkersRequest) (*pulsev1.ListWorkersResponse, error) {
	var resp *pulsev1.ListWorkersResponse
	err := s.record("ListWorkers", func() error {
		workers := s.workers.List(worker.Status(req.StatusFilter))
		out := make([]*pulsev1.Worker, 0, len(workers))
		for _, w := range workers {
			out = append(out, toWireWorker(w))
		}
		resp = &pulsev1.ListWorkersResponse{Workers: out, TotalCount: int64(len(out))}
		return nil
	})
	return resp, err
}

// RegisterDataset implements pulsev1.PulseServiceServer.
func (s *Server) RegisterDataset(ctx context.Context, req *pulsev1.RegisterDatasetRequest) (*pulsev1.RegisterDatasetResponse, error) {
	var resp *pulsev1.RegisterDatasetResponse
	err := s.record("RegisterDataset", func() error {
		if req.ID == "" {
			return status.Error(codes.InvalidArgument, "id is required")
		}
		d := s.datasets.Register(req.ID, req.Path, req.Labels)
		resp = &pulsev1.RegisterDatasetResponse{Success: true, Dataset: toWireDataset(d)}
		return nil
	})
	return resp, err
}

// ListDatasets implements pulsev1.PulseServiceServer.
func (s *Server) ListDatasets(ctx context.Context, req *pulsev1.ListDatasetsRequest) (*pulsev1.ListDatasetsResponse, error) {
	var resp *pulsev1.ListDatasetsResponse
	err := s.record("ListDatasets", func() error {
		datasets := s.datasets.List()
		out := make([]*pulsev1.DatasetInfo, 0, len(datasets))
		for _, d := range datasets {
			out = append(out, toWireDataset(d))
		}
		resp = &pulsev1.ListDatasetsResponse{Datasets: out, TotalCount: int64(len(out))}
		return nil
	})
	return resp, err
}

// checkpointErrToStatus maps a checkpoint.Manager error to a grpc status.
func checkpointErrToStatus(err error) error {
	switch {
	case errors.Is(err, checkpoint.ErrIdempotentDuplicate):
		return status.Error(codes.AlreadyExists, "a save for this idempotency key is already in flight or unresolved")
	case errors.Is(err, checkpoint.ErrNotFound):
		return status.Error(codes.NotFound, "checkpoint not found")
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, "checkpoint data not found in storage")
	case errors.Is(err, checkpoint.ErrInvalidData):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, checkpoint.ErrUploadFailed):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// SaveCheckpoint implements pulsev1.PulseServiceServer.
func (s *Server) SaveCheckpoint(ctx context.Context, req *pulsev1.SaveCheckpointRequest) (*pulsev1.SaveCheckpointResponse, error) {
	var resp *pulsev1.SaveCheckpointResponse
	err := s.record("SaveCheckpoint", func() error {
		if req.WorkerID == "" {
			return status.Error(codes.InvalidArgument, "worker_id is required")
		}
		if !s.workers.Exists(req.WorkerID) {
			return status.Errorf(codes.FailedPrecondition, "worker %s is not registered", req.WorkerID)
		}
		cp, err := s.checkpoints.Save(ctx, req.WorkerID, req.Data, req.Labels, req.IdempotencyKey)
		if err != nil {
			return checkpointErrToStatus(err)
		}
		resp = &pulsev1.SaveCheckpointResponse{Success: true, Checkpoint: toWireCheckpoint(cp)}
		return nil
	})
	return resp, err
}

// SaveCheckpointStream implements pulsev1.PulseServiceServer. It expects a
// single header message followed by zero or more chunk messages, buffers
// the full payload in memory, then performs one Save call — matching
// SaveCheckpoint's semantics for idempotency and retry.
func (s *Server) SaveCheckpointStream(stream pulsev1.PulseService_SaveCheckpointStreamServer) error {
	start := time.Now()
	err := s.saveCheckpointStream(stream)
	s.metrics.RecordGRPCRequest("SaveCheckpointStream", status.Code(err).String(), time.Since(start))
	return err
}

func (s *Server) saveCheckpointStream(stream pulsev1.PulseService_SaveCheckpointStreamServer) error {
	first, err := stream.Recv()
	if err != nil {
		if err == io.EOF {
			return status.Error(codes.InvalidArgument, "expected a header message")
		}
		return status.Error(codes.Internal, err.Error())
	}
	if first.Header == nil {
		return status.Error(codes.InvalidArgument, "first message must carry a header")
	}
	header := first.Header
	if header.WorkerID == "" {
		return status.Error(codes.InvalidArgument, "worker_id is required")
	}
	if !s.workers.Exists(header.WorkerID) {
		return status.Errorf(codes.FailedPrecondition, "worker %s is not registered", header.WorkerID)
	}

	var data []byte
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if msg.Header != nil {
			return status.Error(codes.InvalidArgument, "header message may only appear once")
		}
		data = append(data, msg.Chunk...)
	}

	cp, err := s.checkpoints.Save(stream.Context(), header.WorkerID, data, header.Labels, header.IdempotencyKey)
	if err != nil {
		return checkpointErrToStatus(err)
	}
	return stream.SendAndClose(&pulsev1.SaveCheckpointResponse{Success: true, Checkpoint: toWireCheckpoint(cp)})
}

// GetCheckpoint implements pulsev1.PulseServiceServer.
func (s *Server) GetCheckpoint(ctx context.Context, req *pulsev1.GetCheckpointRequest) (*pulsev1.GetCheckpointResponse, error) {
	var resp *pulsev1.GetCheckpointResponse
	err := s.record("GetCheckpoint", func() error {
		cp := s.checkpoints.Get(req.CheckpointID)
		if cp == nil {
			return status.Errorf(codes.NotFound, "checkpoint %s not found", req.CheckpointID)
		}
		resp = &pulsev1.GetCheckpointResponse{Checkpoint: toWireCheckpoint(cp)}
		if req.IncludeData {
			data, err := s.checkpoints.GetData(ctx, req.CheckpointID)
			if err != nil {
				return checkpointErrToStatus(err)
			}
			resp.Data = data
		}
		return nil
	})
	return resp, err
}

// ListCheckpoints implements pulsev1.PulseServiceServer.
func (s *Server) ListCheckpoints(ctx context.Context, req *pulsev1.ListCheckpointsRequest) (*pulsev1.ListCheckpointsResponse, error) {
	var resp *pulsev1.ListCheckpointsResponse
	err := s.record("ListCheckpoints", func() error {
		checkpoints := s.checkpoints.List(req.WorkerID, checkpoint.Status(req.StatusFilter))
		out := make([]*pulsev1.CheckpointInfo, 0, len(checkpoints))
		for _, c := range checkpoints {
			out = append(out, toWireCheckpoint(c))
		}
		resp = &pulsev1.ListCheckpointsResponse{Checkpoints: out, TotalCount: int64(len(out))}
		return nil
	})
	return resp, err
}

// DeleteCheckpoint implements pulsev1.PulseServiceServer.
func (s *Server) DeleteCheckpoint(ctx context.Context, req *pulsev1.DeleteCheckpointRequest) (*pulsev1.DeleteCheckpointResponse, error) {
	var resp *pulsev1.DeleteCheckpointResponse
	err := s.record("DeleteCheckpoint", func() error {
		if err := s.checkpoints.Delete(ctx, req.CheckpointID); err != nil {
			return checkpointErrToStatus(err)
		}
		resp = &pulsev1.DeleteCheckpointResponse{Success: true}
		return nil
	})
	return resp, err
}

// HealthCheck implements pulsev1.PulseServiceServer, reporting per-component
// status alongside version and uptime.
func (s *Server) HealthCheck(ctx context.Context, req *pulsev1.HealthCheckRequest) (*pulsev1.HealthCheckResponse, error) {
	now := toTimestamp(time.Now().UTC())
	components := map[string]*pulsev1.ComponentHealth{
		"worker_registry": {
			Status:    "HEALTHY",
			Message:   fmt.Sprintf("%d active, %d total", s.workers.ActiveCount(), s.workers.TotalCount()),
			LastCheck: now,
		},
		"storage": s.probeStorage(ctx, now),
	}
	return &pulsev1.HealthCheckResponse{
		Status:        "SERVING",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Components:    components,
	}, nil
}

// probeStorage heads a never-written key against the configured bucket to
// confirm the Storage Adapter can still reach it; a missing key is a
// healthy result, anything else means the bucket itself is unreachable.
func (s *Server) probeStorage(ctx context.Context, now *pulsev1.Timestamp) *pulsev1.ComponentHealth {
	_, err := s.storage.Exists(ctx, healthProbeKey)
	if err != nil {
		return &pulsev1.ComponentHealth{
			Status:    "UNHEALTHY",
			Message:   fmt.Sprintf("bucket probe failed: %v", err),
			LastCheck: now,
		}
	}
	return &pulsev1.ComponentHealth{
		Status:    "HEALTHY",
		Message:   fmt.Sprintf("%d checkpoints tracked", s.checkpoints.Count()),
		LastCheck: now,
	}
}
