// Package worker implements the Worker Registry: registration lifecycle,
// heartbeat accounting, and lapse detection for long-running compute
// participants. State is a single mutex-guarded map supporting safe point
// operations and full-map iteration under concurrent writers.
package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle state of a registered worker.
type Status int32

const (
	StatusUnspecified Status = iota
	StatusActive
	StatusUnhealthy
	StatusDraining
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusUnhealthy:
		return "UNHEALTHY"
	case StatusDraining:
		return "DRAINING"
	case StatusStopped:
		return "STOPPED"
	default:
		return "UNSPECIFIED"
	}
}

// Worker is a single registry record. Created on Register, mutated only by
// Heartbeat and the sweeper, destroyed only by Deregister.
type Worker struct {
	WorkerID      string
	Labels        map[string]string
	Status        Status
	RegisteredAt  time.Time
	LastHeartbeat time.Time
}

func (w Worker) clone() *Worker {
	labels := make(map[string]string, len(w.Labels))
	for k, v := range w.Labels {
		labels[k] = v
	}
	w.Labels = labels
	return &w
}

// Registry is the concurrent worker map plus the background sweeper that
// demotes stale workers to UNHEALTHY.
type Registry struct {
	mu     sync.RWMutex
	logger *zap.Logger

	workers map[string]*Worker

	heartbeatTimeout time.Duration
	sweepInterval    time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithHeartbeatTimeout overrides the default 90s heartbeat timeout.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(r *Registry) { r.heartbeatTimeout = d }
}

// WithSweepInterval overrides the default 30s sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.sweepInterval = d }
}

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New constructs a Registry. The sweeper is not started until Run is called.
func New(opts ...Option) *Registry {
	r := &Registry{
		workers:          make(map[string]*Worker),
		heartbeatTimeout: 90 * time.Second,
		sweepInterval:    30 * time.Second,
		logger:           zap.NewNop(),
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a new ACTIVE worker record. Registration is NOT
// idempotent: a second call with the same worker_id returns ErrAlreadyExists.
func (r *Registry) Register(workerID string, labels map[string]string) (*Worker, error) {
	if workerID == "" {
		return nil, ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[workerID]; exists {
		return nil, ErrAlreadyExists
	}

	now := time.Now().UTC()
	labelsCopy := make(map[string]string, len(labels))
	for k, v := range labels {
		labelsCopy[k] = v
	}

	w := &Worker{
		WorkerID:      workerID,
		Labels:        labelsCopy,
		Status:        StatusActive,
		RegisteredAt:  now,
		LastHeartbeat: now,
	}
	r.workers[workerID] = w
	r.logger.Info("worker registered", zap.String("worker_id", workerID))
	return w.clone(), nil
}

// Deregister removes a worker record atomically.
func (r *Registry) Deregister(workerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[workerID]; !exists {
		return ErrNotFound
	}
	delete(r.workers, workerID)
	r.logger.Info("worker deregistered", zap.String("worker_id", workerID))
	return nil
}

// Heartbeat updates last_heartbeat and, if newStatus is not
// StatusUnspecified, overwrites status unconditionally.
func (r *Registry) Heartbeat(workerID string, newStatus Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, exists := r.workers[workerID]
	if !exists {
		return ErrNotFound
	}
	w.LastHeartbeat = time.Now().UTC()
	if newStatus != StatusUnspecified {
		w.Status = newStatus
	}
	return nil
}

// Get returns a snapshot of the worker record, or nil if not present.
func (r *Registry) Get(workerID string) *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, exists := r.workers[workerID]
	if !exists {
		return nil
	}
	return w.clone()
}

// Exists reports whether workerID is currently registered.
func (r *Registry) Exists(workerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.workers[workerID]
	return exists
}

// List returns a snapshot of all matching records. statusFilter of
// StatusUnspecified matches every status. Order is unspecified.
func (r *Registry) List(statusFilter Status) []*Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Worker, 0, len(r.workers))
	for _, w := range r.workers {
		if statusFilter != StatusUnspecified && w.Status != statusFilter {
			continue
		}
		out = append(out, w.clone())
	}
	return out
}

// ActiveCount returns the number of workers currently ACTIVE.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, w := range r.workers {
		if w.Status == StatusActive {
			n++
		}
	}
	return n
}

// TotalCount returns the total number of registered workers.
func (r *Registry) TotalCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// Run launches the sweeper and blocks until Stop is called. Intended to run
// in its own goroutine.
func (r *Registry) Run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// Stop signals the sweeper to exit and waits for the current tick, if any,
// to finish. Safe to call multiple times.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

// sweep demotes any ACTIVE worker whose heartbeat has lapsed past
// heartbeat_timeout. Concurrent Heartbeat/Register/Deregister calls are
// tolerated; a racing heartbeat that re-activates a worker mid-sweep is the
// correct observable outcome.
func (r *Registry) sweep() {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, w := range r.workers {
		if w.Status == StatusActive && now.Sub(w.LastHeartbeat) > r.heartbeatTimeout {
			w.Status = StatusUnhealthy
			r.logger.Info("worker demoted to unhealthy",
				zap.String("worker_id", id),
				zap.Duration("since_last_heartbeat", now.Sub(w.LastHeartbeat)))
		}
	}
}
