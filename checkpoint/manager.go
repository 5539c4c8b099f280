// Package checkpoint implements the Checkpoint Manager: idempotent writes,
// content hashing, retry-with-backoff uploads, and integrity verification on
// read.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lloredia/pulsecheckpoint-runtime/retrypolicy"
	"github.com/lloredia/pulsecheckpoint-runtime/storage"
)

// Status is the lifecycle state of a checkpoint record.
type Status int32

const (
	StatusUnspecified Status = iota
	StatusUploading
	StatusCompleted
	StatusFailed
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusUploading:
		return "UPLOADING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusDeleted:
		return "DELETED"
	default:
		return "UNSPECIFIED"
	}
}

// Checkpoint is a single metadata record. size_bytes equals payload length;
// checksum equals SHA-256 of the payload; storage_path is non-empty iff
// status is COMPLETED; a checkpoint may move UPLOADING -> COMPLETED|FAILED
// but never revert.
type Checkpoint struct {
	CheckpointID string
	WorkerID     string
	StoragePath  string
	SizeBytes    int64
	Checksum     string
	Labels       map[string]string
	CreatedAt    time.Time
	Status       Status
}

func (c Checkpoint) clone() *Checkpoint {
	labels := make(map[string]string, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = v
	}
	c.Labels = labels
	return &c
}

// MetricsRecorder receives save/checksum observations; the metrics sink
// implements this so the manager stays decoupled from any particular
// metrics backend.
type MetricsRecorder interface {
	RecordCheckpointSaved(duration time.Duration)
	RecordError(kind string)
}

type noopRecorder struct{}

func (noopRecorder) RecordCheckpointSaved(time.Duration) {}
func (noopRecorder) RecordError(string)                  {}

// Manager owns checkpoint metadata and idempotency bindings. Both maps are
// guarded by the same mutex, matching the concurrency idiom used by
// worker.Registry for shared in-memory state.
type Manager struct {
	mu sync.RWMutex

	storage storage.Adapter
	retry   retrypolicy.Policy
	logger  *zap.Logger
	metrics MetricsRecorder

	checkpoints map[string]*Checkpoint
	idempotency map[string]string
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithRetryPolicy overrides the default retry policy (retrypolicy.DefaultPolicy()).
func WithRetryPolicy(p retrypolicy.Policy) Option {
	return func(m *Manager) { m.retry = p }
}

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics attaches a metrics recorder; defaults to a no-op.
func WithMetrics(rec MetricsRecorder) Option {
	return func(m *Manager) { m.metrics = rec }
}

// New constructs a Manager backed by the given Storage Adapter.
func New(adapter storage.Adapter, opts ...Option) *Manager {
	m := &Manager{
		storage:     adapter,
		retry:       retrypolicy.DefaultPolicy(),
		logger:      zap.NewNop(),
		metrics:     noopRecorder{},
		checkpoints: make(map[string]*Checkpoint),
		idempotency: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save persists payload for workerID, returning its checkpoint metadata.
// It resolves any idempotency key first, then assigns a checkpoint id,
// computes the checksum and storage key, records an UPLOADING row, uploads
// with retry, and only then marks the row COMPLETED and binds the
// idempotency key — strictly after the row turns COMPLETED, so a concurrent
// reader either sees no binding or a COMPLETED checkpoint, never a binding
// pointing at an UPLOADING record.
func (m *Manager) Save(ctx context.Context, workerID string, payload []byte, labels map[string]string, idempotencyKey string) (*Checkpoint, error) {
	if idempotencyKey != "" {
		if existing, dup, err := m.resolveIdempotency(idempotencyKey); dup {
			if err != nil {
				return nil, err
			}
			return existing, nil
		}
	}

	checkpointID := newCheckpointID()
	checksum := sha256Hex(payload)
	size := int64(len(payload))
	storageKey := storageKeyFor(workerID, checkpointID, time.Now().UTC())

	labelsCopy := make(map[string]string, len(labels))
	for k, v := range labels {
		labelsCopy[k] = v
	}

	rec := &Checkpoint{
		CheckpointID: checkpointID,
		WorkerID:     workerID,
		SizeBytes:    size,
		Checksum:     checksum,
		Labels:       labelsCopy,
		CreatedAt:    time.Now().UTC(),
		Status:       StatusUploading,
	}

	m.mu.Lock()
	m.checkpoints[checkpointID] = rec
	m.mu.Unlock()

	m.logger.Info("saving checkpoint",
		zap.String("checkpoint_id", checkpointID),
		zap.String("worker_id", workerID),
		zap.Int64("size", size),
		zap.String("storage_key", storageKey))

	start := time.Now()
	var storagePath string
	uploadErr := m.retry.Do(ctx, func(attempt int) error {
		m.logger.Debug("upload attempt",
			zap.Int("attempt", attempt), zap.String("checkpoint_id", checkpointID))
		path, err := m.storage.Upload(ctx, storageKey, payload)
		if err != nil {
			m.logger.Warn("upload attempt failed",
				zap.Int("attempt", attempt), zap.String("checkpoint_id", checkpointID), zap.Error(err))
			return err
		}
		storagePath = path
		return nil
	})

	if uploadErr != nil {
		m.mu.Lock()
		rec.Status = StatusFailed
		m.mu.Unlock()
		m.metrics.RecordError("checkpoint_save")
		m.logger.Error("checkpoint upload failed", zap.String("checkpoint_id", checkpointID), zap.Error(uploadErr))
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, uploadErr)
	}

	m.mu.Lock()
	rec.StoragePath = storagePath
	rec.Status = StatusCompleted
	if idempotencyKey != "" {
		m.idempotency[idempotencyKey] = checkpointID
	}
	out := rec.clone()
	m.mu.Unlock()

	m.metrics.RecordCheckpointSaved(time.Since(start))
	m.logger.Info("checkpoint saved",
		zap.String("checkpoint_id", checkpointID),
		zap.String("worker_id", workerID),
		zap.String("storage_path", storagePath),
		zap.Duration("duration", time.Since(start)))

	return out, nil
}

// resolveIdempotency reports whether key already has a binding worth acting
// on. dup is true when the caller should short-circuit: either returning the
// existing COMPLETED checkpoint (err is nil) or ErrIdempotentDuplicate (err
// is set) for an in-flight or stale binding.
func (m *Manager) resolveIdempotency(key string) (existing *Checkpoint, dup bool, err error) {
	m.mu.RLock()
	checkpointID, bound := m.idempotency[key]
	var snapshot *Checkpoint
	if bound {
		if rec := m.checkpoints[checkpointID]; rec != nil {
			snapshot = rec.clone()
		}
	}
	m.mu.RUnlock()

	if !bound {
		return nil, false, nil
	}
	if snapshot == nil {
		// Stale binding: the checkpoint was deleted out from under it.
		return nil, true, ErrIdempotentDuplicate
	}
	if snapshot.Status == StatusCompleted {
		m.logger.Info("returning existing checkpoint for idempotency key",
			zap.String("idempotency_key", key), zap.String("checkpoint_id", checkpointID))
		return snapshot, true, nil
	}
	// UPLOADING or FAILED: in-flight or not yet resolved. Callers never wait
	// on another caller's in-flight save; they get told to retry instead.
	return nil, true, ErrIdempotentDuplicate
}

// Get returns a metadata snapshot, or nil if not present.
func (m *Manager) Get(checkpointID string) *Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.checkpoints[checkpointID]
	if !ok {
		return nil
	}
	return rec.clone()
}

// GetData resolves the checkpoint, downloads its payload, and verifies the
// SHA-256 checksum. Verification on read is mandatory: the contract is
// content-addressed.
func (m *Manager) GetData(ctx context.Context, checkpointID string) ([]byte, error) {
	rec := m.Get(checkpointID)
	if rec == nil {
		return nil, ErrNotFound
	}

	key, err := stripStorageURI(rec.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	data, err := m.storage.Download(ctx, key)
	if err != nil {
		return nil, err
	}

	actual := sha256Hex(data)
	if actual != rec.Checksum {
		m.metrics.RecordError("checksum_mismatch")
		m.logger.Error("checksum mismatch",
			zap.String("checkpoint_id", checkpointID),
			zap.String("expected", rec.Checksum), zap.String("actual", actual))
		return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrInvalidData, checkpointID)
	}
	return data, nil
}

// List returns a snapshot of checkpoints matching both predicates (AND).
// An empty workerID or StatusUnspecified matches every value for that
// predicate.
func (m *Manager) List(workerID string, status Status) []*Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Checkpoint, 0, len(m.checkpoints))
	for _, rec := range m.checkpoints {
		if workerID != "" && rec.WorkerID != workerID {
			continue
		}
		if status != StatusUnspecified && rec.Status != status {
			continue
		}
		out = append(out, rec.clone())
	}
	return out
}

// Delete removes the metadata record, then invokes the storage adapter's
// delete. The metadata is removed first: favoring namespace reclamation at
// the risk of an orphaned blob if the storage delete then fails, since blobs
// are recoverable by out-of-band scans.
func (m *Manager) Delete(ctx context.Context, checkpointID string) error {
	m.mu.Lock()
	rec, ok := m.checkpoints[checkpointID]
	if ok {
		delete(m.checkpoints, checkpointID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	if rec.StoragePath == "" {
		return nil
	}
	key, err := stripStorageURI(rec.StoragePath)
	if err != nil {
		return nil
	}
	if err := m.storage.Delete(ctx, key); err != nil {
		return err
	}
	m.logger.Info("checkpoint deleted", zap.String("checkpoint_id", checkpointID))
	return nil
}

// Count returns the total number of checkpoint records.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkpoints)
}

// newCheckpointID generates a server-assigned id: "chk_" followed by the
// first 12 hex characters of a fresh UUIDv4.
func newCheckpointID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "chk_" + raw[:12]
}

// storageKeyFor builds the checkpoints/<worker_id>/<YYYY>/<MM>/<DD>/<id>.bin
// key using a UTC date partition.
func storageKeyFor(workerID, checkpointID string, t time.Time) string {
	return fmt.Sprintf("checkpoints/%s/%04d/%02d/%02d/%s.bin",
		workerID, t.Year(), t.Month(), t.Day(), checkpointID)
}

// stripStorageURI recovers the storage key from a "s3://<bucket>/<key>" URI.
func stripStorageURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", fmt.Errorf("invalid storage path: %s", uri)
	}
	_, key, ok := strings.Cut(rest, "/")
	if !ok {
		return "", fmt.Errorf("invalid storage path: %s", uri)
	}
	return key, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
