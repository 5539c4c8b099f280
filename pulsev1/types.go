// Package pulsev1 holds the wire message types for the pulse.v1.PulseService
// contract defined in proto/pulse/v1/pulse.proto. The types are plain Go
// structs with json tags rather than protoc-gen-go output; see jsoncodec.go
// for how they cross the wire.
package pulsev1

// Timestamp mirrors proto/pulse/v1/pulse.proto Timestamp: Unix epoch UTC.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// WorkerStatus mirrors the WorkerStatus enum.
type WorkerStatus int32

const (
	WorkerStatusUnspecified WorkerStatus = 0
	WorkerStatusActive      WorkerStatus = 1
	WorkerStatusUnhealthy   WorkerStatus = 2
	WorkerStatusDraining    WorkerStatus = 3
	WorkerStatusStopped     WorkerStatus = 4
)

func (s WorkerStatus) String() string {
	switch s {
	case WorkerStatusActive:
		return "ACTIVE"
	case WorkerStatusUnhealthy:
		return "UNHEALTHY"
	case WorkerStatusDraining:
		return "DRAINING"
	case WorkerStatusStopped:
		return "STOPPED"
	default:
		return "UNSPECIFIED"
	}
}

// CheckpointStatus mirrors the CheckpointStatus enum.
type CheckpointStatus int32

const (
	CheckpointStatusUnspecified CheckpointStatus = 0
	CheckpointStatusUploading   CheckpointStatus = 1
	CheckpointStatusCompleted   CheckpointStatus = 2
	CheckpointStatusFailed      CheckpointStatus = 3
	CheckpointStatusDeleted     CheckpointStatus = 4
)

func (s CheckpointStatus) String() string {
	switch s {
	case CheckpointStatusUploading:
		return "UPLOADING"
	case CheckpointStatusCompleted:
		return "COMPLETED"
	case CheckpointStatusFailed:
		return "FAILED"
	case CheckpointStatusDeleted:
		return "DELETED"
	default:
		return "UNSPECIFIED"
	}
}

// Worker mirrors the Worker message.
type Worker struct {
	WorkerID      string            `json:"worker_id"`
	Labels        map[string]string `json:"labels,omitempty"`
	Status        WorkerStatus      `json:"status"`
	RegisteredAt  *Timestamp        `json:"registered_at,omitempty"`
	LastHeartbeat *Timestamp        `json:"last_heartbeat,omitempty"`
}

// CheckpointInfo mirrors the CheckpointInfo message.
type CheckpointInfo struct {
	CheckpointID string            `json:"checkpoint_id"`
	WorkerID     string            `json:"worker_id"`
	StoragePath  string            `json:"storage_path"`
	SizeBytes    int64             `json:"size_bytes"`
	Checksum     string            `json:"checksum"`
	Labels       map[string]string `json:"labels,omitempty"`
	CreatedAt    *Timestamp        `json:"created_at,omitempty"`
	Status       CheckpointStatus  `json:"status"`
}

// DatasetInfo mirrors the DatasetInfo message.
type DatasetInfo struct {
	ID           string            `json:"id"`
	Path         string            `json:"path"`
	Labels       map[string]string `json:"labels,omitempty"`
	RegisteredAt *Timestamp        `json:"registered_at,omitempty"`
}
