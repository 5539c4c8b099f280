package worker

import "errors"

// The registry never fails internally beyond these three enumerated cases;
// sweeper errors are impossible by construction.
var (
	ErrAlreadyExists = errors.New("worker: already exists")
	ErrNotFound      = errors.New("worker: not found")
	ErrInvalidID     = errors.New("worker: invalid id")
)
