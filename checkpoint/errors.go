package checkpoint

import "errors"

// Sentinel errors returned by Manager operations.
var (
	ErrNotFound            = errors.New("checkpoint: not found")
	ErrIdempotentDuplicate = errors.New("checkpoint: idempotent duplicate")
	ErrInvalidData         = errors.New("checkpoint: invalid data")
	ErrUploadFailed        = errors.New("checkpoint: upload failed")
)
