package content

import "errors"

var (
	// ErrNotFound is returned when no project has the requested id.
	ErrNotFound = errors.New("project not found")
	// ErrValidation wraps an *entity.ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrStorageIO is returned when the backing storage cannot be read or
	// written. It is never masked as an empty list.
	ErrStorageIO = errors.New("storage I/O error")
)
