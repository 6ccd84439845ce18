package task

import "errors"

// Error variables for task operations.
var (
	ErrInvalidFilename = errors.New("invalid filename format")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrNotFound        = errors.New("task not found")
	ErrConflict        = errors.New("etag mismatch")
	ErrTitleRequired   = errors.New("title is required")
)

// ConflictError reports a stale freshness token on a guarded write.
// Current carries the token the caller should re-read against.
type ConflictError struct {
	Expected string
	Current  string
}

func (e *ConflictError) Error() string {
	return ErrConflict.Error()
}

// Is makes errors.Is(err, ErrConflict) hold for a *ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
