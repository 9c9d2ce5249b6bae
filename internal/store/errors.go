package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key is already taken.
var ErrDuplicate = errors.New("duplicate key")

// ErrConditionFailed is returned when a guarded update matched the record
// but its preconditions no longer hold.
var ErrConditionFailed = errors.New("update precondition failed")
