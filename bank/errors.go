package bank

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegularFile rejects ingestion sources that are not readable
	// regular files, before any side effect
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrInvalidGrade rejects grades outside 0..5
	ErrInvalidGrade = errors.New("grade must be between 0 and 5")

	// ErrUnknownPicture is returned for ids the bank does not hold
	ErrUnknownPicture = errors.New("unknown picture")
)

// DuplicateError signals that an ingested file already exists in the
// bank. It is not a failure: the requested tags have been attached to
// the existing picture by the time this is returned.
type DuplicateError struct {
	ID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("picture already exists with id %s", e.ID)
}

// TransformError wraps a metadata-extraction or image-generation failure
// during ingestion. It aborts that file but is recoverable at the batch
// level.
type TransformError struct {
	Path string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed for %s: %v", e.Path, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// StoreError wraps a copy, SQL or index failure. These are unrecoverable
// for the item: the bank may hold a partially registered picture that
// needs manual cleanup, and bulk ingestion stops on them.
type StoreError struct {
	Op  string // "copy", "sql", "index" or "delete"
	Ref string // offending path or picture id
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Ref, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsRecoverable classifies an ingestion error for the bulk walker:
// input, duplicate and transform errors let the traversal continue,
// store errors abort it
func IsRecoverable(err error) bool {
	var se *StoreError
	return !errors.As(err, &se)
}
