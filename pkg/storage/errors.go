package storage

import "github.com/pkg/errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreConsistency = errors.New("key already written with different content")
	ErrStorageIO        = errors.New("storage io failure")
	ErrKeyMismatch      = errors.New("record does not belong to key")
	ErrClosed           = errors.New("store closed")

	// ErrEmptySeed rejects zero length randomness, which would read
	// back the same as a missing seed
	ErrEmptySeed = errors.New("empty randomness seed")
)

// IOError is a failure of the backing store. It matches ErrStorageIO and
// unwraps to the underlying cause.
type IOError struct {
	Op  string
	Err error
}

func NewIOError(op string, err error) error {
	return &IOError{Op: op, Err: err}
}

func (e *IOError) Error() string {
	return e.Op + ": " + ErrStorageIO.Error() + ": " + e.Err.Error()
}

func (e *IOError) Is(target error) bool {
	return target == ErrStorageIO
}

func (e *IOError) Unwrap() error {
	return e.Err
}
