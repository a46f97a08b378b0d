package store

import "errors"

// ErrPersistence matches every *PersistenceError through errors.Is.
var ErrPersistence = errors.New("persistence error")

// ErrInvalidData is returned by Write for data that is not valid UTF-8. Such
// data cannot be stored in the backup without altering it.
var ErrInvalidData = errors.New("data must be valid UTF-8")

// PersistenceError reports an I/O fault while reading, writing or deleting the
// backup. The operation that returned it did not take effect.
type PersistenceError struct {
	// Op names the backup operation: "save", "load", "delete" or "stat".
	Op  string
	Err error
}

// Error returns the error message.
func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "backup " + e.Op + ": no error provided"
	}
	return "backup " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying I/O error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
