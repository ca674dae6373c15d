package replay

import "errors"

// Error implements errors unique to a replay buffer.
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

var errInsufficientData = errors.New("buffer holds too few transitions")

var errInvalidIndex = errors.New("index out of range")

var errInvalidPriority = errors.New("priority must be positive")

// IsInsufficientData returns whether or not an error reports that a
// buffer does not yet hold enough transitions to sample from.
func IsInsufficientData(err error) bool {
	if bufErr, ok := err.(*Error); ok {
		err = bufErr.Err
	}
	return err == errInsufficientData
}

// IsInvalidIndex returns whether or not an error reports a priority
// update for a slot that holds no transition.
func IsInvalidIndex(err error) bool {
	if bufErr, ok := err.(*Error); ok {
		err = bufErr.Err
	}
	return err == errInvalidIndex
}

// IsInvalidPriority returns whether or not an error reports a
// non-positive priority.
func IsInvalidPriority(err error) bool {
	if bufErr, ok := err.(*Error); ok {
		err = bufErr.Err
	}
	return err == errInvalidPriority
}
