package queue

import "errors"

var (
	// ErrInvalidID reports an id that is too short or carries an unparsable timestamp.
	ErrInvalidID = errors.New("invalid task id")
	// ErrEmpty reports a descriptor whose body is blank.
	ErrEmpty = errors.New("task descriptor is empty")
	// ErrNotFound reports a descriptor that does not exist.
	ErrNotFound = errors.New("task descriptor not found")
	// ErrRenameFailed reports a transition whose rename did not happen.
	ErrRenameFailed = errors.New("task transition failed")
	// ErrInvalidTransition reports a status edge the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid task transition")
)
