package session

import (
	"errors"
	"fmt"
)

var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrNoRoomAvailable      = errors.New("no room available")
	ErrRoomCreate           = errors.New("room creation failed")
	ErrRoomJoin             = errors.New("room join failed")
	ErrInvalidTransition    = errors.New("invalid session transition")
	ErrInvalidCapacity      = errors.New("invalid room capacity")
)

// Error carries the operation that failed next to one of the sentinels above.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
