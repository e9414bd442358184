package session

import "errors"

var (
	// ErrUnexpectedFrame is returned when a frame arrives in a phase that
	// does not expect one (SentClientFinish, per spec.md §9 open question
	// #2's resolution: any such frame is a protocol error, not a silent
	// drop).
	ErrUnexpectedFrame = errors.New("session: unexpected frame for current phase")
	// ErrTerminated is returned by operations attempted after the session
	// has already transitioned to Terminated.
	ErrTerminated = errors.New("session: already terminated")
)
