package dispatch

import "errors"

var (
	// ErrMissingCollaborator is returned by New when a required interface
	// implementation is nil.
	ErrMissingCollaborator = errors.New("dispatch: missing collaborator")

	// ErrMalformedCommand is returned for a frame that starts with the
	// command prefix but carries no CR or LF.
	//
	// The frame is dropped without executing anything. It is a local
	// format error and does not affect later frames.
	ErrMalformedCommand = errors.New("AT format error")

	// ErrPersist wraps a configuration persistence failure while leaving
	// transparent mode.
	//
	// This is the one dispatch failure the application should treat as a
	// hard error; the mode has already switched back to normal in memory.
	ErrPersist = errors.New("persist configuration")
)
