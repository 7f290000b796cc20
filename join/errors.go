package join

import "errors"

var (
	// ErrNoRadio is returned by New when no Radio is configured.
	ErrNoRadio = errors.New("join: no radio configured")

	// ErrUnknownMethod is returned for an activation method other than
	// OTAA or ABP.
	ErrUnknownMethod = errors.New("join: unknown activation method")

	// ErrJoinFailed is carried by the EventJoinFailed event once the retry
	// budget is spent, or when the radio refused a join request.
	//
	// The device keeps running without a network session; a new join has
	// to be triggered explicitly.
	ErrJoinFailed = errors.New("join failed")

	// ErrJoinInProgress is returned, possibly wrapped, by a Radio whose
	// previous join request has not been answered yet. The orchestrator
	// then waits for that answer instead of failing.
	ErrJoinInProgress = errors.New("join already in progress")
)
