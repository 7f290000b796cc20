package modem

import (
	"errors"

	"i4.energy/across/loranode/join"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLoopRunning is returned when Loop is started a second time.
	ErrLoopRunning = errors.New("modem loop already running")

	// ErrLineTooLong is returned when a module response line exceeds the
	// maximum allowed length.
	//
	// This typically indicates malformed input, unexpected binary data,
	// or a protocol framing error.
	ErrLineTooLong = errors.New("response line too long")

	// ErrJoinInProgress is returned by RequestJoin while a previous at+join
	// has not yet been answered. It is the join package's sentinel so the
	// orchestrator recognizes it.
	ErrJoinInProgress = join.ErrJoinInProgress

	// ErrPayloadTooLarge is returned when an uplink exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInvalidPort is returned for application ports outside 1..223.
	ErrInvalidPort = errors.New("invalid application port")

	// ErrMalformedDownlink is returned when an at+recv line cannot be parsed.
	ErrMalformedDownlink = errors.New("malformed downlink")

	// ErrStatusField is returned when a status field is missing from the
	// at+get_config=lora:status response.
	ErrStatusField = errors.New("status field not reported")
)
