package device

import "errors"

var (
	// ErrNoConsole is returned by New without a console transport.
	ErrNoConsole = errors.New("no console configured")

	// ErrNoRadio is returned by New without a radio module.
	ErrNoRadio = errors.New("no radio configured")

	// ErrNoSettings is returned by New without a settings store.
	ErrNoSettings = errors.New("no settings store configured")

	// ErrRunning is returned when Run is called while the loop is active.
	ErrRunning = errors.New("device loop already running")

	// ErrNotRunning is returned by control requests when the loop has stopped
	// or was never started.
	ErrNotRunning = errors.New("device loop not running")

	// ErrWorkMode is returned when a LoRaWAN operation is requested in P2P or
	// TEST work mode.
	ErrWorkMode = errors.New("operation not available in current work mode")
)
