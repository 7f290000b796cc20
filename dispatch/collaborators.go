package dispatch

//go:generate go tool mockgen -source=collaborators.go -destination=mock_collaborators.go -package=dispatch

import (
	"context"

	"i4.energy/across/loranode/at"
)

// ModeStore holds the device-wide console mode. The dispatcher reads it for
// every frame and only writes it when leaving transparent mode.
type ModeStore interface {
	Mode() at.Mode
	SetMode(at.Mode) error
}

// Sender transmits an uplink payload on a LoRaWAN application port.
type Sender interface {
	Send(ctx context.Context, port int, payload []byte) error
}

// Persister saves the device configuration.
type Persister interface {
	Persist() error
}

// Executor runs one AT command, already stripped of its terminators.
type Executor interface {
	Run(ctx context.Context, command string)
}

// Fallback receives normal-mode frames that are not AT commands.
type Fallback interface {
	Handle(ctx context.Context, frame []byte)
}
