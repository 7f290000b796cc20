package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"i4.energy/across/loranode/at"
)

// Config wires a Dispatcher to its collaborators. Modes, Sender, Persister,
// Executor and Fallback are required.
type Config struct {
	Modes     ModeStore
	Sender    Sender
	Persister Persister
	Executor  Executor
	Fallback  Fallback
	// OnModeExit is called after "+++" switched the console back to
	// normal mode.
	OnModeExit func()
	// Port is the application port for transparent-mode payloads.
	// Defaults to at.PassthroughPort.
	Port   int
	Logger *slog.Logger
}

// Dispatcher routes completed console frames according to the current
// console mode. It keeps no state between frames.
type Dispatcher struct {
	modes      ModeStore
	sender     Sender
	persister  Persister
	executor   Executor
	fallback   Fallback
	onModeExit func()
	port       int
	logger     *slog.Logger
}

// New validates the configuration and returns a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	switch {
	case cfg.Modes == nil:
		return nil, fmt.Errorf("%w: mode store", ErrMissingCollaborator)
	case cfg.Sender == nil:
		return nil, fmt.Errorf("%w: sender", ErrMissingCollaborator)
	case cfg.Persister == nil:
		return nil, fmt.Errorf("%w: persister", ErrMissingCollaborator)
	case cfg.Executor == nil:
		return nil, fmt.Errorf("%w: executor", ErrMissingCollaborator)
	case cfg.Fallback == nil:
		return nil, fmt.Errorf("%w: fallback", ErrMissingCollaborator)
	}

	d := &Dispatcher{
		modes:      cfg.Modes,
		sender:     cfg.Sender,
		persister:  cfg.Persister,
		executor:   cfg.Executor,
		fallback:   cfg.Fallback,
		onModeExit: cfg.OnModeExit,
		port:       cfg.Port,
		logger:     cfg.Logger,
	}
	if d.port <= 0 {
		d.port = at.PassthroughPort
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

// Dispatch classifies one completed frame and performs its single effect:
// run a command, send a passthrough payload, leave transparent mode, or hand
// the frame to the fallback. Malformed commands are only reported.
//
// The returned class is valid even when err is non-nil. Send failures are
// returned wrapped and are not fatal; a persistence failure wraps ErrPersist.
func (d *Dispatcher) Dispatch(ctx context.Context, frame []byte) (at.FrameClass, error) {
	mode := d.modes.Mode()
	class := at.ClassifyFrame(mode, frame)

	switch class {
	case at.FrameEscape:
		if err := d.modes.SetMode(at.ModeNormal); err != nil {
			return class, fmt.Errorf("leave transparent mode: %w", err)
		}
		err := d.persister.Persist()
		d.logger.Info("Transparent mode ended", "mode", at.ModeNormal)
		if d.onModeExit != nil {
			d.onModeExit()
		}
		if err != nil {
			return class, fmt.Errorf("%w: %w", ErrPersist, err)
		}

	case at.FramePassthrough:
		if err := d.sender.Send(ctx, d.port, frame); err != nil {
			return class, fmt.Errorf("passthrough send on port %d: %w", d.port, err)
		}
		d.logger.Debug("Passthrough frame sent", "port", d.port, "length", len(frame))

	case at.FrameCommand:
		cmd := at.CommandText(frame)
		d.logger.Debug("Executing command", "command", cmd)
		d.executor.Run(ctx, cmd)

	case at.FrameMalformed:
		d.logger.Warn("Frame dropped", "error", ErrMalformedCommand, "length", len(frame))
		return class, ErrMalformedCommand

	case at.FrameUnrecognized:
		d.fallback.Handle(ctx, frame)
	}

	return class, nil
}
