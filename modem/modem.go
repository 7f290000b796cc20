package modem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"i4.energy/across/loranode/at"
)

// maxLineLength bounds a single response line from the module. A full
// downlink (242 bytes hex encoded plus header) fits comfortably.
const maxLineLength = 1024

// Modem represents a LoRaWAN radio module that is driven via AT commands
// (RAK811 class). It owns the MAC stack; the Modem only issues join, send
// and status requests and reports what the module answers.
//
// All transport I/O goes through a centralized event loop, so the Modem is
// safe for concurrent use once Loop is running.
type Modem struct {
	// transport provides the physical connection to the module
	transport Transport
	// config contains the modem configuration settings
	config Config
	// closed indicates if the modem has been shut down
	closed atomic.Bool
	// loopRunning indicates if the Loop is currently running
	loopRunning atomic.Bool
	// joining is set while an at+join is outstanding
	joining atomic.Bool
	// version is the firmware version reported during init
	version string

	// Communication channels for Loop coordination
	// downlinks receives parsed at+recv notifications
	downlinks chan Downlink
	// joinResults receives the outcome of each join attempt
	joinResults chan JoinResult
	// commands queues AT command requests for the Loop to process
	commands chan *commandRequest

	// Loop control
	// loopCtx controls the lifecycle of the main event loop
	loopCtx context.Context
	// loopCancel cancels the main event loop
	loopCancel context.CancelFunc

	logger *slog.Logger
}

// commandRequest represents an AT command request to be executed by the Loop.
// It contains the command string, response channel, and execution context.
type commandRequest struct {
	// cmd is the AT command string to send to the module
	cmd string
	// respChan receives the command response from the Loop
	respChan chan commandResponse
	// ctx provides timeout and cancellation control for the command
	ctx context.Context
}

// commandResponse contains the result of an AT command execution.
// It includes both the response data and any error that occurred.
type commandResponse struct {
	// response contains the complete response text from the module
	response string
	// err contains any error that occurred during command execution
	err error
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection, checks that the module
// answers and prepares the event loop context.
//
// Returns an error if the transport connection or module initialization
// fails.
func New(ctx context.Context, config Config) (*Modem, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	m := &Modem{
		config:      config,
		transport:   transport,
		downlinks:   make(chan Downlink, config.eventBuffer),
		joinResults: make(chan JoinResult, config.eventBuffer),
		// No queue for commands
		commands: make(chan *commandRequest),
		logger:   config.logger,
	}

	// Prepare context for Loop (but don't start it yet)
	m.loopCtx, m.loopCancel = context.WithCancel(context.WithoutCancel(ctx))

	initCtx := ctx
	if config.initTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, config.initTimeout)
		defer cancel()
	}

	if err := m.init(initCtx); err != nil {
		m.loopCancel()
		if m.transport != nil {
			transport.Close()
		}
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

// Loop is the main event loop that handles all transport I/O operations.
// It must be called exactly once after New() and before any other modem operations.
// The Loop coordinates all communication with the module:
//
// 1. Processes command requests from exec() calls, one at a time
// 2. Writes AT commands to the transport
// 3. Reads and parses responses from the transport
// 4. Dispatches downlinks (at+recv URCs) to subscribers
// 5. Returns command responses to waiting exec() calls
//
// The Loop runs until the provided context is cancelled or the Modem is
// closed. It's the ONLY goroutine that reads from the transport, preventing
// race conditions and ensuring downlinks are never interleaved with
// command responses.
//
// Usage:
//
//	modem, err := New(ctx, config)
//	if err != nil { return err }
//
//	// Start the loop (typically in a goroutine)
//	go modem.Loop(ctx)
//
//	// Now Exec() calls will work
//	resp, err := modem.Exec(ctx, "at+version")
func (m *Modem) Loop(ctx context.Context) error {
	if !m.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer m.loopRunning.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.loopCtx, cancel)
	defer stop()

	scanner := bufio.NewScanner(m.transport)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)
	scanner.Split(at.Splitter)

	// Channels for tokens and errors from the scanner goroutine
	tokens := make(chan string, 10)
	scanErrs := make(chan error, 1)

	// Start goroutine to read tokens from transport
	go func() {
		defer close(tokens)
		for scanner.Scan() {
			token := strings.TrimSpace(scanner.Text())
			if token != "" {
				select {
				case tokens <- token:
				case <-ctx.Done():
					return
				}
			}
		}
		// Scanner stopped - check if there was an error
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = ErrLineTooLong
			}
			select {
			case scanErrs <- err:
			case <-ctx.Done():
			}
		}
	}()

	// Current command being processed
	var currentCmd *commandRequest
	var currentLines []string

	finish := func(resp commandResponse) {
		currentCmd.respChan <- resp
		currentCmd = nil
		currentLines = nil
	}

	for {
		// Only accept a new command once the previous one has finished,
		// and watch the deadline of the one in flight.
		var commands <-chan *commandRequest
		var cmdDone <-chan struct{}
		if currentCmd == nil {
			commands = m.commands
		} else {
			cmdDone = currentCmd.ctx.Done()
		}

		select {
		case <-ctx.Done():
			// Context cancelled - shut down gracefully
			if currentCmd != nil {
				finish(commandResponse{err: ctx.Err()})
			}
			return ctx.Err()

		case req := <-commands:
			currentCmd = req
			currentLines = nil

			// Write the AT command to the transport
			wire := strings.TrimSpace(req.cmd) + "\r\n"
			if _, err := m.transport.Write([]byte(wire)); err != nil {
				finish(commandResponse{err: fmt.Errorf("write command %q: %w", req.cmd, err)})
				continue
			}

		case <-cmdDone:
			// Command timed out or was cancelled
			m.logger.Warn("Command abandoned", "command", currentCmd.cmd, "error", currentCmd.ctx.Err())
			finish(commandResponse{err: fmt.Errorf("command timeout: %w", currentCmd.ctx.Err())})

		case token, ok := <-tokens:
			if !ok {
				// Token channel closed - scanner stopped
				select {
				case err := <-scanErrs:
					if currentCmd != nil {
						finish(commandResponse{err: fmt.Errorf("read error: %w", err)})
					}
					return fmt.Errorf("scanner error: %w", err)
				default:
				}
				if currentCmd != nil {
					finish(commandResponse{response: strings.Join(currentLines, "\n"), err: io.EOF})
				}
				return io.EOF
			}

			// Classify the token to determine how to handle it
			switch at.Classify(token) {
			case at.TypeURC:
				// Downlinks can arrive at any time, even during command execution
				m.dispatchURC(token)

			case at.TypeFinal:
				if currentCmd == nil {
					// If no current command, ignore the final response (orphaned)
					m.logger.Debug("Orphaned final response", "line", token)
					continue
				}
				currentLines = append(currentLines, token)
				response := strings.Join(currentLines, "\n")

				if at.IsOK(token) {
					finish(commandResponse{response: response})
				} else {
					finish(commandResponse{response: response, err: errors.New(token)})
				}

			case at.TypeData:
				// Intermediate data response (e.g., status lines)
				if currentCmd != nil {
					currentLines = append(currentLines, token)
				}
			}

		case err := <-scanErrs:
			// Scanner error - notify current command if any
			if currentCmd != nil {
				finish(commandResponse{err: fmt.Errorf("read error: %w", err)})
			}
			return fmt.Errorf("scanner error: %w", err)
		}
	}
}

func (m *Modem) dispatchURC(line string) {
	dl, err := ParseDownlink(line)
	if err != nil {
		m.logger.Warn("Malformed downlink", "line", line, "error", err)
		return
	}
	select {
	case m.downlinks <- dl:
	default:
		// Downlink channel is full - drop the oldest notification rather
		// than block the loop.
		m.logger.Warn("Downlink dropped", "port", dl.Port, "length", len(dl.Data))
	}
}

// Downlinks returns a read-only channel that receives data sent by the
// network. The channel is buffered, but may drop downlinks if not consumed
// fast enough.
func (m *Modem) Downlinks() <-chan Downlink {
	return m.downlinks
}

// JoinResults returns a read-only channel that receives the outcome of every
// join started with RequestJoin.
func (m *Modem) JoinResults() <-chan JoinResult {
	return m.joinResults
}

// Version returns the firmware version reported by the module.
func (m *Modem) Version() string {
	return m.version
}

func (m *Modem) String() string {
	return fmt.Sprintf("modem(%s)", m.version)
}

// Close shuts down the modem and releases all resources.
// It stops the event loop, closes the transport connection, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}

	// Stop the Loop if it's running
	if m.loopCancel != nil {
		m.loopCancel()
	}

	if m.transport != nil {
		return m.transport.Close()
	}

	return nil
}

// init performs the initial sanity check of the module. This method is
// called during New() and must complete successfully before the modem can
// be used.
func (m *Modem) init(ctx context.Context) error {
	resp, err := m.execDirect(ctx, at.CmdVersion)
	if err != nil {
		return fmt.Errorf("module not responding: %w", err)
	}
	m.version = strings.TrimSpace(strings.TrimPrefix(lastLine(resp), at.OK))
	return nil
}

// Exec sends a raw AT command to the module and returns its complete
// response. The Loop must be running.
func (m *Modem) Exec(ctx context.Context, cmd string) (string, error) {
	return m.exec(ctx, cmd)
}

// exec sends an AT command to the module and waits for the response.
// This method coordinates with the Loop() to ensure thread-safe command execution.
// The Loop() must be running before calling this method.
func (m *Modem) exec(ctx context.Context, cmd string) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}

	if m.transport == nil {
		return "", ErrNotInitialized
	}

	// Apply per-command timeout if context has none
	if _, ok := ctx.Deadline(); !ok && m.config.atTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.atTimeout)
		defer cancel()
	}

	// Create command request
	req := &commandRequest{
		cmd:      cmd,
		respChan: make(chan commandResponse, 1), // Buffered to prevent blocking
		ctx:      ctx,
	}

	// Send request to Loop
	select {
	case m.commands <- req:
		// Request queued successfully
	case <-ctx.Done():
		return "", fmt.Errorf("command cancelled before sending: %w", ctx.Err())
	}

	// Wait for response from Loop
	select {
	case resp := <-req.respChan:
		return resp.response, resp.err
	case <-ctx.Done():
		return "", fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

// execDirect executes an AT command directly on the transport without
// using the channel mechanism and handles the complete request-response
// cycle including timeout management. It is used during modem initialization
// when not yet accepting commands.
//
// WARNING: This method should only be used during initialization.
// Use exec() for normal operations.
func (m *Modem) execDirect(ctx context.Context, cmd string) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}
	if m.transport == nil {
		return "", ErrNotInitialized
	}

	if _, ok := ctx.Deadline(); !ok && m.config.atTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.atTimeout)
		defer cancel()
	}

	wire := strings.TrimSpace(cmd) + "\r\n"
	if _, err := m.transport.Write([]byte(wire)); err != nil {
		return "", fmt.Errorf("write command %q: %w", cmd, err)
	}

	scanner := bufio.NewScanner(m.transport)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)
	scanner.Split(at.Splitter)

	var lines []string

	for {
		select {
		case <-ctx.Done():
			return strings.Join(lines, "\n"), ctx.Err()
		default:
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return strings.Join(lines, "\n"), fmt.Errorf("read error: %w", err)
			}
			return strings.Join(lines, "\n"), io.EOF
		}

		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}

		switch at.Classify(token) {
		case at.TypeFinal:
			lines = append(lines, token)

			response := strings.Join(lines, "\n")
			if at.IsOK(token) {
				return response, nil
			}
			return response, errors.New(token)

		case at.TypeData:
			lines = append(lines, token)

		case at.TypeURC:
			// Ignore downlinks in direct exec
			continue
		}
	}
}

func lastLine(resp string) string {
	if i := strings.LastIndexByte(resp, '\n'); i >= 0 {
		return resp[i+1:]
	}
	return resp
}

// joinAsync runs at+join in the background and reports the outcome on
// joinResults. A join can take several receive windows, far longer than a
// normal command.
func (m *Modem) joinAsync() {
	ctx, cancel := context.WithTimeout(m.loopCtx, m.config.joinTimeout)
	defer cancel()

	start := time.Now()
	resp, err := m.exec(ctx, at.CmdJoin)
	m.joining.Store(false)

	result := JoinResult{Success: err == nil, Response: resp, Err: err, Duration: time.Since(start)}
	select {
	case m.joinResults <- result:
	case <-m.loopCtx.Done():
	}
}
