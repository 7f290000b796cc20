// Package device runs the node: it frames console input, dispatches the
// frames, drives the LoRaWAN join and reports what the radio receives, all
// from one event loop.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/loranode/at"
	"i4.energy/across/loranode/dispatch"
	"i4.energy/across/loranode/framer"
	"i4.energy/across/loranode/join"
	"i4.energy/across/loranode/led"
	"i4.energy/across/loranode/modem"
	"i4.energy/across/loranode/mpu9250"
	"i4.energy/across/loranode/settings"
)

// Radio is the LoRaWAN module the node drives.
type Radio interface {
	join.Radio
	dispatch.Sender
	Exec(ctx context.Context, cmd string) (string, error)
	Downlinks() <-chan modem.Downlink
	JoinResults() <-chan modem.JoinResult
}

// GyroReader samples the motion sensor.
type GyroReader interface {
	ReadGyro() (mpu9250.Gyro, error)
}

type Config struct {
	// Console is the host UART. Frames are read from it and notices are
	// written back.
	Console  io.ReadWriter
	Radio    Radio
	Settings *settings.Store
	Framer   framer.Config

	// Policy picks retry data rates; StepDown with the configured default
	// data rate when nil.
	Policy     join.RetryPolicy
	MaxRetries int

	// Gyro is sampled every GyroInterval when both are set.
	Gyro         GyroReader
	GyroInterval time.Duration

	// LED shows the join state; optional.
	LED led.Indicator

	// OnDownlink and OnJoinEvent are called from the loop after the console
	// has been notified.
	OnDownlink  func(modem.Downlink)
	OnJoinEvent func(join.Event)

	Logger *slog.Logger
}

// Device owns the framer, dispatcher and join orchestrator. Everything but
// byte intake runs on the goroutine that calls Run; other goroutines reach
// the loop through the control methods.
type Device struct {
	console  io.ReadWriter
	radio    Radio
	store    *settings.Store
	status   *Status
	framer   *framer.Framer
	capacity int
	dispatch *dispatch.Dispatcher
	orch     *join.Orchestrator
	led      led.Indicator

	gyro         GyroReader
	gyroInterval time.Duration
	lastGyro     *mpu9250.Gyro

	// frames counts completed console frames taken off the framer.
	frames uint64

	onDownlink  func(modem.Downlink)
	onJoinEvent func(join.Event)

	requests chan request
	overflow chan struct{}
	running  atomic.Bool
	mu       sync.Mutex
	stopped  chan struct{}

	logger *slog.Logger
}

type request struct {
	fn   func(ctx context.Context) error
	done chan error
}

func New(cfg Config) (*Device, error) {
	switch {
	case cfg.Console == nil:
		return nil, ErrNoConsole
	case cfg.Radio == nil:
		return nil, ErrNoRadio
	case cfg.Settings == nil:
		return nil, ErrNoSettings
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := cfg.Settings.Get()

	d := &Device{
		console:      cfg.Console,
		radio:        cfg.Radio,
		store:        cfg.Settings,
		status:       NewStatus(cfg.Settings),
		led:          cfg.LED,
		gyro:         cfg.Gyro,
		gyroInterval: cfg.GyroInterval,
		onDownlink:   cfg.OnDownlink,
		onJoinEvent:  cfg.OnJoinEvent,
		requests:     make(chan request),
		overflow:     make(chan struct{}, 1),
		stopped:      make(chan struct{}),
		logger:       logger,
	}
	if d.led == nil {
		d.led = led.Nop{}
	}

	fcfg := cfg.Framer
	if fcfg.Logger == nil {
		fcfg.Logger = logger.With("component", "framer")
	}
	d.framer = framer.New(fcfg)
	d.capacity = fcfg.Capacity
	if d.capacity <= 0 {
		d.capacity = framer.DefaultCapacity
	}

	disp, err := dispatch.New(dispatch.Config{
		Modes:      d.status,
		Sender:     d.radio,
		Persister:  d.status,
		Executor:   console{d},
		Fallback:   console{d},
		OnModeExit: func() { d.printf("End transparent mode, uart work mode switched to normal.\r\n") },
		Port:       s.LoRaWAN.PassthroughPort,
		Logger:     logger.With("component", "dispatch"),
	})
	if err != nil {
		return nil, err
	}
	d.dispatch = disp

	policy := cfg.Policy
	if policy == nil {
		policy = join.StepDown{Default: s.LoRaWAN.DataRate}
	}
	orch, err := join.New(join.Config{
		Radio:      d.radio,
		Policy:     policy,
		MaxRetries: cfg.MaxRetries,
		Observer:   d.joinEvent,
		Logger:     logger.With("component", "join"),
	})
	if err != nil {
		return nil, err
	}
	d.orch = orch

	return d, nil
}

// Run prints the startup banner, starts the initial join in LoRaWAN work
// mode and then serves events until ctx is cancelled or the console fails.
func (d *Device) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer d.running.Store(false)

	d.mu.Lock()
	stopped := make(chan struct{})
	d.stopped = stopped
	d.mu.Unlock()
	defer close(stopped)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go d.readConsole(ctx, readErr)

	d.startup(ctx)

	var gyroTick <-chan time.Time
	if d.gyro != nil && d.gyroInterval > 0 {
		ticker := time.NewTicker(d.gyroInterval)
		defer ticker.Stop()
		gyroTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return fmt.Errorf("console read: %w", err)

		case <-d.overflow:
			d.printf("String over max length <%d Bytes>.\r\n", d.capacity)

		case <-d.framer.Ready():
			for {
				frame, ok := d.framer.PollComplete()
				if !ok {
					break
				}
				d.handleFrame(ctx, frame)
			}

		case res := <-d.radio.JoinResults():
			d.handleJoinResult(ctx, res)

		case dl := <-d.radio.Downlinks():
			d.handleDownlink(dl)

		case <-gyroTick:
			d.sampleGyro()

		case req := <-d.requests:
			req.done <- req.fn(ctx)
		}
	}
}

// readConsole feeds the framer as bytes arrive so that silence is measured
// on the wire, independent of how busy the loop is.
func (d *Device) readConsole(ctx context.Context, errc chan<- error) {
	buf := make([]byte, 64)
	for {
		n, err := d.console.Read(buf)
		for _, b := range buf[:n] {
			if errors.Is(d.framer.Feed(b), framer.ErrFrameOverflow) {
				select {
				case d.overflow <- struct{}{}:
				default:
				}
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				errc <- err
			}
			return
		}
	}
}

func (d *Device) startup(ctx context.Context) {
	s := d.store.Get()

	mode := "normal mode"
	if s.Mode() == at.ModeTransparent {
		mode = "transparent mode"
	}
	d.printf("Initialization OK, AT Uart work mode: %s, ", mode)

	switch s.Work {
	case settings.WorkLoRaWAN:
		d.printf("Current work_mode:LoRaWAN, join_mode:%s, Class: %s\r\n",
			s.JoinMethod(), strings.ToUpper(s.LoRaWAN.Class))
		if err := d.orch.RequestInitialJoin(ctx, s.JoinMethod()); err != nil {
			d.logger.Error("Initial join request failed", "error", err)
		}
	case settings.WorkP2P:
		d.printf("Current work_mode:P2P\r\n")
	case settings.WorkTest:
		d.printf("Current work_mode:TEST\r\n")
	}
}

func (d *Device) handleFrame(ctx context.Context, frame []byte) {
	d.frames++
	if d.store.Get().Work == settings.WorkTest {
		d.logger.Debug("Frame ignored in TEST work mode", "length", len(frame))
		return
	}

	class, err := d.dispatch.Dispatch(ctx, frame)
	switch {
	case errors.Is(err, dispatch.ErrMalformedCommand):
		d.printf("%s\r\n", err)
	case errors.Is(err, dispatch.ErrPersist):
		d.logger.Error("Console mode not saved", "error", err)
	case err != nil:
		d.logger.Warn("Frame dispatch failed", "class", class, "error", err)
		d.printf("%s: %v\r\n", at.ERROR, err)
	case class == at.FramePassthrough:
		d.logger.Info("unconfirmed data send OK", "length", len(frame))
		d.printf("[LoRa]: Unconfirmed data send OK\r\n")
	}
}

func (d *Device) handleJoinResult(ctx context.Context, res modem.JoinResult) {
	if res.Err != nil {
		d.logger.Debug("Join attempt failed", "error", res.Err, "duration", res.Duration)
	}
	if err := d.orch.OnResult(ctx, res.Success); err != nil {
		d.logger.Error("Join retry not issued", "error", err)
	}
}

func (d *Device) handleDownlink(dl modem.Downlink) {
	d.logger.Info("Downlink received", "port", dl.Port, "rssi", dl.RSSI, "snr", dl.SNR, "length", len(dl.Data))
	d.printf("%s\r\n", dl)
	if d.onDownlink != nil {
		d.onDownlink(dl)
	}
}

// joinEvent is the orchestrator observer. It runs on the loop.
func (d *Device) joinEvent(ev join.Event) {
	switch ev.Kind {
	case join.EventJoinSucceeded:
		d.printf("[LoRa]: Joined successfully!\r\n")
	case join.EventJoinRetry:
		d.printf("[LoRa]: Join retry %d/%d\r\n", ev.Attempt, d.orch.MaxRetries())
	case join.EventJoinFailed:
		d.printf("[LoRa]: Join failed!\r\n")
	}

	if err := d.led.Set(ev.State == join.StateJoined); err != nil {
		d.logger.Warn("Join LED update failed", "error", err)
	}
	if d.onJoinEvent != nil {
		d.onJoinEvent(ev)
	}
}

func (d *Device) sampleGyro() {
	g, err := d.gyro.ReadGyro()
	if err != nil {
		d.logger.Warn("Gyro read failed", "error", err)
		return
	}
	d.lastGyro = &g
	d.logger.Debug("Gyro sample", "gx", g.X, "gy", g.Y, "gz", g.Z)
}

func (d *Device) rejoin(ctx context.Context) error {
	s := d.store.Get()
	if s.Work != settings.WorkLoRaWAN {
		return fmt.Errorf("%w: %s", ErrWorkMode, s.Work)
	}
	return d.orch.RequestInitialJoin(ctx, s.JoinMethod())
}

func (d *Device) setMode(m at.Mode) error {
	if err := d.status.SetMode(m); err != nil {
		return err
	}
	if err := d.status.Persist(); err != nil {
		return err
	}
	d.logger.Info("Console mode changed", "mode", m)
	return nil
}

// do runs fn on the loop and returns its error.
func (d *Device) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !d.running.Load() {
		return ErrNotRunning
	}
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()

	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case d.requests <- req:
	case <-stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rejoin starts a fresh join with a full retry budget, for example after
// the orchestrator gave up.
func (d *Device) Rejoin(ctx context.Context) error {
	return d.do(ctx, d.rejoin)
}

// SetMode switches and persists the console mode.
func (d *Device) SetMode(ctx context.Context, m at.Mode) error {
	return d.do(ctx, func(context.Context) error { return d.setMode(m) })
}

// Uplink sends payload on port through the radio module.
func (d *Device) Uplink(ctx context.Context, port int, payload []byte) error {
	return d.do(ctx, func(ctx context.Context) error {
		if w := d.store.Get().Work; w != settings.WorkLoRaWAN {
			return fmt.Errorf("%w: %s", ErrWorkMode, w)
		}
		return d.radio.Send(ctx, port, payload)
	})
}

// GyroSample is the last gyroscope reading in degrees per second.
type GyroSample struct {
	Time time.Time `json:"time"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Z    float64   `json:"z"`
}

// Snapshot is a point-in-time view of the node.
type Snapshot struct {
	Mode          string      `json:"mode"`
	WorkMode      string      `json:"work_mode"`
	JoinMethod    string      `json:"join_method"`
	JoinState     string      `json:"join_state"`
	JoinAttempts  int         `json:"join_attempts"`
	MaxRetries    int         `json:"max_retries"`
	DataRate      int         `json:"data_rate"`
	PendingBytes  int         `json:"pending_bytes"`
	FrameOverflow uint64      `json:"frame_overflows"`
	Frames        uint64      `json:"frames"`
	Gyro          *GyroSample `json:"gyro,omitempty"`
}

func (d *Device) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := d.do(ctx, func(context.Context) error {
		s := d.store.Get()
		snap = Snapshot{
			Mode:          s.Mode().String(),
			WorkMode:      s.Work,
			JoinMethod:    d.orch.Method().String(),
			JoinState:     d.orch.State().String(),
			JoinAttempts:  d.orch.Attempts(),
			MaxRetries:    d.orch.MaxRetries(),
			DataRate:      d.orch.DataRate(),
			PendingBytes:  d.framer.Pending(),
			FrameOverflow: d.framer.Overflows(),
			Frames:        d.frames,
		}
		if g := d.lastGyro; g != nil {
			x, y, z := g.DPS()
			snap.Gyro = &GyroSample{Time: g.Time, X: x, Y: y, Z: z}
		}
		return nil
	})
	return snap, err
}
