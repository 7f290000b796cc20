package join

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultMaxRetries is the number of automatic retries after the first
// failed join.
const DefaultMaxRetries = 6

// State is the join orchestration state.
type State int

const (
	StateIdle State = iota
	StateJoining
	StateJoined
	StateRetryPending
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateRetryPending:
		return "retry-pending"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Method is the LoRaWAN activation method.
type Method int

const (
	OTAA Method = iota
	ABP
)

func (m Method) String() string {
	switch m {
	case OTAA:
		return "OTAA"
	case ABP:
		return "ABP"
	default:
		return "unknown"
	}
}

// ParseMethod accepts "otaa" or "abp" in any case.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "otaa":
		return OTAA, nil
	case "abp":
		return ABP, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// EventKind identifies an orchestration event.
type EventKind int

const (
	EventJoinRequested EventKind = iota
	EventJoinRetry
	EventJoinSucceeded
	EventJoinFailed
)

func (k EventKind) String() string {
	switch k {
	case EventJoinRequested:
		return "join-requested"
	case EventJoinRetry:
		return "join-retry"
	case EventJoinSucceeded:
		return "join-succeeded"
	case EventJoinFailed:
		return "join-failed"
	default:
		return "unknown"
	}
}

// Event is emitted to the observer on every externally visible step.
type Event struct {
	Kind     EventKind
	State    State
	Method   Method
	Attempt  int
	DataRate int
	// Err is set on EventJoinFailed.
	Err error
}

// Config configures an Orchestrator. Radio is required.
type Config struct {
	Radio Radio
	// Policy picks the retry data rate; StepDown{} when nil.
	Policy RetryPolicy
	// MaxRetries bounds the automatic retries; DefaultMaxRetries when zero.
	MaxRetries int
	// Observer is called synchronously for every Event.
	Observer func(Event)
	Logger   *slog.Logger
}

// Orchestrator drives join attempts and retries failed ones with a bounded
// budget. It is not safe for concurrent use: all calls are expected from
// one event loop.
type Orchestrator struct {
	radio    Radio
	policy   RetryPolicy
	max      int
	observer func(Event)
	logger   *slog.Logger

	state    State
	method   Method
	attempts int
	// dataRate of the last request, -1 while the radio default is used.
	dataRate int
}

// New returns an idle Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Radio == nil {
		return nil, ErrNoRadio
	}
	o := &Orchestrator{
		radio:    cfg.Radio,
		policy:   cfg.Policy,
		max:      cfg.MaxRetries,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		state:    StateIdle,
		dataRate: -1,
	}
	if o.policy == nil {
		o.policy = StepDown{}
	}
	if o.max <= 0 {
		o.max = DefaultMaxRetries
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// RequestInitialJoin starts a fresh join with a full retry budget. The
// outcome arrives later through OnResult, for ABP as well as OTAA.
//
// When the radio still has an earlier join outstanding, the orchestrator
// adopts it: the budget is reset and its result is awaited.
func (o *Orchestrator) RequestInitialJoin(ctx context.Context, method Method) error {
	if method != OTAA && method != ABP {
		return fmt.Errorf("%w: %d", ErrUnknownMethod, method)
	}

	o.method = method
	o.attempts = 0
	o.dataRate = -1
	o.state = StateJoining
	o.emit(Event{Kind: EventJoinRequested})

	err := o.radio.RequestJoin(ctx, o.dataRate)
	switch {
	case errors.Is(err, ErrJoinInProgress):
		o.logger.Info("Join already in progress, waiting for its result", "method", method)
	case err != nil:
		return o.fail(fmt.Errorf("%w: request %s join: %w", ErrJoinFailed, method, err))
	}
	return nil
}

// OnResult consumes the outcome of the last join attempt.
//
// A success always resets the retry counter and moves to StateJoined. A
// failure is only meaningful while a request is outstanding (StateJoining);
// anywhere else it is stale and dropped. It issues another request at the
// data rate chosen by the retry policy until MaxRetries retries have
// failed, after which the orchestrator settles in StateFailed with a reset
// counter and makes no further attempts by itself.
//
// The returned error is non-nil only when a retry request was refused by
// the radio; the orchestrator is then in StateFailed.
func (o *Orchestrator) OnResult(ctx context.Context, success bool) error {
	if success {
		prev := o.state
		o.attempts = 0
		o.state = StateJoined
		if prev == StateJoined {
			o.logger.Debug("Duplicate join success ignored")
			return nil
		}
		o.emit(Event{Kind: EventJoinSucceeded})
		return nil
	}

	if o.state != StateJoining {
		o.logger.Warn("Stale join failure ignored", "state", o.state)
		return nil
	}

	if o.attempts >= o.max {
		o.fail(fmt.Errorf("%w after %d retries", ErrJoinFailed, o.max))
		return nil
	}

	o.attempts++
	o.state = StateRetryPending

	dr, err := o.policy.NextDataRate(ctx, o.radio, o.attempts)
	if err != nil {
		o.logger.Warn("Retry data rate fallback", "error", err, "data_rate", dr)
	}
	o.dataRate = dr

	err = o.radio.RequestJoin(ctx, dr)
	switch {
	case errors.Is(err, ErrJoinInProgress):
		o.logger.Info("Join already in progress, waiting for its result", "attempt", o.attempts)
	case err != nil:
		return o.fail(fmt.Errorf("%w: retry %d: %w", ErrJoinFailed, o.attempts, err))
	}

	o.state = StateJoining
	o.emit(Event{Kind: EventJoinRetry})
	return nil
}

// fail moves to StateFailed, re-arms the counter and returns err.
func (o *Orchestrator) fail(err error) error {
	ev := Event{Kind: EventJoinFailed, Attempt: o.attempts, Err: err}
	o.attempts = 0
	o.state = StateFailed
	o.emitRaw(ev)
	return err
}

func (o *Orchestrator) emit(ev Event) {
	ev.Attempt = o.attempts
	o.emitRaw(ev)
}

func (o *Orchestrator) emitRaw(ev Event) {
	ev.State = o.state
	ev.Method = o.method
	ev.DataRate = o.dataRate

	switch ev.Kind {
	case EventJoinFailed:
		o.logger.Error("Join failed", "error", ev.Err, "method", ev.Method)
	case EventJoinRetry:
		o.logger.Info("Join retry", "attempt", ev.Attempt, "max", o.max, "data_rate", ev.DataRate)
	default:
		o.logger.Info("Join state changed", "event", ev.Kind, "method", ev.Method, "state", ev.State)
	}

	if o.observer != nil {
		o.observer(ev)
	}
}

func (o *Orchestrator) State() State    { return o.state }
func (o *Orchestrator) Method() Method  { return o.method }
func (o *Orchestrator) Attempts() int   { return o.attempts }
func (o *Orchestrator) MaxRetries() int { return o.max }

// DataRate returns the data rate of the last request, or -1 when the radio
// default was used.
func (o *Orchestrator) DataRate() int { return o.dataRate }
