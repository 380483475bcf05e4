package event

import (
	"context"

	"github.com/rs/zerolog"

	xlog "github.com/stufflebeam/orbeon-forms/internal/log"
)

// Phase tells a listener where the event is in its propagation.
type Phase int

const (
	PhaseTarget Phase = iota
	PhaseBubbling
)

// Delivery is handed to listeners. It is only valid during the call.
type Delivery struct {
	Event   Event
	Current Target
	Phase   Phase

	stopped   bool
	prevented bool
}

// StopPropagation keeps the event from reaching further targets. Listeners
// on the current target still run.
func (d *Delivery) StopPropagation() {
	d.stopped = true
}

// PreventDefault cancels the default action. It has no effect on events that
// are not cancelable.
func (d *Delivery) PreventDefault() {
	if d.Event.Cancelable() {
		d.prevented = true
	}
}

// Listener observes events delivered to one target.
type Listener func(ctx context.Context, d *Delivery)

// Outcome summarizes a dispatch.
type Outcome struct {
	// Delivered counts listener invocations.
	Delivered        int
	DefaultPrevented bool
}

type listenerKey struct {
	target string
	kind   Kind
}

// Dispatcher delivers events to listeners registered by target id. A
// dispatcher belongs to one request and is not safe for concurrent use.
type Dispatcher struct {
	listeners map[listenerKey][]Listener
	logger    zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		listeners: make(map[listenerKey][]Listener),
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Listen registers l for events of kind delivered to the target with the
// given effective id. Listeners run in registration order.
func (d *Dispatcher) Listen(targetID string, kind Kind, l Listener) error {
	if _, ok := Lookup(kind); !ok {
		return &ConfigurationError{Name: kind, Err: ErrUnregisteredEvent}
	}
	if l == nil {
		return nil
	}
	key := listenerKey{target: targetID, kind: kind}
	d.listeners[key] = append(d.listeners[key], l)
	return nil
}

// Dispatch delivers ev to its target and, when it bubbles, to each enclosing
// target in turn. An event can be dispatched once; later attempts, through
// the same value or a copy, fail with ErrAlreadyDispatched.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Outcome, error) {
	var outcome Outcome
	if ev.state == nil || ev.target == nil {
		return outcome, ErrNilTarget
	}
	if ev.state.dispatched {
		return outcome, ErrAlreadyDispatched
	}
	ev.state.dispatched = true

	delivery := &Delivery{Event: ev}
	for current, phase := ev.target, PhaseTarget; current != nil; current, phase = enclosing(current), PhaseBubbling {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		delivery.Current = current
		delivery.Phase = phase
		for _, l := range d.listeners[listenerKey{target: current.EffectiveID(), kind: ev.name}] {
			l(ctx, delivery)
			outcome.Delivered++
		}
		if delivery.stopped || !ev.bubbles {
			break
		}
	}
	outcome.DefaultPrevented = delivery.prevented

	d.logger.Debug().
		Str(xlog.FieldEvent, string(ev.name)).
		Str(xlog.FieldTarget, ev.target.EffectiveID()).
		Int("delivered", outcome.Delivered).
		Bool("default_prevented", outcome.DefaultPrevented).
		Msg("event dispatched")
	return outcome, nil
}

func enclosing(t Target) Target {
	p, ok := t.(Parented)
	if !ok {
		return nil
	}
	next := p.Enclosing()
	if isNil(next) {
		return nil
	}
	return next
}
