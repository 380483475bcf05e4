// Package event models the events raised while a form is processed: a closed
// set of kinds, immutable event values, and a request-local dispatcher.
package event

import "reflect"

// Target is anything an event can be addressed to.
type Target interface {
	// EffectiveID is the identifier of the target instance, unique within
	// the document even inside repeats.
	EffectiveID() string
	Role() Role
}

// Parented is implemented by targets nested in another target. The
// dispatcher follows Enclosing to bubble events; nil ends the chain.
type Parented interface {
	Target
	Enclosing() Target
}

// Payload is the kind-specific part of an event. Only this package defines
// payloads.
type Payload interface {
	kind() Kind
}

// Load is the payload of an xxforms-load event.
type Load struct {
	resource string
}

// Resource returns the URL or path the client should navigate to.
func (l Load) Resource() string {
	return l.resource
}

func (Load) kind() Kind { return KindLoad }

// Envelope holds what every event carries.
type Envelope struct {
	name       Kind
	target     Target
	bubbles    bool
	cancelable bool
}

func (e Envelope) Name() Kind       { return e.name }
func (e Envelope) Target() Target   { return e.target }
func (e Envelope) Bubbles() bool    { return e.bubbles }
func (e Envelope) Cancelable() bool { return e.cancelable }

// Event is an immutable event value. Build events with New or one of the
// typed constructors; the zero Event is not dispatchable.
type Event struct {
	Envelope
	payload Payload
	// shared by copies so any copy counts as the dispatched event
	state *dispatchState
}

type dispatchState struct {
	dispatched bool
}

// New builds an event with explicit flags. The name must be registered and
// the target must have the role the kind requires; otherwise a
// *ConfigurationError is returned. Kinds with a payload get its zero value.
func New(name Kind, target Target, bubbles, cancelable bool) (Event, error) {
	info, ok := Lookup(name)
	if !ok {
		return Event{}, &ConfigurationError{Name: name, Err: ErrUnregisteredEvent}
	}
	if isNil(target) {
		return Event{}, &ConfigurationError{Name: name, Err: ErrNilTarget}
	}
	if !info.Accepts(target.Role()) {
		return Event{}, &ConfigurationError{Name: name, Err: &roleError{want: info.Role, got: target.Role()}}
	}
	return Event{
		Envelope: Envelope{
			name:       name,
			target:     target,
			bubbles:    bubbles,
			cancelable: cancelable,
		},
		payload: zeroPayload(name),
		state:   &dispatchState{},
	}, nil
}

// NewDefault builds an event using the registered flags for name.
func NewDefault(name Kind, target Target) (Event, error) {
	info, ok := Lookup(name)
	if !ok {
		return Event{}, &ConfigurationError{Name: name, Err: ErrUnregisteredEvent}
	}
	return New(name, target, info.Bubbles, info.Cancelable)
}

// NewLoad builds an xxforms-load event asking the client to navigate to
// resource. Load events neither bubble nor can be cancelled.
func NewLoad(target Target, resource string) (Event, error) {
	ev, err := New(KindLoad, target, false, false)
	if err != nil {
		return Event{}, err
	}
	ev.payload = Load{resource: resource}
	return ev, nil
}

// Payload returns the kind-specific payload, or nil for kinds without one.
func (e Event) Payload() Payload {
	return e.payload
}

// Load returns the load payload when e is an xxforms-load event.
func (e Event) Load() (Load, bool) {
	load, ok := e.payload.(Load)
	return load, ok
}

// Dispatched reports whether e (or a copy of it) has been dispatched.
func (e Event) Dispatched() bool {
	return e.state != nil && e.state.dispatched
}

func zeroPayload(name Kind) Payload {
	switch name {
	case KindLoad:
		return Load{}
	default:
		return nil
	}
}

func isNil(target Target) bool {
	if target == nil {
		return true
	}
	switch v := reflect.ValueOf(target); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

type roleError struct {
	want Role
	got  Role
}

func (e *roleError) Error() string {
	return ErrIncompatibleTarget.Error() + ": want " + e.want.String() + ", got " + e.got.String()
}

func (e *roleError) Unwrap() error {
	return ErrIncompatibleTarget
}
