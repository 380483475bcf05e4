package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for event construction and dispatch.
var (
	ErrUnregisteredEvent  = errors.New("event: unregistered event name")
	ErrNilTarget          = errors.New("event: target is nil")
	ErrIncompatibleTarget = errors.New("event: target role incompatible with event")
	ErrAlreadyDispatched  = errors.New("event: already dispatched")
	ErrNoClientAction     = errors.New("event: no client action for event")
)

// ConfigurationError reports an event that could not be constructed.
type ConfigurationError struct {
	Name Kind
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("event %q: %v", e.Name, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err comes from constructing an event
// with an unregistered name or an unsuitable target.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
