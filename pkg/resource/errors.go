package resource

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for resource lookups and factory configuration.
var (
	ErrNotFound      = errors.New("resource: not found")
	ErrMissingOption = errors.New("missing required option")
	ErrInvalidOption = errors.New("invalid option")
	ErrUnknownKind   = errors.New("unknown manager kind")
)

// NotFoundError reports a logical path that no manager could resolve. It
// matches both ErrNotFound and fs.ErrNotExist.
type NotFoundError struct {
	Path    string
	Manager string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource: %q not found (%s)", e.Path, e.Manager)
}

// Is lets errors.Is match ErrNotFound and fs.ErrNotExist.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == fs.ErrNotExist
}

func notFound(manager, path string) error {
	return &NotFoundError{Path: path, Manager: manager}
}

// IsNotFound reports whether err is a resource-not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfigurationError reports whether err comes from invalid factory
// configuration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingOption) ||
		errors.Is(err, ErrInvalidOption) ||
		errors.Is(err, ErrUnknownKind)
}
