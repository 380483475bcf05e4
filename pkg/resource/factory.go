package resource

import (
	"fmt"
	"io/fs"
	"net/http"
)

// Spec selects and configures a factory. Chain is only read for
// KindPriority.
type Spec struct {
	Kind    Kind
	Options Options
	Chain   []Spec
}

// FactoryOption supplies dependencies that cannot be expressed as string
// options.
type FactoryOption func(*factoryDeps)

type factoryDeps struct {
	files  fs.FS
	client *http.Client
}

// WithFS supplies the fs.FS served by embedded managers.
func WithFS(files fs.FS) FactoryOption {
	return func(deps *factoryDeps) {
		deps.files = files
	}
}

// WithHTTPClient supplies the client used by URL managers.
func WithHTTPClient(client *http.Client) FactoryOption {
	return func(deps *factoryDeps) {
		deps.client = client
	}
}

// NewFactory builds the factory named by spec.Kind. Configuration problems
// surface here rather than on the first lookup.
func NewFactory(spec Spec, options ...FactoryOption) (Factory, error) {
	deps := factoryDeps{}
	for _, opt := range options {
		if opt != nil {
			opt(&deps)
		}
	}
	return newFactory(spec, deps)
}

func newFactory(spec Spec, deps factoryDeps) (Factory, error) {
	switch spec.Kind {
	case KindWebApp:
		return NewWebAppFactory(spec.Options)
	case KindFilesystem:
		return NewFilesystemFactory(spec.Options)
	case KindEmbedded:
		return NewEmbeddedFactory(deps.files, spec.Options)
	case KindURL:
		return NewURLFactory(spec.Options, deps.client)
	case KindPriority:
		chain := make([]Factory, 0, len(spec.Chain))
		for idx, child := range spec.Chain {
			if child.Kind == KindPriority {
				return nil, fmt.Errorf("resource: %s factory: %w: chain[%d] is itself a priority chain", KindPriority, ErrInvalidOption, idx)
			}
			factory, err := newFactory(child, deps)
			if err != nil {
				return nil, fmt.Errorf("resource: %s factory: chain[%d]: %w", KindPriority, idx, err)
			}
			chain = append(chain, factory)
		}
		return NewPriorityFactory(chain...)
	default:
		return nil, fmt.Errorf("resource: %w %q", ErrUnknownKind, spec.Kind)
	}
}
