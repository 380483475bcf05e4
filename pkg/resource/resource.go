// Package resource resolves logical resource paths (form definitions,
// templates, configuration) to their content. Deployments pick a manager
// implementation through configuration: a web application root, the
// filesystem, an embedded fs.FS, a remote base URL, or a priority chain of
// those. Managers are built once at start-up and are safe for concurrent use.
package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Manager resolves logical paths to content. Implementations return an error
// matching ErrNotFound when the path does not exist and never return partial
// content.
type Manager interface {
	Content(ctx context.Context, path string) ([]byte, error)
}

// Factory produces the Manager bound to the options supplied at
// construction. Options are validated when the factory is built, not when the
// first lookup happens.
type Factory interface {
	Kind() Kind
	MakeInstance() Manager
}

// Kind enumerates the manager implementations selectable by configuration.
type Kind string

const (
	KindWebApp     Kind = "webapp"
	KindFilesystem Kind = "filesystem"
	KindEmbedded   Kind = "embedded"
	KindURL        Kind = "url"
	KindPriority   Kind = "priority"
)

// Kinds returns the selectable kinds in sorted order.
func Kinds() []Kind {
	kinds := []Kind{KindWebApp, KindFilesystem, KindEmbedded, KindURL, KindPriority}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ParseKind validates a configured kind name.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Kinds() {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("resource: %w %q", ErrUnknownKind, raw)
}

// Option names understood by the built-in factories.
const (
	OptionWebAppRoot        = "webapp.root"
	OptionFilesystemSandbox = "filesystem.sandbox"
	OptionEmbeddedPrefix    = "embedded.prefix"
	OptionURLBase           = "url.base"
	OptionURLTimeout        = "url.timeout"
)

// Options maps option names to values. Factories copy the map so later
// changes by the caller are not observed.
type Options map[string]string

// Get returns the trimmed value for name.
func (o Options) Get(name string) (string, bool) {
	if o == nil {
		return "", false
	}
	value, ok := o[name]
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (o Options) require(kind Kind, name string) (string, error) {
	value, ok := o.Get(name)
	if !ok {
		return "", fmt.Errorf("resource: %s factory: %w %q", kind, ErrMissingOption, name)
	}
	return value, nil
}

func (o Options) clone() Options {
	out := make(Options, len(o))
	for key, value := range o {
		out[key] = value
	}
	return out
}
