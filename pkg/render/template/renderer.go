package template

import "io"

// FilterFunc transforms a template value. param is nil when the filter is
// used without an argument.
type FilterFunc func(input, param any) (any, error)

// Renderer produces control markup from named templates. Names are slash
// separated and may omit the engine's file extension.
type Renderer interface {
	// Has reports whether a template exists, so callers can pick variants.
	Has(name string) bool
	// Render executes name with data and writes the result to w. Nothing is
	// written when execution fails.
	Render(w io.Writer, name string, data map[string]any) error
	// Filter makes fn available to every template under name.
	Filter(name string, fn FilterFunc) error
}
