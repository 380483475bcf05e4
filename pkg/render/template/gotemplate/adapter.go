// Package gotemplate renders control templates with pongo2.
package gotemplate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/stufflebeam/orbeon-forms/pkg/render/template"
)

// Extension is appended to template names that do not carry it.
const Extension = ".tpl"

// ErrNoSources is returned by New without any template source.
var ErrNoSources = errors.New("gotemplate: at least one template source is required")

// Option configures an Engine.
type Option func(*config)

type config struct {
	sources []fs.FS
	funcs   map[string]any
	globals map[string]any
}

// WithFS adds a template source. Sources are searched in the order given, so
// earlier sources shadow later ones.
func WithFS(files fs.FS) Option {
	return func(c *config) {
		if files != nil {
			c.sources = append(c.sources, files)
		}
	}
}

// WithFuncs exposes callables to every template. pongo2.FilterFunction
// values become filters instead.
func WithFuncs(funcs map[string]any) Option {
	return func(c *config) {
		c.funcs = merge(c.funcs, funcs)
	}
}

// WithGlobals exposes values to every template.
func WithGlobals(globals map[string]any) Option {
	return func(c *config) {
		c.globals = merge(c.globals, globals)
	}
}

// Engine is a pongo2 template set over one or more fs.FS sources. Parsed
// templates are kept for the lifetime of the engine.
type Engine struct {
	sources []fs.FS
	set     *pongo2.TemplateSet

	mu     sync.RWMutex
	parsed map[string]*pongo2.Template
}

var _ template.Renderer = (*Engine)(nil)

// New builds an engine. At least one source is required.
func New(options ...Option) (*Engine, error) {
	var cfg config
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(cfg.sources) == 0 {
		return nil, ErrNoSources
	}

	loaders := make([]pongo2.TemplateLoader, 0, len(cfg.sources))
	for _, files := range cfg.sources {
		loaders = append(loaders, pongo2.NewFSLoader(files))
	}
	set := pongo2.NewSet("controls", loaders...)
	set.Globals = pongo2.Context{}
	for key, value := range cfg.globals {
		set.Globals[key] = value
	}

	e := &Engine{
		sources: cfg.sources,
		set:     set,
		parsed:  make(map[string]*pongo2.Template),
	}
	for name, fn := range cfg.funcs {
		if err := e.addFunc(name, fn); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Has reports whether any source provides name.
func (e *Engine) Has(name string) bool {
	file := path(name)
	for _, files := range e.sources {
		if info, err := fs.Stat(files, file); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// Render executes the named template and writes its output to w.
func (e *Engine) Render(w io.Writer, name string, data map[string]any) error {
	file := path(name)
	tpl, err := e.lookup(file)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(pongo2.Context(data), &buf); err != nil {
		return fmt.Errorf("gotemplate: execute %q: %w", file, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// Filter registers fn as a pongo2 filter. pongo2 filters are process-wide,
// so a name can only be registered once.
func (e *Engine) Filter(name string, fn template.FilterFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return errors.New("gotemplate: filter name and function are required")
	}
	if pongo2.FilterExists(name) {
		return fmt.Errorf("gotemplate: filter %q already registered", name)
	}
	return pongo2.RegisterFilter(name, func(in, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var arg any
		if param != nil {
			arg = param.Interface()
		}
		out, err := fn(in.Interface(), arg)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(out), nil
	})
}

func (e *Engine) addFunc(name string, fn any) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return nil
	}
	if filter, ok := fn.(pongo2.FilterFunction); ok {
		if pongo2.FilterExists(name) {
			return nil
		}
		return pongo2.RegisterFilter(name, filter)
	}
	if reflect.ValueOf(fn).Kind() != reflect.Func {
		return fmt.Errorf("gotemplate: func %q is a %T", name, fn)
	}
	e.set.Globals[name] = fn
	return nil
}

func (e *Engine) lookup(file string) (*pongo2.Template, error) {
	e.mu.RLock()
	tpl, ok := e.parsed[file]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tpl, ok := e.parsed[file]; ok {
		return tpl, nil
	}
	tpl, err := e.set.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("gotemplate: load %q: %w", file, err)
	}
	e.parsed[file] = tpl
	return tpl, nil
}

func path(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if !strings.HasSuffix(name, Extension) {
		name += Extension
	}
	return name
}

func merge(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
