// Package forms wires the engine together: configuration selects a resource
// manager, the handler registry carries the XForms table and the render
// controller turns form documents into HTML.
package forms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	xlog "github.com/stufflebeam/orbeon-forms/internal/log"
	"github.com/stufflebeam/orbeon-forms/pkg/config"
	"github.com/stufflebeam/orbeon-forms/pkg/event"
	"github.com/stufflebeam/orbeon-forms/pkg/handler"
	"github.com/stufflebeam/orbeon-forms/pkg/render"
	"github.com/stufflebeam/orbeon-forms/pkg/resource"
)

// Option customises engine construction.
type Option func(*options)

type options struct {
	logger     zerolog.Logger
	hasLogger  bool
	registerer prometheus.Registerer
	files      fs.FS
	client     *http.Client
	registry   *handler.Registry
	render     []render.Option
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
		o.hasLogger = true
	}
}

// WithRegisterer registers resource metrics with reg. Without it the
// collectors are created but not registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithFS supplies the fs.FS served by an embedded resource manager.
func WithFS(files fs.FS) Option {
	return func(o *options) {
		o.files = files
	}
}

// WithHTTPClient supplies the client used by a url resource manager.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithHandlerRegistry replaces the default registry, which only carries the
// XForms table.
func WithHandlerRegistry(registry *handler.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithRenderOptions forwards options to the render controller. Template
// sources given here take precedence over the configured resource prefix.
func WithRenderOptions(opts ...render.Option) Option {
	return func(o *options) {
		o.render = append(o.render, opts...)
	}
}

// Engine renders forms resolved through the configured resource manager. It
// is safe for concurrent use.
type Engine struct {
	cfg        config.Config
	factory    resource.Factory
	resources  resource.Manager
	cache      *resource.Cached
	watcher    *resource.Watcher
	registry   *handler.Registry
	controller *render.Controller
	logger     zerolog.Logger
}

// New builds an engine from cfg. Invalid configuration fails here rather
// than on the first render.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if !o.hasLogger {
		o.logger = xlog.WithComponent("forms")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spec, err := cfg.ResourceSpec()
	if err != nil {
		return nil, err
	}
	factory, err := resource.NewFactory(spec, resource.WithFS(o.files), resource.WithHTTPClient(o.client))
	if err != nil {
		o.logger.Warn().Err(err).Str(xlog.FieldManager, string(spec.Kind)).Msg("resource manager misconfigured")
		return nil, err
	}

	e := &Engine{cfg: cfg, factory: factory, logger: o.logger}

	manager := factory.MakeInstance()
	if cfg.Resources.Cache.Enabled {
		e.cache = resource.NewCached(manager, resource.WithCacheLogger(o.logger))
		manager = e.cache
		if cfg.Resources.Cache.Watch {
			watcher, err := e.cache.Watch(cfg.WatchDir())
			if err != nil {
				return nil, fmt.Errorf("forms: %w", err)
			}
			e.watcher = watcher
		}
	}
	e.resources = resource.Instrument(manager, string(factory.Kind()), resource.NewMetrics(o.registerer))

	e.registry = o.registry
	if e.registry == nil {
		e.registry = handler.NewRegistry()
		if err := handler.RegisterXForms(e.registry); err != nil {
			_ = e.closeWatcher()
			return nil, err
		}
	}

	renderOpts := []render.Option{render.WithLogger(o.logger)}
	renderOpts = append(renderOpts, o.render...)
	if prefix := strings.Trim(cfg.Render.Templates, "/"); prefix != "" {
		overrides, err := fs.Sub(resource.FS(context.Background(), e.resources), prefix)
		if err != nil {
			_ = e.closeWatcher()
			return nil, fmt.Errorf("forms: render.templates %q: %w", cfg.Render.Templates, err)
		}
		renderOpts = append(renderOpts, render.WithTemplateFS(overrides))
	}
	e.controller, err = render.NewController(e.registry, renderOpts...)
	if err != nil {
		_ = e.closeWatcher()
		return nil, err
	}
	return e, nil
}

// Render loads the form document at the logical path and writes its HTML to
// w.
func (e *Engine) Render(ctx context.Context, formPath string, data map[string]any, w io.Writer) error {
	return e.RenderWith(ctx, formPath, data, render.RenderOptions{}, w)
}

// RenderWith is Render with per-request options such as validation errors.
func (e *Engine) RenderWith(ctx context.Context, formPath string, data map[string]any, opts render.RenderOptions, w io.Writer) error {
	doc, err := e.resources.Content(ctx, formPath)
	if err != nil {
		if resource.IsNotFound(err) {
			e.logger.Debug().Str(xlog.FieldPath, formPath).Msg("form not found")
		}
		return fmt.Errorf("forms: load %s: %w", formPath, err)
	}
	return e.controller.RenderWith(ctx, bytes.NewReader(doc), data, opts, w)
}

// Instance loads instance data stored as JSON or YAML at the logical path.
func (e *Engine) Instance(ctx context.Context, dataPath string) (map[string]any, error) {
	raw, err := e.resources.Content(ctx, dataPath)
	if err != nil {
		return nil, fmt.Errorf("forms: load %s: %w", dataPath, err)
	}
	data, err := render.DecodeInstance(bytes.NewReader(raw), render.FormatOf(path.Base(dataPath)))
	if err != nil {
		return nil, fmt.Errorf("forms: %s: %w", dataPath, err)
	}
	return data, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Resources returns the resource manager, including cache and
// instrumentation layers.
func (e *Engine) Resources() resource.Manager {
	return e.resources
}

// Factory returns the factory the manager was made from.
func (e *Engine) Factory() resource.Factory {
	return e.factory
}

// Registry returns the handler registry used for rendering.
func (e *Engine) Registry() *handler.Registry {
	return e.registry
}

// Controller returns the render controller.
func (e *Engine) Controller() *render.Controller {
	return e.controller
}

// Dispatcher returns a fresh dispatcher for one request. Listeners are not
// shared between requests.
func (e *Engine) Dispatcher() *event.Dispatcher {
	return event.NewDispatcher(event.WithLogger(e.logger))
}

// Invalidate drops cached content for the logical path. It is a no-op when
// caching is disabled.
func (e *Engine) Invalidate(logical string) {
	if e.cache != nil {
		e.cache.Invalidate(logical)
	}
}

// Close stops the cache watcher, if any.
func (e *Engine) Close() error {
	return e.closeWatcher()
}

func (e *Engine) closeWatcher() error {
	if e.watcher == nil {
		return nil
	}
	err := e.watcher.Close()
	e.watcher = nil
	if err != nil && !errors.Is(err, fs.ErrClosed) {
		return err
	}
	return nil
}

// EmbeddedTemplates exposes the built-in control templates.
func EmbeddedTemplates() fs.FS {
	return render.DefaultTemplates()
}
