// Package render turns XHTML+XForms documents into HTML. A Controller walks
// the document, asks the handler registry what each element is and renders
// controls through pongo2 templates.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	xlog "github.com/stufflebeam/orbeon-forms/internal/log"
	"github.com/stufflebeam/orbeon-forms/pkg/handler"
	"github.com/stufflebeam/orbeon-forms/pkg/render/template"
	"github.com/stufflebeam/orbeon-forms/pkg/render/template/gotemplate"
)

//go:embed templates
var embedded embed.FS

// ErrNilRegistry is returned by NewController without a handler registry.
var ErrNilRegistry = errors.New("render: handler registry is required")

// Option configures a Controller.
type Option func(*options)

type options struct {
	logger    zerolog.Logger
	overrides []fs.FS
	policy    *bluemonday.Policy
	globals   map[string]any
	funcs     map[string]any
}

// WithLogger sets the controller logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTemplateFS adds a template source searched before the built-in
// templates. Later calls have lower precedence than earlier ones.
func WithTemplateFS(files fs.FS) Option {
	return func(o *options) {
		if files != nil {
			o.overrides = append(o.overrides, files)
		}
	}
}

// WithSanitizer replaces the policy applied to HTML outputs.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithGlobals exposes values to every control template.
func WithGlobals(globals map[string]any) Option {
	return func(o *options) {
		o.globals = globals
	}
}

// WithTemplateFuncs exposes functions to every control template. A
// pongo2.FilterFunction value is registered as a filter instead.
func WithTemplateFuncs(funcs map[string]any) Option {
	return func(o *options) {
		o.funcs = funcs
	}
}

// Controller renders form documents. It is safe for concurrent use; each
// Render call walks its own document.
type Controller struct {
	registry  *handler.Registry
	templates template.Renderer
	policy    *bluemonday.Policy
	logger    zerolog.Logger
}

// NewController builds a controller resolving handlers from registry.
func NewController(registry *handler.Registry, opts ...Option) (*Controller, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	cfg := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	engineOpts := make([]gotemplate.Option, 0, len(cfg.overrides)+3)
	for _, files := range cfg.overrides {
		engineOpts = append(engineOpts, gotemplate.WithFS(files))
	}
	engineOpts = append(engineOpts,
		gotemplate.WithFS(DefaultTemplates()),
		gotemplate.WithGlobals(cfg.globals),
		gotemplate.WithFuncs(cfg.funcs),
	)
	engine, err := gotemplate.New(engineOpts...)
	if err != nil {
		return nil, err
	}

	policy := cfg.policy
	if policy == nil {
		policy = outputSanitizer()
	}
	return &Controller{
		registry:  registry,
		templates: engine,
		policy:    policy,
		logger:    cfg.logger,
	}, nil
}

// DefaultTemplates exposes the built-in control templates so callers can copy
// or extend them.
func DefaultTemplates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return embedded
	}
	return sub
}

// Templates returns the template engine, e.g. to register filters.
func (c *Controller) Templates() template.Renderer {
	return c.templates
}

// Render reads a form document from r and writes HTML to w, binding controls
// to data.
func (c *Controller) Render(ctx context.Context, r io.Reader, data map[string]any, w io.Writer) error {
	return c.RenderWith(ctx, r, data, RenderOptions{}, w)
}

// RenderWith is Render with per-request options.
func (c *Controller) RenderWith(ctx context.Context, r io.Reader, data map[string]any, opts RenderOptions, w io.Writer) error {
	dec := xml.NewDecoder(r)
	wk := &walk{
		c:        c,
		ctx:      ctx,
		root:     data,
		errors:   MapErrors(opts.Errors),
		prefixes: make(map[string]string),
		out:      &markup{w: w},
	}
	if err := wk.children(dec, handler.NewContext(data)); err != nil {
		return err
	}
	return wk.out.err
}

// Component exposes doc rendered against data as a templ component.
func (c *Controller) Component(doc []byte, data map[string]any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return c.Render(ctx, bytes.NewReader(doc), data, w)
	})
}

const (
	keyPath   = "render.path"
	keySwitch = "render.switch"
)

type switchState struct {
	selected int
	next     int
}

// walk holds the state of one Render call.
type walk struct {
	c        *Controller
	ctx      context.Context
	root     any
	errors   ErrorMapping
	prefixes map[string]string
	out      *markup
	started  bool

	// formErrors is set once form-level messages have been written.
	formErrors bool
}

// children processes tokens until the end tag of the current element, or
// the end of the source.
func (w *walk) children(src tokenSource, scope *handler.Context) error {
	for {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		tok, err := src.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("render: read document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := w.element(src, t, scope); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		case xml.CharData:
			if !w.started && len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			w.out.text(string(t))
		}
		if w.out.err != nil {
			return w.out.err
		}
	}
}

func (w *walk) element(src tokenSource, start xml.StartElement, scope *handler.Context) error {
	w.notePrefixes(start.Attr)
	if !w.started {
		w.started = true
		if start.Name.Local == "html" {
			w.out.raw("<!DOCTYPE html>\n")
		}
	}

	desc, err := w.descriptor(start, scope)
	if err != nil {
		return err
	}
	h, ok := w.c.registry.Lookup(desc)
	if !ok {
		if isHTML(start.Name.Space) {
			return w.copyElement(src, start, scope)
		}
		h = handler.NewNull(desc)
	}
	w.c.logger.Trace().
		Str(xlog.FieldElement, desc.QName).
		Str(xlog.FieldHandler, h.Kind().String()).
		Str(xlog.FieldRule, h.Rule()).
		Msg("element resolved")

	switch {
	case h.IsRepeating():
		return w.repeat(src, h, scope)
	case h.IsForwarding():
		return w.children(src, scope)
	}

	switch h.Kind() {
	case handler.KindSkip:
		return skip(src)
	case handler.KindGroup:
		return w.group(src, h, scope)
	case handler.KindSwitch:
		return w.switchElement(src, h, scope)
	case handler.KindCase:
		return w.caseElement(src, h, scope)
	case handler.KindControl, handler.KindOutput:
		return w.control(src, start, h, scope)
	default:
		return w.children(src, scope)
	}
}

func (w *walk) descriptor(start xml.StartElement, scope *handler.Context) (handler.Descriptor, error) {
	attrs := make([]handler.Attribute, 0, len(start.Attr))
	for _, a := range start.Attr {
		if isNamespaceDecl(a) {
			continue
		}
		attrs = append(attrs, handler.Attribute{URI: a.Name.Space, Local: a.Name.Local, Value: a.Value})
	}
	desc, err := handler.NewDescriptor(start.Name.Space, start.Name.Local, w.qname(start.Name), attrs, scope)
	if err != nil {
		return handler.Descriptor{}, fmt.Errorf("render: %w", err)
	}
	return desc, nil
}

func (w *walk) copyElement(src tokenSource, start xml.StartElement, scope *handler.Context) error {
	var attrs []attr
	for _, a := range start.Attr {
		if a.Name.Space != "" || isNamespaceDecl(a) {
			continue
		}
		attrs = append(attrs, attr{name: a.Name.Local, value: a.Value})
	}
	w.out.open(start.Name.Local, attrs...)
	if start.Name.Local == "body" && !w.formErrors {
		w.formErrors = true
		w.writeFormErrors()
	}
	if err := w.children(src, scope); err != nil {
		return err
	}
	w.out.close(start.Name.Local)
	return nil
}

func (w *walk) group(src tokenSource, h handler.Handler, scope *handler.Context) error {
	desc := h.Descriptor()
	inner := scope
	if ref := desc.Attributes.Value("ref"); ref != "" {
		inner = w.bind(scope, ref)
	}
	w.out.open("div", present(
		"id", scope.EffectiveID(desc.StaticID()),
		"class", classes("xforms-group", desc.Attributes.Value("class")),
	)...)
	if err := w.children(src, inner); err != nil {
		return err
	}
	w.out.close("div")
	return nil
}

func (w *walk) switchElement(src tokenSource, h handler.Handler, scope *handler.Context) error {
	tokens, err := capture(src)
	if err != nil {
		return fmt.Errorf("render: read switch: %w", err)
	}
	desc := h.Descriptor()
	inner := scope.Bind(scope.Data())
	inner.Set(keySwitch, &switchState{selected: selectedCase(tokens)})

	w.out.open("div", present(
		"id", scope.EffectiveID(desc.StaticID()),
		"class", classes("xforms-switch", desc.Attributes.Value("class")),
	)...)
	if err := w.children(&replay{tokens: tokens}, inner); err != nil {
		return err
	}
	w.out.close("div")
	return nil
}

func (w *walk) caseElement(src tokenSource, h handler.Handler, scope *handler.Context) error {
	if value, ok := scope.Value(keySwitch); ok {
		if state, ok := value.(*switchState); ok {
			idx := state.next
			state.next++
			if idx != state.selected {
				return skip(src)
			}
		}
	}
	desc := h.Descriptor()
	w.out.open("div", present(
		"id", scope.EffectiveID(desc.StaticID()),
		"class", classes("xforms-case", desc.Attributes.Value("class")),
	)...)
	if err := w.children(src, scope); err != nil {
		return err
	}
	w.out.close("div")
	return nil
}

func (w *walk) repeat(src tokenSource, h handler.Handler, scope *handler.Context) error {
	tokens, err := capture(src)
	if err != nil {
		return fmt.Errorf("render: read repeat: %w", err)
	}
	desc := h.Descriptor()
	expr := desc.Attributes.Value("nodeset")
	if expr == "" {
		expr = desc.Attributes.Value("ref")
	}
	value, _ := resolve(w.root, scope.Data(), expr)
	base := bindPath(scopePath(scope), expr)

	w.out.open("div", present(
		"id", scope.EffectiveID(desc.StaticID()),
		"class", classes("xforms-repeat", desc.Attributes.Value("class")),
	)...)
	for i, item := range sequence(value) {
		position := i + 1
		key, err := handler.ItemKey(desc, position)
		if err != nil {
			return err
		}
		child := scope.Child(item, handler.Iteration{Position: position, Key: key})
		child.Set(keyPath, bindPath(base, strconv.Itoa(i)))

		w.c.logger.Trace().Str(xlog.FieldElement, desc.QName).Str(xlog.FieldItemKey, key).Int("position", position).Msg("repeat item")
		w.out.open("div",
			attr{name: "class", value: "xforms-repeat-item"},
			attr{name: "data-item-key", value: key},
			attr{name: "data-position", value: strconv.Itoa(position)},
		)
		if err := w.children(&replay{tokens: tokens}, child); err != nil {
			return err
		}
		w.out.close("div")
	}
	w.out.close("div")
	return nil
}

func (w *walk) control(src tokenSource, start xml.StartElement, h handler.Handler, scope *handler.Context) error {
	tree, err := buildTree(src, start)
	if err != nil {
		return fmt.Errorf("render: read %s: %w", h.Descriptor().QName, err)
	}
	desc := h.Descriptor()
	data := w.controlData(tree, h, scope)

	name := "controls/" + desc.LocalName
	if token, ok := desc.Matched.(string); ok && token != "" {
		if variant := name + "-" + token; w.c.templates.Has(variant) {
			name = variant
		}
	}
	w.c.logger.Trace().Str(xlog.FieldElement, desc.QName).Str(xlog.FieldTemplate, name).Msg("render control")

	var rendered strings.Builder
	if err := w.c.templates.Render(&rendered, name, data); err != nil {
		return fmt.Errorf("render: %s: %w", desc.QName, err)
	}
	w.out.raw(rendered.String())
	return nil
}

func (w *walk) controlData(tree *node, h handler.Handler, scope *handler.Context) map[string]any {
	desc := h.Descriptor()
	attrs := desc.Attributes

	var value any
	var bound bool
	var path string
	if ref := attrs.Value("ref"); ref != "" {
		value, bound = resolve(w.root, scope.Data(), ref)
		path = bindPath(scopePath(scope), ref)
	} else if expr := attrs.Value("value"); expr != "" {
		if lit, ok := literal(expr); ok {
			value, bound = lit, true
		} else {
			value, bound = resolve(w.root, scope.Data(), expr)
		}
	}

	data := map[string]any{
		"id":         scope.EffectiveID(desc.StaticID()),
		"kind":       desc.LocalName,
		"name":       path,
		"ref":        attrs.Value("ref"),
		"value":      text(value),
		"bound":      bound,
		"class":      attrs.Value("class"),
		"appearance": desc.Matched,
		"label":      w.metadata(tree, "label", scope),
		"hint":       w.metadata(tree, "hint", scope),
		"help":       w.metadata(tree, "help", scope),
		"alert":      w.metadata(tree, "alert", scope),
	}
	if it, ok := scope.Iteration(); ok {
		data["item_key"] = it.Key
	}
	if messages := w.errors.lookup(path); len(messages) > 0 {
		data["alert"] = strings.Join(messages, " ")
		data["invalid"] = true
		data["class"] = classes(attrs.Value("class"), "xforms-invalid")
	}
	switch desc.LocalName {
	case "select1":
		data["items"] = w.items(tree, scope, text(value))
	case "submit":
		data["submission"] = attrs.Value("submission")
	}
	if h.Kind() == handler.KindOutput && attrs.Value("mediatype") == "text/html" {
		data["html"] = true
		data["value"] = w.c.policy.Sanitize(text(value))
	}
	return data
}

func (w *walk) writeFormErrors() {
	if len(w.errors.Form) == 0 {
		return
	}
	w.out.open("ul", attr{name: "class", value: "xforms-form-errors"}, attr{name: "role", value: "alert"})
	for _, message := range w.errors.Form {
		w.out.open("li")
		w.out.text(message)
		w.out.close("li")
	}
	w.out.close("ul")
}

// metadata returns the text of a label-like child, honouring its ref.
func (w *walk) metadata(tree *node, local string, scope *handler.Context) string {
	child := tree.child(handler.NamespaceXForms, local)
	if child == nil {
		return ""
	}
	if ref := child.attr("ref"); ref != "" {
		value, _ := resolve(w.root, scope.Data(), ref)
		return text(value)
	}
	return child.content()
}

func (w *walk) items(tree *node, scope *handler.Context, selected string) []map[string]any {
	var items []map[string]any
	add := func(label, value string) {
		items = append(items, map[string]any{
			"label":    label,
			"value":    value,
			"selected": value == selected,
		})
	}
	for _, c := range tree.children {
		if c.name.Space != handler.NamespaceXForms {
			continue
		}
		switch c.name.Local {
		case "item":
			label, value := "", ""
			if l := c.child(handler.NamespaceXForms, "label"); l != nil {
				label = l.content()
			}
			if v := c.child(handler.NamespaceXForms, "value"); v != nil {
				value = v.content()
			}
			add(label, value)
		case "itemset":
			nodes, _ := resolve(w.root, scope.Data(), c.attr("nodeset"))
			labelRef, valueRef := "", ""
			if l := c.child(handler.NamespaceXForms, "label"); l != nil {
				labelRef = l.attr("ref")
			}
			if v := c.child(handler.NamespaceXForms, "value"); v != nil {
				valueRef = v.attr("ref")
			}
			for _, item := range sequence(nodes) {
				label, _ := resolve(w.root, item, labelRef)
				value, _ := resolve(w.root, item, valueRef)
				add(text(label), text(value))
			}
		}
	}
	return items
}

func (w *walk) bind(scope *handler.Context, expr string) *handler.Context {
	value, _ := resolve(w.root, scope.Data(), expr)
	inner := scope.Bind(value)
	inner.Set(keyPath, bindPath(scopePath(scope), expr))
	return inner
}

func (w *walk) notePrefixes(attrs []xml.Attr) {
	for _, a := range attrs {
		if a.Name.Space == "xmlns" {
			w.prefixes[a.Value] = a.Name.Local
		}
	}
}

func (w *walk) qname(name xml.Name) string {
	if prefix := w.prefixes[name.Space]; prefix != "" {
		return prefix + ":" + name.Local
	}
	return name.Local
}

func scopePath(scope *handler.Context) string {
	value, _ := scope.Value(keyPath)
	path, _ := value.(string)
	return path
}

// selectedCase returns the index of the case a switch shows: the first one
// marked selected="true", otherwise the first one.
func selectedCase(tokens []xml.Token) int {
	depth, idx := 0, 0
	for _, tok := range tokens {
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && t.Name.Space == handler.NamespaceXForms && t.Name.Local == "case" {
				for _, a := range t.Attr {
					if a.Name.Space == "" && a.Name.Local == "selected" && a.Value == "true" {
						return idx
					}
				}
				idx++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return 0
}

func isHTML(space string) bool {
	return space == "" || space == handler.NamespaceXHTML
}

func isNamespaceDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// present builds attributes from name/value pairs, dropping empty values.
func present(pairs ...string) []attr {
	out := make([]attr, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			out = append(out, attr{name: pairs[i], value: pairs[i+1]})
		}
	}
	return out
}
