package render_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/stufflebeam/orbeon-forms/pkg/handler"
	"github.com/stufflebeam/orbeon-forms/pkg/render"
)

const orderForm = `<?xml version="1.0" encoding="UTF-8"?>
<xh:html xmlns:xh="http://www.w3.org/1999/xhtml"
         xmlns:xf="http://www.w3.org/2002/xforms"
         xmlns:xxf="http://orbeon.org/oxf/xml/xforms">
  <xh:head>
    <xh:title>Order</xh:title>
    <xf:model id="order-model"><xf:instance id="order-instance"/></xf:model>
  </xh:head>
  <xh:body class="order">
    <xf:group id="customer" ref="customer">
      <xf:input id="name" ref="name">
        <xf:label>Name</xf:label>
        <xf:hint>Full name</xf:hint>
      </xf:input>
    </xf:group>
    <xf:repeat id="lines" nodeset="lines">
      <xf:input id="qty" ref="qty"><xf:label>Qty</xf:label></xf:input>
    </xf:repeat>
    <xf:select1 id="color" ref="color" appearance="full">
      <xf:label>Color</xf:label>
      <xf:item><xf:label>Red</xf:label><xf:value>red</xf:value></xf:item>
      <xf:item><xf:label>Blue</xf:label><xf:value>blue</xf:value></xf:item>
    </xf:select1>
    <xf:select1 id="size" ref="size">
      <xf:label>Size</xf:label>
      <xf:itemset nodeset="/sizes">
        <xf:label ref="title"/>
        <xf:value ref="code"/>
      </xf:itemset>
    </xf:select1>
    <xf:switch id="steps">
      <xf:case id="step-one"><xh:p>first step</xh:p></xf:case>
      <xf:case id="step-two" selected="true"><xh:p>second step</xh:p></xf:case>
    </xf:switch>
    <xxf:dialog id="dialog"><xh:p>inside dialog</xh:p></xxf:dialog>
    <xf:output id="note" ref="note" mediatype="text/html"><xf:label>Note</xf:label></xf:output>
    <xf:output id="greeting" value="'Welcome'"/>
    <xh:br/>
    <xf:trigger id="save"><xf:label>Save</xf:label></xf:trigger>
  </xh:body>
</xh:html>`

func orderData() map[string]any {
	return map[string]any{
		"customer": map[string]any{"name": "Ada"},
		"lines": []any{
			map[string]any{"qty": 2},
			map[string]any{"qty": 5},
		},
		"color": "blue",
		"size":  "m",
		"sizes": []any{
			map[string]any{"code": "s", "title": "Small"},
			map[string]any{"code": "m", "title": "Medium"},
		},
		"note": `<b>hi</b><script>alert(1)</script>`,
	}
}

func newController(t *testing.T, opts ...render.Option) *render.Controller {
	t.Helper()
	reg := handler.NewRegistry()
	if err := handler.RegisterXForms(reg); err != nil {
		t.Fatalf("RegisterXForms: %v", err)
	}
	c, err := render.NewController(reg, opts...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func renderString(t *testing.T, c *render.Controller, doc string, data map[string]any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), strings.NewReader(doc), data, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestRenderOrderForm(t *testing.T) {
	out := renderString(t, newController(t), orderForm, orderData())

	contains := []string{
		"<!DOCTYPE html>\n<html>",
		"<title>Order</title>",
		`<body class="order">`,
		`<div id="customer" class="xforms-group">`,
		`<label for="name-control">Name</label>`,
		`<input type="text" id="name-control" name="customer.name" value="Ada">`,
		`<span class="xforms-hint">Full name</span>`,
		`<div id="lines" class="xforms-repeat">`,
		`id="qty⊙1-control" name="lines.0.qty" value="2"`,
		`id="qty⊙2-control" name="lines.1.qty" value="5"`,
		`<input type="radio" name="color" value="blue" checked> Blue</label>`,
		`<input type="radio" name="color" value="red"> Red</label>`,
		`<option value="m" selected>Medium</option>`,
		`<option value="s">Small</option>`,
		`<div id="steps" class="xforms-switch">`,
		`<div id="step-two" class="xforms-case">`,
		"second step",
		"<p>inside dialog</p>",
		"<b>hi</b>",
		`<span class="xforms-output-output">Welcome</span>`,
		"<br>",
		`<button type="button" class="xforms-control xforms-trigger" id="save" data-event="DOMActivate">Save</button>`,
	}
	for _, want := range contains {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}

	absent := []string{
		"order-model",
		"order-instance",
		"first step",
		"step-one",
		"<dialog",
		"<script>",
		"</br>",
		"xmlns",
	}
	for _, unwanted := range absent {
		if strings.Contains(out, unwanted) {
			t.Errorf("output contains %q\n%s", unwanted, out)
		}
	}

	if got := strings.Count(out, `class="xforms-repeat-item"`); got != 2 {
		t.Errorf("repeat items = %d, want 2", got)
	}
}

var itemKeyPattern = regexp.MustCompile(`class="xforms-repeat-item" data-item-key="([0-9a-f-]+)" data-position="(\d+)"`)

func TestRepeatItemKeysStable(t *testing.T) {
	c := newController(t)
	first := itemKeyPattern.FindAllStringSubmatch(renderString(t, c, orderForm, orderData()), -1)
	second := itemKeyPattern.FindAllStringSubmatch(renderString(t, c, orderForm, orderData()), -1)

	if len(first) != 2 {
		t.Fatalf("found %d item keys, want 2", len(first))
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("item keys changed between renders (-first +second):\n%s", diff)
	}
	if first[0][1] == first[1][1] {
		t.Fatal("repeat items share a key")
	}
	if first[0][2] != "1" || first[1][2] != "2" {
		t.Fatalf("positions = %s,%s", first[0][2], first[1][2])
	}
}

func TestRepeatEmptySequence(t *testing.T) {
	data := orderData()
	delete(data, "lines")
	out := renderString(t, newController(t), orderForm, data)
	if !strings.Contains(out, `<div id="lines" class="xforms-repeat"></div>`) {
		t.Fatalf("empty repeat not rendered as empty container\n%s", out)
	}
}

func TestNestedRepeatEffectiveIDs(t *testing.T) {
	doc := `<div xmlns:xf="http://www.w3.org/2002/xforms">
  <xf:repeat id="groups" nodeset="groups">
    <xf:repeat id="members" nodeset="members">
      <xf:output id="who" ref="name"/>
    </xf:repeat>
  </xf:repeat>
</div>`
	data := map[string]any{
		"groups": []any{
			map[string]any{"members": []any{map[string]any{"name": "a"}}},
			map[string]any{"members": []any{map[string]any{"name": "b"}, map[string]any{"name": "c"}}},
		},
	}
	out := renderString(t, newController(t), doc, data)
	for _, want := range []string{`id="who⊙1-1"`, `id="who⊙2-1"`, `id="who⊙2-2"`, `id="members⊙2"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s\n%s", want, out)
		}
	}
	if strings.HasPrefix(out, "<!DOCTYPE") {
		t.Error("doctype emitted for a non-html root")
	}
}

func TestTemplateOverride(t *testing.T) {
	overrides := fstest.MapFS{
		"controls/trigger.tpl": {Data: []byte(`<a class="btn" id="{{ id }}">{{ label }}</a>`)},
	}
	out := renderString(t, newController(t, render.WithTemplateFS(overrides)), orderForm, orderData())
	if !strings.Contains(out, `<a class="btn" id="save">Save</a>`) {
		t.Fatalf("override template not used\n%s", out)
	}
	if !strings.Contains(out, `name="customer.name"`) {
		t.Fatal("built-in templates no longer used for other controls")
	}
}

func TestComponent(t *testing.T) {
	c := newController(t)
	want := renderString(t, c, orderForm, orderData())

	var buf bytes.Buffer
	if err := c.Component([]byte(orderForm), orderData()).Render(context.Background(), &buf); err != nil {
		t.Fatalf("component render: %v", err)
	}
	if buf.String() != want {
		t.Fatal("component output differs from Render")
	}
}

func TestRenderErrors(t *testing.T) {
	c := newController(t)

	var buf bytes.Buffer
	err := c.Render(context.Background(), strings.NewReader(`<div><p>unclosed</div>`), nil, &buf)
	if err == nil {
		t.Fatal("malformed document rendered without error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Render(ctx, strings.NewReader(orderForm), orderData(), &buf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	if _, err := render.NewController(nil); !errors.Is(err, render.ErrNilRegistry) {
		t.Fatalf("NewController(nil) error = %v", err)
	}
}

func TestUnknownNamespaceForwards(t *testing.T) {
	doc := `<div xmlns:ext="urn:example:ext"><ext:panel><span>kept</span></ext:panel></div>`
	out := renderString(t, newController(t), doc, nil)
	if out != "<div><span>kept</span></div>" {
		t.Fatalf("output = %q", out)
	}
}

func TestTemplateFuncsAndGlobals(t *testing.T) {
	overrides := fstest.MapFS{
		"controls/trigger.tpl": {Data: []byte(`<button data-app="{{ app }}">{{ shout(label) }}</button>`)},
	}
	c := newController(t,
		render.WithTemplateFS(overrides),
		render.WithGlobals(map[string]any{"app": "orders"}),
		render.WithTemplateFuncs(map[string]any{"shout": strings.ToUpper}),
	)
	out := renderString(t, c, orderForm, orderData())
	if !strings.Contains(out, `<button data-app="orders">SAVE</button>`) {
		t.Fatalf("template funcs not applied\n%s", out)
	}
}
