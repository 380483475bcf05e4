package render_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stufflebeam/orbeon-forms/pkg/render"
)

func TestMapErrors(t *testing.T) {
	payload := map[string][]string{
		"/body/customer/name":   {"Name is required", " Name is required "},
		"customer.email":        {"Email invalid"},
		"$.lines[1].qty":        {"Too many"},
		"/lines/1/qty":          {"Out of stock"},
		"request/payload/notes": {"Too long"},
		"path~1with~0tilde":     {"Escaped"},
		"non_field_errors":      {"Order rejected"},
		"":                      {"Try again later", "  "},
		"customer.phone":        {"   "},
	}

	got := render.MapErrors(payload)
	want := render.ErrorMapping{
		Fields: map[string][]string{
			"customer.name":   {"Name is required"},
			"customer.email":  {"Email invalid"},
			"lines.1.qty":     {"Too many", "Out of stock"},
			"notes":           {"Too long"},
			"path/with~tilde": {"Escaped"},
		},
		Form: []string{"Try again later", "Order rejected"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestMapErrorsEmpty(t *testing.T) {
	got := render.MapErrors(nil)
	if got.Fields != nil || got.Form != nil {
		t.Fatalf("MapErrors(nil) = %+v", got)
	}
}

func TestRenderWithErrors(t *testing.T) {
	c := newController(t)
	var buf bytes.Buffer
	err := c.RenderWith(context.Background(), strings.NewReader(orderForm), orderData(), render.RenderOptions{
		Errors: map[string][]string{
			"/customer/name": {"Name is required"},
			"lines[1].qty":   {"Out of stock"},
			"_form":          {"Please review the order"},
		},
	}, &buf)
	if err != nil {
		t.Fatalf("RenderWith: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<body class="order"><ul class="xforms-form-errors" role="alert"><li>Please review the order</li></ul>`,
		`class="xforms-control xforms-input xforms-invalid" id="name"`,
		`<span class="xforms-alert" role="alert">Name is required</span>`,
		`<span class="xforms-alert" role="alert">Out of stock</span>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if got := strings.Count(out, "xforms-invalid"); got != 2 {
		t.Errorf("invalid controls = %d, want 2", got)
	}
}
