package render_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stufflebeam/orbeon-forms/pkg/render"
)

func TestDecodeInstance(t *testing.T) {
	want := map[string]any{
		"customer": map[string]any{"name": "Ada"},
		"tags":     []any{"a", "b"},
	}

	cases := []struct {
		name   string
		format string
		input  string
	}{
		{"json", "json", `{"customer":{"name":"Ada"},"tags":["a","b"]}`},
		{"yaml", "yaml", "customer:\n  name: Ada\ntags:\n  - a\n  - b\n"},
		{"sniffed json", "", ` {"customer":{"name":"Ada"},"tags":["a","b"]}`},
		{"sniffed yaml", "", "customer:\n  name: Ada\ntags: [a, b]\n"},
		{"extension", ".YML", "customer: {name: Ada}\ntags: [a, b]\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := render.DecodeInstance(strings.NewReader(tc.input), tc.format)
			if err != nil {
				t.Fatalf("DecodeInstance: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("instance mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeInstanceErrors(t *testing.T) {
	if _, err := render.DecodeInstance(strings.NewReader("a: 1"), "toml"); err == nil {
		t.Fatal("unsupported format accepted")
	}
	if _, err := render.DecodeInstance(strings.NewReader("{"), "json"); err == nil {
		t.Fatal("malformed json accepted")
	}
	got, err := render.DecodeInstance(strings.NewReader("  \n"), "")
	if err != nil || len(got) != 0 {
		t.Fatalf("empty instance = %v, %v", got, err)
	}
}

func TestFormatOf(t *testing.T) {
	for name, want := range map[string]string{
		"data/order.json": "json",
		"order.YAML":      "yaml",
		"order":           "",
	} {
		if got := render.FormatOf(name); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", name, got, want)
		}
	}
}
