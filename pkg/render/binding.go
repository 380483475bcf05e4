package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeInstance reads instance data. format is "json", "yaml" or "yml";
// when empty the format is sniffed from the first non-space byte.
func DecodeInstance(r io.Reader, format string) (map[string]any, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("render: read instance: %w", err)
	}
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if format == "" {
		format = "yaml"
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
			format = "json"
		}
	}

	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	switch format {
	case "json":
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("render: decode json instance: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("render: decode yaml instance: %w", err)
		}
	default:
		return nil, fmt.Errorf("render: unsupported instance format %q", format)
	}
	return out, nil
}

// FormatOf returns the instance format implied by a file name.
func FormatOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// resolve evaluates a binding expression: a dotted or slash-separated path,
// relative to current unless it starts with "/". Numeric segments index
// sequences from zero. "." is the current node.
func resolve(root, current any, expr string) (any, bool) {
	expr = strings.TrimSpace(expr)
	node := current
	if strings.HasPrefix(expr, "/") {
		node = root
	}
	for _, segment := range segments(expr) {
		switch v := node.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, false
			}
			node = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			node = v[idx]
		default:
			return nil, false
		}
	}
	return node, true
}

// bindPath returns the absolute dotted path of expr evaluated in the scope
// whose absolute path is base.
func bindPath(base, expr string) string {
	expr = strings.TrimSpace(expr)
	parts := segments(expr)
	if !strings.HasPrefix(expr, "/") && base != "" {
		parts = append(segments(base), parts...)
	}
	return strings.Join(parts, ".")
}

func segments(expr string) []string {
	fields := strings.FieldsFunc(expr, func(r rune) bool { return r == '.' || r == '/' })
	out := fields[:0]
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}

// sequence turns a bound value into repeat items.
func sequence(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	default:
		return []any{v}
	}
}

// text renders a bound value as control text.
func text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// literal reports whether expr is a quoted string literal and returns it.
func literal(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if len(expr) >= 2 {
		if q := expr[0]; (q == '\'' || q == '"') && expr[len(expr)-1] == q {
			return expr[1 : len(expr)-1], true
		}
	}
	return "", false
}
