package render

import (
	"sort"
	"strings"
)

// ErrorMapping splits a validation payload into control-level messages keyed
// by dotted binding path and form-level messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

var formLevelKeys = map[string]bool{
	"":                 true,
	"_form":            true,
	"form":             true,
	"__all__":          true,
	"non_field_errors": true,
}

var wrapperSegments = map[string]bool{
	"body":    true,
	"request": true,
	"payload": true,
}

// MapErrors normalises payload keys into binding paths. JSON pointers
// ("/lines/1/qty"), bracketed indexes ("lines[1].qty") and dotted paths all
// map to "lines.1.qty"; leading request wrappers such as "body" are dropped.
// Keys naming the whole form, or nothing, become form-level messages.
func MapErrors(payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{}
	if len(payload) == 0 {
		return mapping
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, raw := range keys {
		messages := normalizeMessages(payload[raw])
		if len(messages) == 0 {
			continue
		}
		path := errorPath(raw)
		if path == "" {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		if mapping.Fields == nil {
			mapping.Fields = make(map[string][]string)
		}
		mapping.Fields[path] = normalizeMessages(append(mapping.Fields[path], messages...))
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

// lookup returns the messages for a control bound to path.
func (m ErrorMapping) lookup(path string) []string {
	if path == "" || len(m.Fields) == 0 {
		return nil
	}
	return m.Fields[path]
}

func errorPath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if formLevelKeys[strings.ToLower(trimmed)] {
		return ""
	}
	segments := parsePathSegments(trimmed)
	for len(segments) > 1 && wrapperSegments[strings.ToLower(segments[0])] {
		segments = segments[1:]
	}
	return strings.Join(segments, ".")
}

func parsePathSegments(path string) []string {
	clean := strings.TrimPrefix(path, "#")
	clean = strings.TrimPrefix(clean, "$")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
