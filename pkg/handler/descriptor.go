// Package handler selects, for each element of a form document, the handler
// deciding how the element is rendered.
package handler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateAttribute is returned when an element carries the same
// attribute twice.
var ErrDuplicateAttribute = errors.New("handler: duplicate attribute")

// Attribute is a namespaced attribute of an element.
type Attribute struct {
	URI   string
	Local string
	Value string
}

// Attributes is an ordered attribute set with unique (URI, Local) keys.
type Attributes struct {
	items []Attribute
}

// NewAttributes validates attrs and keeps them in document order.
func NewAttributes(attrs ...Attribute) (Attributes, error) {
	seen := make(map[[2]string]struct{}, len(attrs))
	items := make([]Attribute, 0, len(attrs))
	for _, attr := range attrs {
		key := [2]string{attr.URI, attr.Local}
		if _, dup := seen[key]; dup {
			name := attr.Local
			if attr.URI != "" {
				name = "{" + attr.URI + "}" + attr.Local
			}
			return Attributes{}, fmt.Errorf("%w: %s", ErrDuplicateAttribute, name)
		}
		seen[key] = struct{}{}
		items = append(items, attr)
	}
	return Attributes{items: items}, nil
}

// Len returns the number of attributes.
func (a Attributes) Len() int { return len(a.items) }

// All returns a copy of the attributes in document order.
func (a Attributes) All() []Attribute {
	return append([]Attribute(nil), a.items...)
}

// Get returns the value of the attribute with no namespace named local.
func (a Attributes) Get(local string) (string, bool) {
	return a.GetNS("", local)
}

// GetNS returns the value of the attribute {uri}local.
func (a Attributes) GetNS(uri, local string) (string, bool) {
	for _, attr := range a.items {
		if attr.URI == uri && attr.Local == local {
			return attr.Value, true
		}
	}
	return "", false
}

// Value is Get with the empty string for missing attributes, trimmed.
func (a Attributes) Value(local string) string {
	value, _ := a.Get(local)
	return strings.TrimSpace(value)
}

// Descriptor describes one occurrence of an element.
type Descriptor struct {
	URI        string
	LocalName  string
	QName      string
	Attributes Attributes
	// Matched is the token returned by the rule matcher that selected the
	// handler, nil when the rule has no matcher.
	Matched any
	Context *Context
}

// NewDescriptor builds a descriptor, rejecting duplicate attributes.
func NewDescriptor(uri, local, qname string, attrs []Attribute, ctx *Context) (Descriptor, error) {
	set, err := NewAttributes(attrs...)
	if err != nil {
		return Descriptor{}, fmt.Errorf("element %s: %w", qname, err)
	}
	if qname == "" {
		qname = local
	}
	return Descriptor{
		URI:        uri,
		LocalName:  local,
		QName:      qname,
		Attributes: set,
		Context:    ctx,
	}, nil
}

// StaticID returns the id attribute of the element.
func (d Descriptor) StaticID() string {
	return d.Attributes.Value("id")
}
