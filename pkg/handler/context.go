package handler

import (
	"strconv"
	"strings"
)

// Separators used to build effective ids of elements inside repeats,
// e.g. "name⊙2-1" for the first item of the second outer item.
const (
	RepeatSeparator      = "⊙"
	RepeatIndexSeparator = "-"
)

// Iteration identifies one item of a repeat.
type Iteration struct {
	// Position is 1-based.
	Position int
	Key      string
}

// Context is the handler-context shared by the handlers of one document
// walk. Repeats open a child scope per item. Contexts are request-local.
type Context struct {
	parent    *Context
	data      any
	iteration *Iteration
	values    map[string]any
}

// NewContext returns a root context bound to data.
func NewContext(data any) *Context {
	return &Context{data: data}
}

// Child opens a scope for one repeat item.
func (c *Context) Child(data any, it Iteration) *Context {
	return &Context{parent: c, data: data, iteration: &it}
}

// Bind opens a scope with a new binding context and no repeat item, as a
// group with a ref does.
func (c *Context) Bind(data any) *Context {
	return &Context{parent: c, data: data}
}

// Data returns the binding context of this scope.
func (c *Context) Data() any {
	if c == nil {
		return nil
	}
	return c.data
}

// Iteration returns the repeat item this scope belongs to, if any.
func (c *Context) Iteration() (Iteration, bool) {
	if c == nil || c.iteration == nil {
		return Iteration{}, false
	}
	return *c.iteration, true
}

// Positions lists the repeat positions from the outermost scope inwards.
func (c *Context) Positions() []int {
	var positions []int
	for scope := c; scope != nil; scope = scope.parent {
		if scope.iteration != nil {
			positions = append(positions, scope.iteration.Position)
		}
	}
	for i, j := 0, len(positions)-1; i < j; i, j = i+1, j-1 {
		positions[i], positions[j] = positions[j], positions[i]
	}
	return positions
}

// EffectiveID qualifies a static id with the enclosing repeat positions.
func (c *Context) EffectiveID(staticID string) string {
	positions := c.Positions()
	if staticID == "" || len(positions) == 0 {
		return staticID
	}
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = strconv.Itoa(p)
	}
	return staticID + RepeatSeparator + strings.Join(parts, RepeatIndexSeparator)
}

// Set stores a value visible to this scope and its children.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Value looks key up in this scope, then in enclosing scopes.
func (c *Context) Value(key string) (any, bool) {
	for scope := c; scope != nil; scope = scope.parent {
		if value, ok := scope.values[key]; ok {
			return value, true
		}
	}
	return nil, false
}
