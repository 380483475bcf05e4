package handler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrInvalidRule is returned when a rule cannot be registered.
	ErrInvalidRule = errors.New("handler: invalid rule")
	// ErrDuplicateRule is returned when an element or namespace already has
	// a rule of the same name.
	ErrDuplicateRule = errors.New("handler: duplicate rule")
)

// Matcher refines a rule. It returns the token stored in
// Descriptor.Matched and whether the rule applies.
type Matcher func(desc Descriptor) (any, bool)

// Rule maps elements to a handler kind. A rule with an empty Local applies
// to every element of its namespace.
type Rule struct {
	Name     string
	URI      string
	Local    string
	Kind     Kind
	Priority int
	Match    Matcher
}

type entry struct {
	Rule
	order int
}

// Registry selects handlers for elements. Rules naming the element's local
// name are tried before namespace-wide rules; within each group higher
// priority wins and ties fall back to registration order. Elements no rule
// claims get the Null handler.
type Registry struct {
	mu    sync.RWMutex
	exact map[[2]string][]entry
	wide  map[string][]entry
	count int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		exact: make(map[[2]string][]entry),
		wide:  make(map[string][]entry),
	}
}

// Register maps {uri}local to kind.
func (r *Registry) Register(uri, local string, kind Kind) error {
	return r.RegisterRule(Rule{URI: uri, Local: local, Kind: kind})
}

// RegisterNamespace maps every element of uri to kind.
func (r *Registry) RegisterNamespace(uri string, kind Kind, priority int) error {
	return r.RegisterRule(Rule{URI: uri, Kind: kind, Priority: priority})
}

// RegisterRule adds rule. Rules without a name are named after the element
// they match. Names are unique per element, and per namespace for
// namespace-wide rules.
func (r *Registry) RegisterRule(rule Rule) error {
	if r == nil {
		return fmt.Errorf("%w: nil registry", ErrInvalidRule)
	}
	if !rule.Kind.valid() {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidRule, rule.Kind)
	}
	rule.URI = strings.TrimSpace(rule.URI)
	rule.Local = strings.TrimSpace(rule.Local)
	if rule.Name = strings.TrimSpace(rule.Name); rule.Name == "" {
		rule.Name = ruleName(rule)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{rule.URI, rule.Local}
	existing := r.exact[key]
	if rule.Local == "" {
		existing = r.wide[rule.URI]
	}
	for _, e := range existing {
		if e.Name == rule.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.Name)
		}
	}

	e := entry{Rule: rule, order: r.count}
	r.count++
	if rule.Local == "" {
		r.wide[rule.URI] = insert(existing, e)
		return nil
	}
	r.exact[key] = insert(existing, e)
	return nil
}

// Lookup returns the handler selected by a registered rule. The returned
// handler's descriptor carries the matcher token.
func (r *Registry) Lookup(desc Descriptor) (Handler, bool) {
	if r == nil {
		return Handler{}, false
	}
	r.mu.RLock()
	exact := r.exact[[2]string{desc.URI, desc.LocalName}]
	wide := r.wide[desc.URI]
	r.mu.RUnlock()

	for _, group := range [][]entry{exact, wide} {
		for _, e := range group {
			token, ok := any(nil), true
			if e.Match != nil {
				token, ok = e.Match(desc)
			}
			if !ok {
				continue
			}
			desc.Matched = token
			h := New(e.Kind, desc)
			h.rule = e.Name
			return h, true
		}
	}
	return Handler{}, false
}

// Resolve returns the handler for desc, falling back to the Null handler.
func (r *Registry) Resolve(desc Descriptor) Handler {
	if h, ok := r.Lookup(desc); ok {
		return h
	}
	return NewNull(desc)
}

// Rules lists the registered rules in resolution order, exact rules first.
func (r *Registry) Rules() []Rule {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exact, wide []entry
	for _, group := range r.exact {
		exact = append(exact, group...)
	}
	for _, group := range r.wide {
		wide = append(wide, group...)
	}
	byName := func(list []entry) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].URI != list[j].URI {
				return list[i].URI < list[j].URI
			}
			if list[i].Local != list[j].Local {
				return list[i].Local < list[j].Local
			}
			return less(list[i], list[j])
		})
	}
	byName(exact)
	byName(wide)

	rules := make([]Rule, 0, len(exact)+len(wide))
	for _, e := range append(exact, wide...) {
		rules = append(rules, e.Rule)
	}
	return rules
}

// insert keeps list sorted by priority, then registration order. The slice
// is copied so readers holding the previous one are unaffected.
func insert(list []entry, e entry) []entry {
	out := make([]entry, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, e)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less(a, b entry) bool {
	if a.Priority == b.Priority {
		return a.order < b.order
	}
	return a.Priority > b.Priority
}

func ruleName(rule Rule) string {
	local := rule.Local
	if local == "" {
		local = "*"
	}
	if rule.URI == "" {
		return local
	}
	return "{" + rule.URI + "}" + local
}
