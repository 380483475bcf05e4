package event

import "sort"

// Kind names an event. The set is closed: New rejects any name not listed in
// the registry below, so adding a kind is a code change, not a runtime one.
type Kind string

const (
	// KindLoad is the internal event asking the client to load a resource.
	KindLoad Kind = "xxforms-load"

	KindDOMActivate  Kind = "DOMActivate"
	KindValueChanged Kind = "xforms-value-changed"
	KindFocus        Kind = "xforms-focus"
	KindSubmit       Kind = "xforms-submit"
	KindSubmitDone   Kind = "xforms-submit-done"
	KindSubmitError  Kind = "xforms-submit-error"
	KindReady        Kind = "xforms-ready"
	KindReset        Kind = "xforms-reset"
)

// Role classifies event targets. Each kind requires targets of one role.
type Role int

const (
	RoleAny Role = iota
	RoleDocument
	RoleModel
	RoleControl
	RoleSubmission
)

func (r Role) String() string {
	switch r {
	case RoleAny:
		return "any"
	case RoleDocument:
		return "document"
	case RoleModel:
		return "model"
	case RoleControl:
		return "control"
	case RoleSubmission:
		return "submission"
	default:
		return "unknown"
	}
}

// Info describes a registered kind: its customary flags and the role its
// target must play.
type Info struct {
	Kind       Kind
	Bubbles    bool
	Cancelable bool
	Role       Role
	// Internal kinds are raised by the engine itself, never by form authors.
	Internal bool
}

var registry = map[Kind]Info{
	KindLoad:         {Kind: KindLoad, Role: RoleDocument, Internal: true},
	KindDOMActivate:  {Kind: KindDOMActivate, Bubbles: true, Cancelable: true, Role: RoleControl},
	KindValueChanged: {Kind: KindValueChanged, Bubbles: true, Role: RoleControl},
	KindFocus:        {Kind: KindFocus, Cancelable: true, Role: RoleControl},
	KindSubmit:       {Kind: KindSubmit, Bubbles: true, Cancelable: true, Role: RoleSubmission},
	KindSubmitDone:   {Kind: KindSubmitDone, Bubbles: true, Role: RoleSubmission},
	KindSubmitError:  {Kind: KindSubmitError, Bubbles: true, Role: RoleSubmission},
	KindReady:        {Kind: KindReady, Bubbles: true, Role: RoleModel},
	KindReset:        {Kind: KindReset, Bubbles: true, Cancelable: true, Role: RoleModel},
}

// Lookup returns the registry entry for name.
func Lookup(name Kind) (Info, bool) {
	info, ok := registry[name]
	return info, ok
}

// Registered lists every registered kind in sorted order.
func Registered() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Accepts reports whether a target of role r may receive events of this kind.
func (i Info) Accepts(r Role) bool {
	return i.Role == RoleAny || i.Role == r
}
