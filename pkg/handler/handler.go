package handler

// Kind identifies what a handler does with its element.
type Kind int

const (
	// KindNull renders nothing of its own and lets the children through.
	KindNull Kind = iota
	// KindSkip consumes the element and its subtree.
	KindSkip
	KindRepeat
	KindGroup
	KindSwitch
	KindCase
	KindControl
	KindOutput
)

var kindNames = [...]string{
	KindNull:    "null",
	KindSkip:    "skip",
	KindRepeat:  "repeat",
	KindGroup:   "group",
	KindSwitch:  "switch",
	KindCase:    "case",
	KindControl: "control",
	KindOutput:  "output",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

func (k Kind) valid() bool {
	return k >= KindNull && int(k) < len(kindNames)
}

// Capabilities tell the walker how to treat an element.
type Capabilities struct {
	// Repeating elements render once per bound item.
	Repeating bool
	// Forwarding elements produce no markup; their children are processed
	// into the current output.
	Forwarding bool
}

func capabilitiesOf(kind Kind) Capabilities {
	switch kind {
	case KindNull:
		return Capabilities{Forwarding: true}
	case KindRepeat:
		return Capabilities{Repeating: true}
	default:
		return Capabilities{}
	}
}

// Handler is the handler selected for one element occurrence.
type Handler struct {
	kind       Kind
	rule       string
	caps       Capabilities
	descriptor Descriptor
}

// New returns a handler of kind for desc.
func New(kind Kind, desc Descriptor) Handler {
	return Handler{kind: kind, caps: capabilitiesOf(kind), descriptor: desc}
}

// NewNull returns the pass-through handler used for elements nobody claims.
func NewNull(desc Descriptor) Handler {
	return New(KindNull, desc)
}

func (h Handler) Kind() Kind { return h.kind }

// Rule names the registration that selected the handler, empty for the
// fallback.
func (h Handler) Rule() string { return h.rule }

func (h Handler) IsRepeating() bool { return h.caps.Repeating }

func (h Handler) IsForwarding() bool { return h.caps.Forwarding }

func (h Handler) Capabilities() Capabilities { return h.caps }

func (h Handler) Descriptor() Descriptor { return h.descriptor }

// Context returns the handler-context the handler was built with.
func (h Handler) Context() *Context { return h.descriptor.Context }
