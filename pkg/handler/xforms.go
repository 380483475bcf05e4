package handler

import "strings"

// Namespaces of form documents.
const (
	NamespaceXHTML   = "http://www.w3.org/1999/xhtml"
	NamespaceXForms  = "http://www.w3.org/2002/xforms"
	NamespaceXXForms = "http://orbeon.org/oxf/xml/xforms"
	NamespaceEvents  = "http://www.w3.org/2001/xml-events"
)

// RegisterXForms installs the handlers for the standard XForms elements.
// Extension elements in the xxf namespace are claimed by a namespace rule and
// pass their children through.
func RegisterXForms(r *Registry) error {
	table := []struct {
		local string
		kind  Kind
	}{
		{"repeat", KindRepeat},
		{"group", KindGroup},
		{"switch", KindSwitch},
		{"case", KindCase},
		{"input", KindControl},
		{"secret", KindControl},
		{"textarea", KindControl},
		{"select1", KindControl},
		{"trigger", KindControl},
		{"submit", KindControl},
		{"output", KindOutput},
		{"model", KindSkip},
		{"label", KindSkip},
		{"hint", KindSkip},
		{"help", KindSkip},
	}
	for _, row := range table {
		if err := r.Register(NamespaceXForms, row.local, row.kind); err != nil {
			return err
		}
	}

	// select1 appearances select a template variant.
	err := r.RegisterRule(Rule{
		Name:     "select1-appearance",
		URI:      NamespaceXForms,
		Local:    "select1",
		Kind:     KindControl,
		Priority: 10,
		Match:    appearance,
	})
	if err != nil {
		return err
	}
	return r.RegisterNamespace(NamespaceXXForms, KindNull, 0)
}

func appearance(desc Descriptor) (any, bool) {
	value := desc.Attributes.Value("appearance")
	if value == "" {
		return nil, false
	}
	if idx := strings.IndexByte(value, ':'); idx >= 0 {
		value = value[idx+1:]
	}
	switch value {
	case "full", "compact", "minimal":
		return value, true
	default:
		return nil, false
	}
}
