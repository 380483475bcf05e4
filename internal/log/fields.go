package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"

	FieldPath     = "path"
	FieldManager  = "manager"
	FieldEvent    = "event"
	FieldTarget   = "target"
	FieldElement  = "element"
	FieldHandler  = "handler"
	FieldRule     = "rule"
	FieldItemKey  = "item_key"
	FieldTemplate = "template"
)
