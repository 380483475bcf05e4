package render

// RenderOptions carry per-request data that is not part of the instance.
type RenderOptions struct {
	// Errors surfaces server-side validation feedback keyed by binding path,
	// in any form MapErrors accepts. Controls bound to a path with messages
	// show them as their alert and get the xforms-invalid class. Form-level
	// messages are listed at the top of the html body.
	Errors map[string][]string
}
