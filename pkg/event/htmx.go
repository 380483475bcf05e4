package event

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Response headers understood by htmx clients.
const (
	HeaderRedirect = "HX-Redirect"
	HeaderLocation = "HX-Location"
	HeaderTrigger  = "HX-Trigger"
)

// ClientHeaders translates ev into the response headers that make an htmx
// client act on it. A load of an absolute URL becomes a full redirect; a
// load of a path becomes an HX-Location swap. Other kinds are forwarded as
// client-side triggers.
func ClientHeaders(ev Event) (http.Header, error) {
	if ev.state == nil {
		return nil, ErrNilTarget
	}
	header := http.Header{}
	switch p := ev.payload.(type) {
	case Load:
		resource := p.Resource()
		if strings.TrimSpace(resource) == "" {
			return nil, fmt.Errorf("%w: load without resource", ErrNoClientAction)
		}
		u, err := url.Parse(resource)
		if err != nil {
			return nil, fmt.Errorf("event: load resource %q: %w", resource, err)
		}
		if u.IsAbs() {
			header.Set(HeaderRedirect, resource)
			return header, nil
		}
		location, err := json.Marshal(struct {
			Path string `json:"path"`
		}{Path: resource})
		if err != nil {
			return nil, err
		}
		header.Set(HeaderLocation, string(location))
	case nil:
		header.Set(HeaderTrigger, string(ev.name))
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoClientAction, ev.name)
	}
	return header, nil
}
