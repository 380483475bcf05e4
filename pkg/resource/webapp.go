package resource

import (
	"fmt"
	"os"
	"path/filepath"
)

// WebAppFactory creates managers resolving paths relative to the web
// application root directory (OptionWebAppRoot). Paths escaping the root are
// reported as not found.
type WebAppFactory struct {
	options Options
	manager Manager
}

// NewWebAppFactory validates the options and returns the factory.
func NewWebAppFactory(options Options) (*WebAppFactory, error) {
	opts := options.clone()
	root, err := opts.require(KindWebApp, OptionWebAppRoot)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resource: %s factory: %w %q: %v", KindWebApp, ErrInvalidOption, OptionWebAppRoot, err)
	}
	return &WebAppFactory{
		options: opts,
		manager: &fsManager{name: string(KindWebApp), files: os.DirFS(abs)},
	}, nil
}

// Kind implements Factory.
func (f *WebAppFactory) Kind() Kind { return KindWebApp }

// MakeInstance implements Factory.
func (f *WebAppFactory) MakeInstance() Manager { return f.manager }

// Root returns the configured web application root.
func (f *WebAppFactory) Root() string {
	root, _ := f.options.Get(OptionWebAppRoot)
	return root
}
