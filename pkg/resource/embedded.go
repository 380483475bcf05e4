package resource

import (
	"fmt"
	"io/fs"
)

// EmbeddedFactory serves resources bundled with the binary (an embed.FS or
// any other fs.FS), optionally below OptionEmbeddedPrefix.
type EmbeddedFactory struct {
	options Options
	manager Manager
}

// NewEmbeddedFactory validates the options and returns the factory.
func NewEmbeddedFactory(files fs.FS, options Options) (*EmbeddedFactory, error) {
	if files == nil {
		return nil, fmt.Errorf("resource: %s factory: %w: fs is nil", KindEmbedded, ErrMissingOption)
	}
	opts := options.clone()
	root := files
	if prefix, ok := opts.Get(OptionEmbeddedPrefix); ok {
		clean, valid := cleanPath(prefix)
		if !valid {
			return nil, fmt.Errorf("resource: %s factory: %w %q", KindEmbedded, ErrInvalidOption, OptionEmbeddedPrefix)
		}
		sub, err := fs.Sub(files, clean)
		if err != nil {
			return nil, fmt.Errorf("resource: %s factory: %w %q: %v", KindEmbedded, ErrInvalidOption, OptionEmbeddedPrefix, err)
		}
		root = sub
	}
	return &EmbeddedFactory{
		options: opts,
		manager: &fsManager{name: string(KindEmbedded), files: root},
	}, nil
}

// Kind implements Factory.
func (f *EmbeddedFactory) Kind() Kind { return KindEmbedded }

// MakeInstance implements Factory.
func (f *EmbeddedFactory) MakeInstance() Manager { return f.manager }
