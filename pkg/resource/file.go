package resource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

func loadFile(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("resource: file path is required")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: abs, Err: fs.ErrNotExist}
	}
	return os.ReadFile(abs)
}

// FilesystemFactory builds managers reading straight from the operating
// system. With OptionFilesystemSandbox set, logical paths resolve inside the
// sandbox directory; without it they are taken as OS paths.
type FilesystemFactory struct {
	options Options
	manager Manager
}

// NewFilesystemFactory validates the options and returns the factory.
func NewFilesystemFactory(options Options) (*FilesystemFactory, error) {
	opts := options.clone()
	var manager Manager = osManager{}
	if sandbox, ok := opts.Get(OptionFilesystemSandbox); ok {
		abs, err := filepath.Abs(sandbox)
		if err != nil {
			return nil, fmt.Errorf("resource: %s factory: %w %q: %v", KindFilesystem, ErrInvalidOption, OptionFilesystemSandbox, err)
		}
		manager = &fsManager{name: string(KindFilesystem), files: os.DirFS(abs)}
	}
	return &FilesystemFactory{options: opts, manager: manager}, nil
}

// Kind implements Factory.
func (f *FilesystemFactory) Kind() Kind { return KindFilesystem }

// MakeInstance implements Factory.
func (f *FilesystemFactory) MakeInstance() Manager { return f.manager }

type osManager struct{}

func (osManager) Content(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, notFound(string(KindFilesystem), path)
	}
	data, err := loadFile(ctx, filepath.FromSlash(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(string(KindFilesystem), path)
		}
		return nil, fmt.Errorf("resource: %s: read %q: %w", KindFilesystem, path, err)
	}
	return data, nil
}
