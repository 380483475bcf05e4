package resource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// cleanPath turns a logical path into an fs.FS name: slash separated, no
// leading slash and no element escaping the root.
func cleanPath(raw string) (string, bool) {
	p := strings.TrimSpace(raw)
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", false
	}
	p = path.Clean(p)
	if p == "." || !fs.ValidPath(p) {
		return "", false
	}
	return p, true
}

func loadFromFS(ctx context.Context, files fs.FS, name string) ([]byte, error) {
	if files == nil {
		return nil, errors.New("resource: fs is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	info, err := fs.Stat(files, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return fs.ReadFile(files, name)
}

// fsManager serves logical paths out of an fs.FS. The web application,
// sandboxed filesystem and embedded managers are all fsManagers over
// different roots.
type fsManager struct {
	name  string
	files fs.FS
}

func (m *fsManager) Content(ctx context.Context, name string) ([]byte, error) {
	clean, ok := cleanPath(name)
	if !ok {
		return nil, notFound(m.name, name)
	}
	data, err := loadFromFS(ctx, m.files, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, notFound(m.name, name)
		}
		return nil, fmt.Errorf("resource: %s: read %q: %w", m.name, name, err)
	}
	return data, nil
}
