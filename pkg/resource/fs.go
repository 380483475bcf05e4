package resource

import (
	"bytes"
	"context"
	"io/fs"
	"path"
	"time"
)

// FS exposes a Manager as a read-only fs.FS so template engines and other
// fs-based loaders can read through it. Directories cannot be listed.
func FS(ctx context.Context, manager Manager) fs.FS {
	if ctx == nil {
		ctx = context.Background()
	}
	return managerFS{ctx: ctx, manager: manager}
}

type managerFS struct {
	ctx     context.Context
	manager Manager
}

var _ fs.ReadFileFS = managerFS{}

func (f managerFS) Open(name string) (fs.File, error) {
	data, err := f.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &memFile{name: name, reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

func (f managerFS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, err := f.manager.Content(f.ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return data, nil
}

type memFile struct {
	name   string
	reader *bytes.Reader
	size   int64
}

func (f *memFile) Stat() (fs.FileInfo, error) { return memInfo{name: path.Base(f.name), size: f.size}, nil }
func (f *memFile) Read(p []byte) (int, error) { return f.reader.Read(p) }
func (f *memFile) Close() error               { return nil }

type memInfo struct {
	name string
	size int64
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o444 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }
