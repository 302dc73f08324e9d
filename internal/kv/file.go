package kv

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultDir returns the per-user config root ($XDG_CONFIG_HOME/agrimarket or ~/.config/agrimarket).
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "agrimarket")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agrimarket")
}

// File stores one JSON file per key under <root>/<origin>/.
type File struct {
	dir string
}

// NewFile constructs a file backend rooted at root for the given origin.
func NewFile(root, origin string) (*File, error) {
	dir := filepath.Join(root, origin)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

// Dir is the directory holding this origin's files.
func (f *File) Dir() string { return f.dir }

func (f *File) path(key string) string { return filepath.Join(f.dir, sanitize(key)+".json") }

func (f *File) Load(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMissing
	}
	return b, err
}

// Save writes through a temp file and rename so readers never see a torn value.
func (f *File) Save(_ context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

func (f *File) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *File) Close() error { return nil }
