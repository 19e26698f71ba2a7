package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir is a Store in a local directory.
type Dir struct {
	root string
}

// NewDir creates a Dir rooted at dir, creating the directory if needed.
func NewDir(dir string) (*Dir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) resolve(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *Dir) Create(_ context.Context, name string) (io.WriteCloser, error) {
	full, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	full, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (d *Dir) Remove(_ context.Context, name string) error {
	full, err := d.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Dir) Exists(_ context.Context, name string) (bool, error) {
	full, err := d.resolve(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, err
}
