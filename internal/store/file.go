package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"
)

var _ KV = (*FileKV)(nil)

var keyRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileKV stores each key as a JSON file under Dir:
//
//	<Dir>/<key>.json
//
// Writes go to a temp file first and are renamed into place, so a crash
// mid-write leaves the previous value intact.
type FileKV struct {
	fs  afero.Fs
	Dir string
}

// NewFileKV creates a FileKV rooted at dir on the OS filesystem.
func NewFileKV(dir string) *FileKV {
	return NewFileKVFs(afero.NewOsFs(), dir)
}

// NewFileKVFs creates a FileKV on an arbitrary afero filesystem.
func NewFileKVFs(fs afero.Fs, dir string) *FileKV {
	return &FileKV{fs: fs, Dir: dir}
}

// Load reads the file for key.
func (f *FileKV) Load(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Save atomically replaces the file for key.
func (f *FileKV) Save(_ context.Context, key string, data []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", f.Dir, err)
	}

	tmp, err := afero.TempFile(f.fs, f.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		f.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := f.fs.Rename(tmpName, path); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

func (f *FileKV) path(key string) (string, error) {
	if !keyRE.MatchString(key) {
		return "", fmt.Errorf("store: invalid key %q", key)
	}
	return filepath.Join(f.Dir, key+".json"), nil
}
