// Package filestore stores uploaded source files on disk, keyed by upload
// ID. Files keep their original extension so converters can dispatch on it,
// but never their original name: IDs are the only path component callers
// control.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is a flat directory of uploaded files.
type Store struct {
	dir string
}

// New creates the storage directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// Save writes the reader's content under the given ID, keeping filename's
// extension. It returns the stored path and the number of bytes written.
func (s *Store) Save(id, filename string, r io.Reader) (string, int64, error) {
	path, err := s.safePath(id, filename)
	if err != nil {
		return "", 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write file: %w", err)
	}
	return path, n, nil
}

// Path returns the on-disk path for an upload, or an error when it does not
// exist.
func (s *Store) Path(id, filename string) (string, error) {
	path, err := s.safePath(id, filename)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("upload %s: %w", id, err)
	}
	return path, nil
}

// Delete removes an upload's file. Deleting a missing file is not an error.
func (s *Store) Delete(id, filename string) error {
	path, err := s.safePath(id, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// safePath builds <dir>/<id><ext> and rejects IDs that are not plain hex,
// so request-supplied values cannot traverse outside the store.
func (s *Store) safePath(id, filename string) (string, error) {
	if id == "" || !isHex(id) {
		return "", fmt.Errorf("invalid upload id: %q", id)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return filepath.Join(s.dir, id+ext), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
