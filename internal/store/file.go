package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend stores one file per key under a directory.
type FileBackend struct {
	dir string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend returns a FileBackend rooted at dir. The directory is
// created lazily on the first write.
func NewFileBackend(dir string) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("missing checkpoint dir")
	}
	return &FileBackend{dir: dir}, nil
}

// Get implements Backend.
func (f *FileBackend) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put implements Backend. The write goes to a temp file first and is renamed
// into place so a crash mid-write never leaves a torn checkpoint.
func (f *FileBackend) Put(key string, value []byte) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Delete implements Backend.
func (f *FileBackend) Delete(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileBackend) path(key string) string {
	key = strings.ReplaceAll(strings.TrimSpace(key), string(os.PathSeparator), "_")
	return filepath.Join(f.dir, key+".ckpt")
}
