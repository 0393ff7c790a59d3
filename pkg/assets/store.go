// Package assets persists the artifacts a training run leaves behind for
// validation and test runs: fitted vocabularies and the run manifest.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrNotFound is returned when a key has never been stored.
var ErrNotFound = errors.New("asset not found")

// Store is a flat key-value store of opaque blobs. Keys are file names.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
}

// FileStore keeps each key as a file in Dir. There is no locking: concurrent
// writers to the same directory race.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) Get(key string) ([]byte, error) {
	path := filepath.Join(s.Dir, key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q: %w", ErrNotFound, path, err)
	} else if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return data, nil
}

// Put writes data to a temporary file and renames it over key so readers never
// observe a partial file.
func (s *FileStore) Put(key string, data []byte) error {
	err := os.MkdirAll(s.Dir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("creating asset directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file for %q: %w", key, err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing %q: %w", key, err)
	}

	err = os.Rename(tmpPath, filepath.Join(s.Dir, key))
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming %q: %w", key, err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.blobs))
	for key := range s.blobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
