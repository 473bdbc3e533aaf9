package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const backendFile = "file"

// DefaultFilePath is the token cache file used when none is configured.
const DefaultFilePath = ".token_cache.json"

// FileStore stores all tokens in a single JSON document on disk.
// It is safe for concurrent use within one process.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path. The file is
// created on the first Set.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{path: path}
}

// Path returns the cache file location.
func (s *FileStore) Path() string {
	return s.path
}

// Get retrieves a token entry by key.
func (s *FileStore) Get(ctx context.Context, key Key) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		CacheErrors.WithLabelValues(backendFile, "get").Inc()
		return nil, err
	}

	entry, ok := entries[key.String()]
	if !ok || !entry.usable() {
		CacheMisses.WithLabelValues(backendFile).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backendFile).Inc()
	return &entry, nil
}

// Set stores a token entry, dropping entries that are past their retention.
func (s *FileStore) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil && !errors.Is(err, ErrInvalidEntry) {
		CacheErrors.WithLabelValues(backendFile, "set").Inc()
		return err
	}
	if entries == nil {
		// Corrupted cache files are replaced.
		entries = make(map[string]Entry)
	}

	for k, e := range entries {
		if e.Retention() <= 0 {
			delete(entries, k)
		}
	}
	entries[key.String()] = *entry

	if err := s.save(entries); err != nil {
		CacheErrors.WithLabelValues(backendFile, "set").Inc()
		return err
	}
	return nil
}

// Delete removes a token entry.
func (s *FileStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		CacheErrors.WithLabelValues(backendFile, "delete").Inc()
		return err
	}
	if _, ok := entries[key.String()]; !ok {
		return nil
	}
	delete(entries, key.String())

	if err := s.save(entries); err != nil {
		CacheErrors.WithLabelValues(backendFile, "delete").Inc()
		return err
	}
	return nil
}

func (s *FileStore) load() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]Entry), nil
		}
		return nil, fmt.Errorf("read token cache: %w", err)
	}

	entries := make(map[string]Entry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, s.path, err)
	}
	return entries, nil
}

// save writes entries to a temporary file and renames it over the cache file.
func (s *FileStore) save(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".token_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp token cache: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token cache: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename token cache: %w", err)
	}
	return nil
}
