package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists values as one file per key under a directory. Keys are
// hashed so arbitrary key strings never produce unsafe file names. Writes go
// through a temp file and rename so a crashed write never leaves a torn value.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir. An empty dir
// defaults to ~/.config/gitboard.
func NewFileStore(dir string) (*FileStore, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, ".config", "gitboard")
	}
	if err := os.MkdirAll(trimmed, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: trimmed}, nil
}

// Dir reports the directory backing the store.
func (s *FileStore) Dir() string { return s.dir }

// Get reads a value by key.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.keyPath(key))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read store key: %w", err)
	}
	return string(data), nil
}

// Set writes a value under a key, replacing any prior value.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	path := s.keyPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return fmt.Errorf("write store key: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit store key: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete store key: %w", err)
	}
	return nil
}

func (s *FileStore) keyPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:]))
}
