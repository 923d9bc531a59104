package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes blobs under a media directory
type LocalStore struct {
	root string
}

// NewLocalStore creates the media directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir %q: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Put writes r to root/key
func (s *LocalStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	target := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create blob %q: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write blob %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close blob %q: %w", key, err)
	}
	return strings.TrimPrefix(filepath.ToSlash(clean), "/"), nil
}

// URL returns the path the server exposes media under
func (s *LocalStore) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return "/media/" + ref
}

// Root returns the media directory
func (s *LocalStore) Root() string {
	return s.root
}
