package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage is the durable home of photo files. Writes are not transactional;
// keys are unique per upload so concurrent writers never collide.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	URL(key string) string
	// Key maps a stored URL back to its storage key.
	Key(url string) (string, bool)
}

// LocalStorage keeps files in a directory served under urlPrefix.
type LocalStorage struct {
	baseDir   string
	urlPrefix string
}

func NewLocalStorage(baseDir, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{
		baseDir:   baseDir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}, nil
}

func (s *LocalStorage) Dir() string { return s.baseDir }

func (s *LocalStorage) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}

	absPath := filepath.Join(s.baseDir, key)
	dst, err := os.OpenFile(absPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		_ = os.Remove(absPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(absPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Remove treats an already missing file as removed.
func (s *LocalStorage) Remove(_ context.Context, key string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	err := os.Remove(filepath.Join(s.baseDir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) URL(key string) string {
	return s.urlPrefix + "/" + key
}

func (s *LocalStorage) Key(url string) (string, bool) {
	return keyFromURL(s.urlPrefix, url)
}

func keyFromURL(prefix, url string) (string, bool) {
	key, ok := strings.CutPrefix(url, prefix+"/")
	if !ok || !validKey(key) {
		return "", false
	}
	return key, true
}

// validKey rejects anything that could escape the storage root.
func validKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && filepath.Base(key) == key
}
