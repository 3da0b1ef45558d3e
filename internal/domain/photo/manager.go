package photo

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"rentals/internal/pkg/logger"
	"rentals/internal/pkg/metrics"
)

const (
	DefaultMaxBytes = 5 * 1024 * 1024
	DefaultMaxFiles = 10
)

var allowedMediaTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// File is an already received upload: bytes, declared media type, original name.
type File struct {
	OriginalName string
	MediaType    string
	Size         int64
	Content      io.Reader
}

type Limits struct {
	MaxBytes int64
	MaxFiles int
}

// Rows is the slice of the listing store the manager needs. Implementations
// are bound to the caller's transaction.
type Rows interface {
	InsertPhotos(ctx context.Context, propertyID int64, urls []string) error
	DeletePhotos(ctx context.Context, propertyID int64) ([]string, error)
}

// Manager keeps photo files and Photo rows in lockstep using
// stage (files) -> commit (rows, transactional) -> compensate on failure.
type Manager struct {
	storage Storage
	limits  Limits
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewManager(storage Storage, limits Limits, log logger.Logger, m *metrics.Metrics) *Manager {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = DefaultMaxFiles
	}
	return &Manager{storage: storage, limits: limits, log: log, metrics: m}
}

type StoredRef struct {
	Key string
	URL string
}

// Batch is the set of files written by one Stage call.
type Batch struct {
	m        *Manager
	refs     []StoredRef
	released bool
}

// Stage validates and writes files under generated unique names.
// On error the returned batch still holds the files written before the
// rejected one; the caller must Rollback it.
func (m *Manager) Stage(ctx context.Context, files []File) (*Batch, error) {
	b := &Batch{m: m}
	if len(files) > m.limits.MaxFiles {
		return b, fmt.Errorf("%w: %d files, at most %d per request", ErrPayloadTooLarge, len(files), m.limits.MaxFiles)
	}

	for i, f := range files {
		mediaType, ext, err := m.check(f)
		if err != nil {
			return b, fmt.Errorf("photo %d (%s): %w", i+1, f.OriginalName, err)
		}

		key := fmt.Sprintf("%s_%s%s", uuid.New().String(), sanitizeName(f.OriginalName), ext)
		body := &cappedReader{r: f.Content, remaining: m.limits.MaxBytes}
		if err := m.storage.Save(ctx, key, body, f.Size, mediaType); err != nil {
			if body.exceeded {
				_ = m.storage.Remove(context.WithoutCancel(ctx), key)
				return b, fmt.Errorf("photo %d (%s): %w", i+1, f.OriginalName, ErrPayloadTooLarge)
			}
			return b, fmt.Errorf("store photo %d (%s): %w", i+1, f.OriginalName, err)
		}
		b.refs = append(b.refs, StoredRef{Key: key, URL: m.storage.URL(key)})
	}
	return b, nil
}

func (m *Manager) check(f File) (mediaType, ext string, err error) {
	mediaType = strings.ToLower(strings.TrimSpace(strings.Split(f.MediaType, ";")[0]))
	ext, ok := allowedMediaTypes[mediaType]
	if !ok {
		return "", "", ErrUnsupportedMediaType
	}
	if f.Size > m.limits.MaxBytes {
		return "", "", ErrPayloadTooLarge
	}
	if f.Size == 0 || f.Content == nil {
		return "", "", ErrEmptyFile
	}
	return mediaType, ext, nil
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.refs)
}

func (b *Batch) URLs() []string {
	if b == nil {
		return nil
	}
	urls := make([]string, 0, len(b.refs))
	for _, r := range b.refs {
		urls = append(urls, r.URL)
	}
	return urls
}

// CommitRows inserts Photo rows for every staged file.
func (b *Batch) CommitRows(ctx context.Context, rows Rows, propertyID int64) error {
	if b.Len() == 0 {
		return nil
	}
	return rows.InsertPhotos(ctx, propertyID, b.URLs())
}

// ReplaceRows swaps the property's photo rows for the staged set and returns
// the URLs of the rows it removed. Their files must only be removed after commit.
func (b *Batch) ReplaceRows(ctx context.Context, rows Rows, propertyID int64) ([]string, error) {
	previous, err := rows.DeletePhotos(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := b.CommitRows(ctx, rows, propertyID); err != nil {
		return nil, err
	}
	return previous, nil
}

// Rollback deletes every staged file. Failures are logged and never returned
// so they cannot mask the error that triggered the rollback.
func (b *Batch) Rollback(ctx context.Context) {
	if b == nil || b.released {
		return
	}
	b.released = true

	ctx = context.WithoutCancel(ctx)
	for _, ref := range b.refs {
		if err := b.m.storage.Remove(ctx, ref.Key); err != nil {
			b.m.log.Errorw("compensating photo delete failed", "key", ref.Key, "error", err)
			b.m.metrics.ObserveCleanup("compensate", false)
			continue
		}
		b.m.metrics.ObserveCleanup("compensate", true)
	}
}

// Release marks the batch as committed; a later Rollback is a no-op.
func (b *Batch) Release() {
	if b != nil {
		b.released = true
	}
}

// DeleteRows removes every Photo row of the property inside the caller's
// transaction and returns their URLs for RemoveFiles.
func (m *Manager) DeleteRows(ctx context.Context, rows Rows, propertyID int64) ([]string, error) {
	return rows.DeletePhotos(ctx, propertyID)
}

// RemoveFiles is the post-commit cleanup. Rows are the source of truth, so a
// file that cannot be removed is logged and left behind.
func (m *Manager) RemoveFiles(ctx context.Context, urls []string) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range urls {
		key, ok := m.storage.Key(u)
		if !ok {
			m.log.Warnw("photo url is outside managed storage, skipping", "url", u)
			continue
		}
		if err := m.storage.Remove(ctx, key); err != nil {
			m.log.Errorw("photo file cleanup failed", "key", key, "error", err)
			m.metrics.ObserveCleanup("post_commit", false)
			continue
		}
		m.metrics.ObserveCleanup("post_commit", true)
	}
}

type cappedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.exceeded {
		return 0, ErrPayloadTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		c.exceeded = true
		return n, ErrPayloadTooLarge
	}
	return n, err
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" || name == "_" {
		return "photo"
	}
	return name
}
