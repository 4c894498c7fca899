package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jonwraymond/pagecache/observe"
)

// Default permissions for the cache directory and entries.
const (
	DefaultDirMode  fs.FileMode = 0o755
	DefaultFileMode fs.FileMode = 0o644
)

// FileStore keeps one file per key under a directory. Freshness is derived
// from the file modification time.
type FileStore struct {
	dir      string
	lifetime time.Duration
	dirMode  fs.FileMode
	fileMode fs.FileMode
	now      func() time.Time
	logger   observe.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithClock sets the time source used for freshness checks.
func WithClock(now func() time.Time) FileStoreOption {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDirMode sets the permissions the cache directory is created with.
func WithDirMode(mode fs.FileMode) FileStoreOption {
	return func(s *FileStore) {
		if mode != 0 {
			s.dirMode = mode
		}
	}
}

// WithFileMode sets the permissions of written entries.
func WithFileMode(mode fs.FileMode) FileStoreOption {
	return func(s *FileStore) {
		if mode != 0 {
			s.fileMode = mode
		}
	}
}

// WithStoreLogger sets the logger for read-path diagnostics.
func WithStoreLogger(logger observe.Logger) FileStoreOption {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// lazily on the first Put.
func NewFileStore(dir string, lifetime time.Duration, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		dir:      dir,
		lifetime: lifetime,
		dirMode:  DefaultDirMode,
		fileMode: DefaultFileMode,
		now:      time.Now,
		logger:   observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the cache directory.
func (s *FileStore) Dir() string { return s.dir }

// Lifetime returns the freshness window.
func (s *FileStore) Lifetime() time.Duration { return s.lifetime }

// Fetch reads the entry for key. Absent, stale and unreadable entries are
// misses. Stale entries are left in place.
func (s *FileStore) Fetch(ctx context.Context, key string) ([]byte, bool) {
	if ValidateKey(key) != nil {
		return nil, false
	}
	path := filepath.Join(s.dir, key)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	if s.now().Sub(info.ModTime()) > s.lifetime {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug(ctx, "cache entry unreadable",
			observe.Field{Key: "cache.key", Value: key},
			observe.Field{Key: "error", Value: err},
		)
		return nil, false
	}
	return data, true
}

// Put writes body for key through a temporary file and rename, so a
// concurrent Fetch sees either the old or the new entry.
func (s *FileStore) Put(_ context.Context, key string, body []byte) error {
	if err := ValidateKey(key); err != nil {
		return fmt.Errorf("cache: put %q: %w", key, err)
	}
	if err := s.ensureWritable(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return s.unwritable("create temp file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		cleanup()
		return s.unwritable("write entry", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return s.unwritable("sync entry", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return s.unwritable("close entry", err)
	}
	if err := os.Chmod(tmpName, s.fileMode); err != nil {
		cleanup()
		return s.unwritable("chmod entry", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, key)); err != nil {
		cleanup()
		return s.unwritable("rename entry", err)
	}
	return nil
}

// ensureWritable creates the directory if needed and adds the owner write
// bit when missing. Concurrent creation is not an error.
func (s *FileStore) ensureWritable() error {
	if err := os.MkdirAll(s.dir, s.dirMode); err != nil {
		return s.unwritable("create directory", err)
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return s.unwritable("stat directory", err)
	}
	if !info.IsDir() {
		return s.unwritable("stat directory", fmt.Errorf("%s is not a directory", s.dir))
	}
	if info.Mode().Perm()&0o200 == 0 {
		if err := os.Chmod(s.dir, s.dirMode|0o200); err != nil {
			return s.unwritable("chmod directory", err)
		}
	}
	return nil
}

func (s *FileStore) unwritable(op string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorageUnwritable, op, s.dir, err)
}

// Clear removes every regular file in the directory. The directory itself
// is kept; a missing directory is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cache: clear %s: %w", s.dir, err)
	}

	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cache: clear %s: %w", s.dir, errors.Join(errs...))
	}
	return nil
}

// Check reports whether the directory exists and is writable. It creates
// no directory and writes a short-lived probe file.
func (s *FileStore) Check(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	probe, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnwritable, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
