package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// ErrMiss is returned by Load when no artifact has been persisted yet.
var ErrMiss = errors.New("cache miss")

// CorruptError reports an artifact that exists but cannot be used. It is
// fatal: recomputing silently could hide a storage problem.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt cache artifact '%s': %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// validator is implemented by artifacts that can check their own invariants.
type validator interface {
	Validate() error
}

// Cache persists named artifacts in a directory with a single codec.
type Cache struct {
	dir   string
	codec Codec

	// OnLookup, when set, is called after every lookup with its outcome.
	OnLookup func(name string, hit bool)
}

// New creates a cache rooted at dir.
func New(dir string, codec Codec) *Cache {
	return &Cache{dir: dir, codec: codec}
}

// Path returns the file an artifact is stored in.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.dir, name+c.codec.Extension())
}

// GetOrCompute returns the artifact stored under name, or runs produce,
// persists its result and returns it. A nil cache always runs produce.
func GetOrCompute[T any](c *Cache, name string, produce func() (T, error)) (T, error) {
	if c == nil {
		return produce()
	}

	v, err := Load[T](c, name)
	if err == nil {
		c.observe(name, true)
		log.WithField("artifact", c.Path(name)).Info("Cache found, loading artifact")
		return v, nil
	}
	if !errors.Is(err, ErrMiss) {
		var zero T
		return zero, err
	}

	c.observe(name, false)
	log.WithField("artifact", c.Path(name)).Info("No cached artifact, computing")
	v, err = produce()
	if err != nil {
		var zero T
		return zero, err
	}
	if err := Store(c, name, v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func (c *Cache) observe(name string, hit bool) {
	if c.OnLookup != nil {
		c.OnLookup(name, hit)
	}
}

// Load reads the artifact stored under name. It returns ErrMiss when the
// artifact does not exist and a *CorruptError when it cannot be decoded.
func Load[T any](c *Cache, name string) (T, error) {
	var v T
	path := c.Path(name)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, ErrMiss
	}
	if err != nil {
		return v, fmt.Errorf("failed to open cache artifact '%s': %w", path, err)
	}
	defer f.Close()

	if err := c.codec.Decode(bufio.NewReader(f), &v); err != nil {
		return v, &CorruptError{Path: path, Err: err}
	}
	if val, ok := any(v).(validator); ok {
		if err := val.Validate(); err != nil {
			return v, &CorruptError{Path: path, Err: err}
		}
	}
	return v, nil
}

// Store persists v under name. The artifact is written to a temporary file in
// the cache directory and renamed into place, so an interrupted write never
// leaves a partial artifact behind.
func Store[T any](c *Cache, name string, v T) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := c.Path(name)

	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	w := bufio.NewWriterSize(tmp, 1<<20)
	if err := c.codec.Encode(w, v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode artifact '%s': %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact '%s': %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact '%s': %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact '%s': %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to publish artifact '%s': %w", path, err)
	}

	log.WithField("artifact", path).Info("Wrote cache artifact")
	return nil
}
