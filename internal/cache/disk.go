package cache

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ppiankov/astrolabium/internal/errors"
)

// noExpiry marks a file that is kept until deleted
const noExpiry = "never"

// DiskCache keeps gzip-compressed values on disk. The expiry time travels
// in the gzip header comment, so no sidecar file is needed.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a new disk cache
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}
}

// Get retrieves a value; expired or unreadable files are removed
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = os.Remove(path)
		return nil, false
	}
	defer func() { _ = zr.Close() }()

	if zr.Comment != noExpiry {
		expires, err := time.Parse(time.RFC3339Nano, zr.Comment)
		if err != nil || c.now().After(expires) {
			_ = os.Remove(path)
			return nil, false
		}
	}

	data, err := io.ReadAll(zr)
	if err != nil {
		_ = os.Remove(path)
		return nil, false
	}
	return data, true
}

// Set stores a value; a zero ttl uses the cache default. A ttl that is
// still not positive never expires, as in MemoryCache. The file is
// written beside its final name and renamed into place.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Comment = noExpiry
	if ttl > 0 {
		zw.Comment = c.now().Add(ttl).UTC().Format(time.RFC3339Nano)
	}
	zw.Name = key
	if _, err := zw.Write(value); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return errors.WrapIO("create cache dir", c.dir, err)
	}

	path := c.path(key)
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return errors.WrapIO("create", c.dir, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.WrapIO("write", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.WrapIO("close", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.WrapIO("rename", path, err)
	}
	return nil
}

// Delete removes a value; deleting a missing key is not an error
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("delete", c.path(key), err)
	}
	return nil
}

// Clear removes all cached files
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// path generates the file path for a cache key
func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+".gz")
}
