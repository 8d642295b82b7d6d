// Package cache stores downloaded catalogue files, parsed entries and
// resolved systems between runs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/util"
)

// Kinds of cached values
const (
	KindRaw          = "raw"          // Downloaded bytes, keyed by URL
	KindEntries      = "entries"      // Parsed entries in map form, keyed by catalogue and content
	KindIntermediate = "intermediate" // Resolved systems before naming
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key of the given kind from its parts
func Key(kind string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "astrolabium-v1-" + kind + "-" + hex.EncodeToString(hash[:16])
}

// GetJSON decodes a cached JSON value into v. A missing key reports false
// with no error; an undecodable one is an error.
func GetJSON(c Cache, key string, v any) (bool, error) {
	data, ok := c.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v as JSON
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(key, data, ttl)
}

// New builds the cache described by cfg: memory in front of disk, or a
// no-op cache when disabled
func New(cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	dir, err := util.ExpandHome(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return NewLayeredCache(cfg.TTL, dir, cfg.TTL), nil
}

// Nop caches nothing
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }

func (Nop) Set(string, []byte, time.Duration) error { return nil }

func (Nop) Delete(string) error { return nil }

func (Nop) Clear() error { return nil }
