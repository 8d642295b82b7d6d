package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/astrolabium/internal/model"
)

func TestKey(t *testing.T) {
	a := Key(KindRaw, "https://www.astro.gsu.edu/wds/orb6/orb6orbits.txt")
	b := Key(KindRaw, "https://www.astro.gsu.edu/wds/orb6/orb6orbits.txt")
	c := Key(KindEntries, "https://www.astro.gsu.edu/wds/orb6/orb6orbits.txt")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "astrolabium-v1-raw-"))
	assert.NotEqual(t, Key(KindEntries, "ab", "c"), Key(KindEntries, "a", "bc"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("a", []byte("1"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok, "expired value returned")

	require.NoError(t, c.Set("b", []byte("2"), 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDiskCache(dir, time.Hour)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("k", []byte("payload"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	// Stored compressed under the key name
	raw, err := os.ReadFile(filepath.Join(dir, "k.gz"))
	require.NoError(t, err)
	assert.Equal(t, byte(0x1f), raw[0])

	now = now.Add(2 * time.Hour)
	_, ok = c.Get("k")
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "k.gz"))
	assert.True(t, os.IsNotExist(err), "expired file not removed")
}

func TestDiskCache_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDiskCache(t.TempDir(), 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("k", []byte("v"), 0))
	now = now.AddDate(10, 0, 0)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	// An unlimited layered cache hits on disk as well as in memory
	dir := t.TempDir()
	require.NoError(t, NewLayeredCache(0, dir, 0).Set("intermediate", []byte("systems"), 0))
	got, ok = NewLayeredCache(0, dir, 0).Get("intermediate")
	require.True(t, ok)
	assert.Equal(t, []byte("systems"), got)
}

func TestDiskCache_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.gz"), []byte("not gzip"), 0o600))
	_, ok := c.Get("bad")
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(dir, "bad.gz"))
	assert.True(t, os.IsNotExist(err))
}

func TestDiskCache_DeleteClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := NewDiskCache(dir, time.Hour)

	assert.NoError(t, c.Delete("missing"))
	require.NoError(t, c.Set("k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete("k"))
	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), time.Minute))
	require.NoError(t, c.Clear())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	first := NewLayeredCache(time.Minute, dir, time.Hour)
	require.NoError(t, first.Set("k", []byte("v"), 0))

	// A fresh process starts with an empty memory layer
	second := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok := second.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	mem := second.memory.(*MemoryCache)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, second.Delete("k"))
	_, ok = first.disk.Get("k")
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	key := Key(KindIntermediate, "x")

	var out []string
	ok, err := GetJSON(c, key, &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(c, key, []string{"14396-6050", "06451-1643"}, 0))
	ok, err = GetJSON(c, key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"14396-6050", "06451-1643"}, out)

	require.NoError(t, c.Set(key, []byte("{"), 0))
	_, err = GetJSON(c, key, &out)
	assert.Error(t, err)

	assert.Error(t, SetJSON(c, key, make(chan int), 0))
}

func TestNew(t *testing.T) {
	c, err := New(model.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)
	require.NoError(t, c.Set("k", []byte("v"), 0))
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.NoError(t, c.Delete("k"))
	assert.NoError(t, c.Clear())

	c, err = New(model.CacheConfig{Enabled: true, Dir: t.TempDir(), TTL: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &LayeredCache{}, c)
}
