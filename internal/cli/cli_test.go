package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/astrolabium/internal/model"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "astrolabium", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig().Catalogues, cfg.Catalogues)
	assert.Equal(t, []string{"iau", "wikidata", "catalogue"}, cfg.Names.Sources)

	assert.Error(t, writeDefaultConfig(path), "existing config overwritten")
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parse:
  workers: 8
http:
  timeout: 2m
names:
  sources: [wikidata, catalogue]
`), 0o600))

	t.Setenv("ASTROLABIUM_CACHE_ENABLED", "false")
	t.Setenv("ASTROLABIUM_PARSE_CHUNK_SIZE", "128")

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
	initConfig()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Parse.Workers)
	assert.Equal(t, 128, cfg.Parse.ChunkSize)
	assert.Equal(t, 2*time.Minute, cfg.HTTP.Timeout)
	assert.Equal(t, []string{"wikidata", "catalogue"}, cfg.Names.Sources)
	assert.False(t, cfg.Cache.Enabled)
	// Untouched keys keep their defaults
	assert.Equal(t, model.DefaultConfig().Catalogues.WDSURL, cfg.Catalogues.WDSURL)
	assert.Equal(t, "Q537199", cfg.Names.CatalogueQIDs[model.CatalogueHipparcos])
}

func TestReadNames(t *testing.T) {
	file := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(file, []byte("Sirius\n\n# comment\n  14396-6050 C  \n"), 0o600))

	got, err := readNames(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sirius", "14396-6050 C"}, got)

	_, err = readNames(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Alpha Centauri": "Alpha-Centauri",
		"14396-6050":     "14396-6050",
		"a/b:c":          "a_b_c",
		"  ":             "system",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
