package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/astrolabium/internal/crossref"
	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/galaxy"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/units"
)

func sampleGalaxy() *galaxy.Galaxy {
	mag := 11.13
	return galaxy.New([]*model.StarSystem{
		{
			Name:       "Alpha Centauri",
			WDS:        "14396-6050",
			Components: []string{"A", "B", "C"},
			Primary: &model.Star{Name: "Rigil Kentaurus", Component: "A",
				Identifiers: map[string]string{"hipparcos": "71683"}},
			Orbiters: []*model.Star{
				{Name: "Toliman", Component: "B", Mass: units.Ptr(0.9373, units.SolarMass)},
				{Name: "Proxima Centauri", Component: "C", Magnitude: &mag},
			},
		},
		{
			Name:       "06451-1643",
			WDS:        "06451-1643",
			Components: []string{"A", "B"},
			Primary:    &model.Star{Name: "Sirius", Component: "A"},
			Orbiters:   []*model.Star{{Name: "06451-1643 B", Component: "B", SpectralType: "DA"}},
		},
	})
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "galaxy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	warnings := []crossref.Warning{
		{Kind: crossref.WarnAmbiguity, Key: "17465+2743", Message: "AB is a subset of AB,C"},
		{Kind: crossref.WarnUnmatchedOrbit, Key: "12000+6750", Message: "no system"},
	}
	require.NoError(t, s.Save(ctx, sampleGalaxy(), warnings))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	g, got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Centauri", "06451-1643"}, g.Names())
	assert.Equal(t, warnings, got)

	sys, ok := g.Select("Toliman")
	require.True(t, ok)
	require.Len(t, sys.Orbiters, 2)
	require.NotNil(t, sys.Orbiters[0].Mass)
	assert.InDelta(t, 0.9373, sys.Orbiters[0].Mass.Value, 1e-9)
	assert.Equal(t, "71683", sys.Primary.ID("hipparcos"))
}

func TestStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.Save(ctx, sampleGalaxy(), nil))
	require.NoError(t, s.Save(ctx, galaxy.New(sampleGalaxy().Systems()[1:]), nil))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "Toliman")
	assert.True(t, errors.IsNotFound(err))
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	require.NoError(t, s.Save(ctx, sampleGalaxy(), nil))

	tests := []struct {
		query string
		wds   string
	}{
		{"Alpha Centauri", "14396-6050"},
		{"14396-6050", "14396-6050"},
		{"Proxima Centauri", "14396-6050"},
		{"Sirius", "06451-1643"},
		{"06451-1643 B", "06451-1643"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			sys, err := s.Get(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wds, sys.WDS)
		})
	}

	_, err := s.Get(ctx, "Vega")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "galaxy.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleGalaxy(), nil))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Equal(t, path, s.Path())

	g, warnings, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Count())
	assert.Empty(t, warnings)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
