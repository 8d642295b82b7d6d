package catalogue_test

import (
	"bufio"
	"context"
	"os"
	"testing"

	"github.com/ppiankov/astrolabium/internal/catalogue"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/parsers"
	"github.com/ppiankov/astrolabium/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alphaCentauri = "14396-6050"

func load[E model.Entry](t *testing.T, p parsers.Parser, path string) []E {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())

	res, err := parsers.ParseAll(context.Background(), p, lines, parsers.Options{Workers: 2})
	require.NoError(t, err)
	return parsers.Typed[E](res.Entries)
}

func TestHipparcos_Select(t *testing.T) {
	idx := catalogue.NewHipparcos(load[*model.HipparcosEntry](t, parsers.NewHipparcosParser(), "../../testdata/hip2.sample.dat"))

	star, ok := idx.Select("71683")
	require.True(t, ok)
	assert.InDelta(t, 3.8383352142, star.RA.Value, 1e-12)
	assert.InDelta(t, -1.061773585, star.DE.Value, 1e-12)
	assert.Equal(t, units.New(754.81, units.MilliArcsecond), star.Plx)

	_, ok = idx.Select("99999")
	assert.False(t, ok)
	assert.Equal(t, 6, idx.Len())
	assert.Equal(t, "hipparcos", idx.Name())
}

func TestWDS_Select(t *testing.T) {
	idx := catalogue.NewWDS(load[*model.WDSEntry](t, parsers.NewWDSParser(), "../../testdata/wds.sample.txt"))

	entry, ok := idx.Select(alphaCentauri)
	require.True(t, ok)
	assert.Equal(t, "RHD   1", entry.Disc)
	assert.Equal(t, "AB", entry.Comp)
	assert.Equal(t, "G2V+K1V", *entry.ST)

	assert.Len(t, idx.SelectEntries([]string{alphaCentauri}), 3)
	assert.Empty(t, idx.SelectEntries([]string{"99999+9999"}))
}

func TestWDS_SelectEntries_FileOrder(t *testing.T) {
	idx := catalogue.NewWDS(load[*model.WDSEntry](t, parsers.NewWDSParser(), "../../testdata/wds.sample.txt"))

	got := idx.SelectEntries([]string{alphaCentauri, "00002+4119", alphaCentauri, "99999+9999"})

	var pairs []string
	for _, e := range got {
		pairs = append(pairs, e.Key()+" "+e.Disc)
	}
	assert.Equal(t, []string{
		"00002+4119 TDS1235",
		alphaCentauri + " RHD   1",
		alphaCentauri + " HDO 226",
		alphaCentauri + " LDS 494",
	}, pairs)
}

func TestWDS_SelectEntriesGrouped(t *testing.T) {
	idx := catalogue.NewWDS(load[*model.WDSEntry](t, parsers.NewWDSParser(), "../../testdata/wds.sample.txt"))

	groups := idx.SelectEntriesGrouped([]string{alphaCentauri, "20000+0000", "99999+9999"})
	require.Len(t, groups[alphaCentauri], 2)
	assert.Equal(t, "AB", groups[alphaCentauri][0].Key)
	assert.Len(t, groups[alphaCentauri][0].Entries, 2)
	assert.Equal(t, "AC", groups[alphaCentauri][1].Key)

	require.Len(t, groups["20000+0000"], 1)
	assert.Equal(t, "AB", groups["20000+0000"][0].Key, "blank components group as AB")
	assert.NotContains(t, groups, "99999+9999")
}

func TestWDS_KeysInFileOrder(t *testing.T) {
	idx := catalogue.NewWDS(load[*model.WDSEntry](t, parsers.NewWDSParser(), "../../testdata/wds.sample.txt"))

	assert.Equal(t, []string{
		"00002+4119", "00014+3937", "05595+4457", "06451-1643", alphaCentauri, "17465+2743", "20000+0000",
	}, idx.Keys())
	assert.Equal(t, 10, idx.Len())
	assert.Len(t, idx.All(), 10)
}

func TestOrb6_Select(t *testing.T) {
	idx := catalogue.NewOrb6(load[*model.Orb6Entry](t, parsers.NewOrb6Parser(), "../../testdata/orb6.sample.txt"))

	entry, ok := idx.Select("05595+4457")
	require.True(t, ok)
	assert.Equal(t, 1992, *entry.Last)
	assert.Equal(t, units.New(3.3, units.MilliArcsecond), entry.A)
	assert.Equal(t, units.Ptr(0, units.Degree), entry.Lpa)

	sirius := idx.SelectAll("06451-1643")
	require.Len(t, sirius, 2)
	assert.Equal(t, 1, sirius[0].Grade)

	groups := idx.SelectEntriesGrouped([]string{"06451-1643"})
	require.Len(t, groups["06451-1643"], 1)
	assert.Equal(t, "AGC   1", groups["06451-1643"][0].Key)
}
