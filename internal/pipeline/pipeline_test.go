package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ppiankov/astrolabium/internal/cache"
	errs "github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/metrics"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/names"
)

var fixtures = map[string]string{
	"hip2.dat":         "../../testdata/hip2.sample.dat",
	"wdsweb_summ2.txt": "../../testdata/wds.sample.txt",
	"orb6orbits.txt":   "../../testdata/orb6.sample.txt",
	"hip2.dat.gz":      "../../testdata/hip2.sample.dat",
}

func testConfig(t *testing.T, dataDir string) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Catalogues.DataDir = dataDir
	cfg.Parse.Workers = 2
	cfg.Parse.ChunkSize = 3
	cfg.HTTP = testHTTPConfig()
	cfg.Names.Sources = []string{names.SourceCatalogue}
	cfg.Cache.TTL = time.Hour
	return &cfg
}

// seedDataDir copies the sample catalogues into dir under their download names
func seedDataDir(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{"hip2.dat", "wdsweb_summ2.txt", "orb6orbits.txt"} {
		data, err := os.ReadFile(fixtures[name])
		if err != nil {
			t.Fatalf("read fixture: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
}

func writeNames(t *testing.T, list names.List) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "names.json")
	var buf bytes.Buffer
	if err := list.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestLocalPath(t *testing.T) {
	p := NewPipeline(testConfig(t, "/data"), nil, nil)

	got, err := p.LocalPath(model.CatalogueHipparcos)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/data/hip2.dat" {
		t.Errorf("LocalPath(hipparcos) = %q", got)
	}
	if _, err := p.LocalPath("gaia"); err == nil {
		t.Error("Expected error for unknown catalogue")
	}
}

func TestCreate_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	seedDataDir(t, dir)

	m := metrics.New()
	p := NewPipeline(testConfig(t, dir), nil, m)
	namesFile := writeNames(t, names.List{
		{Name: "Sirius", Source: names.SourceIAU, Identifiers: map[string]string{"hipparcos": "32349"}},
	})

	build, err := p.Create(context.Background(), CreateOptions{NamesFile: namesFile})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if build.Galaxy.Count() != 7 {
		t.Errorf("Expected 7 systems, got %d", build.Galaxy.Count())
	}
	sys, ok := build.Galaxy.Select("Sirius")
	if !ok {
		t.Fatal("Expected Sirius to be selectable")
	}
	if sys.WDS != "06451-1643" || sys.Primary.Name != "Sirius" {
		t.Errorf("Unexpected Sirius system: %s primary %q", sys.WDS, sys.Primary.Name)
	}
	if len(build.Warnings) == 0 {
		t.Error("Expected cross-reference warnings from the sample catalogues")
	}

	textfile := filepath.Join(t.TempDir(), "astrolabium.prom")
	if err := m.WriteTextfile(textfile); err != nil {
		t.Fatal(err)
	}
	out, _ := os.ReadFile(textfile)
	if !strings.Contains(string(out), "astrolabium_galaxy_systems 7") {
		t.Errorf("Expected systems gauge in textfile:\n%s", out)
	}
}

func TestCreate_ReusesCache(t *testing.T) {
	dir := t.TempDir()
	seedDataDir(t, dir)

	mem := cache.NewMemoryCache(time.Hour, time.Hour)
	p := NewPipeline(testConfig(t, dir), mem, nil)

	first, err := p.Create(context.Background(), CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Three entry lists and one intermediate
	if mem.Len() != 4 {
		t.Errorf("Expected 4 cached values, got %d", mem.Len())
	}

	second, err := p.Create(context.Background(), CreateOptions{})
	if err != nil {
		t.Fatalf("Create (cached): %v", err)
	}
	rebuilt, err := p.Create(context.Background(), CreateOptions{Rebuild: true})
	if err != nil {
		t.Fatalf("Create (rebuild): %v", err)
	}

	want := strings.Join(first.Galaxy.Names(), "|")
	for label, b := range map[string]*Build{"cached": second, "rebuilt": rebuilt} {
		if got := strings.Join(b.Galaxy.Names(), "|"); got != want {
			t.Errorf("%s names = %s, want %s", label, got, want)
		}
		if len(b.Warnings) != len(first.Warnings) {
			t.Errorf("%s warnings = %d, want %d", label, len(b.Warnings), len(first.Warnings))
		}
	}
}

func catalogueServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fixture, ok := fixtures[filepath.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		data, err := os.ReadFile(fixture)
		if err != nil {
			t.Errorf("read fixture: %v", err)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".gz") {
			zw := gzip.NewWriter(w)
			_, _ = zw.Write(data)
			_ = zw.Close()
			return
		}
		_, _ = w.Write(data)
	}))
}

func TestDownload(t *testing.T) {
	var requests atomic.Int32
	server := catalogueServer(t, &requests)
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "catalogues")
	cfg := testConfig(t, dir)
	cfg.Catalogues.HipparcosURL = server.URL + "/I/311/hip2.dat.gz"
	cfg.Catalogues.WDSURL = server.URL + "/wds/wdsweb_summ2.txt"
	cfg.Catalogues.Orb6URL = server.URL + "/wds/orb6orbits.txt"

	p := NewPipeline(cfg, nil, nil)
	paths, err := p.Download(context.Background())
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 paths, got %v", paths)
	}
	if paths[model.CatalogueHipparcos] != filepath.Join(dir, "hip2.dat") {
		t.Errorf("Unexpected hipparcos path %q", paths[model.CatalogueHipparcos])
	}

	want, _ := os.ReadFile(fixtures["hip2.dat"])
	got, err := os.ReadFile(paths[model.CatalogueHipparcos])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("Expected the gzipped download to be stored decompressed")
	}

	// Local copies are read without further requests
	before := requests.Load()
	lines, err := p.Lines(context.Background(), model.CatalogueWDS)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) == 0 {
		t.Error("Expected WDS lines")
	}
	if requests.Load() != before {
		t.Errorf("Expected no requests for a local catalogue, got %d", requests.Load()-before)
	}
}

func TestDownload_MissingCatalogue(t *testing.T) {
	var requests atomic.Int32
	server := catalogueServer(t, &requests)
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "catalogues")
	cfg := testConfig(t, dir)
	cfg.Catalogues.HipparcosURL = server.URL + "/I/311/hip2.dat.gz"
	cfg.Catalogues.WDSURL = server.URL + "/wds/missing.txt"
	cfg.Catalogues.Orb6URL = server.URL + "/wds/orb6orbits.txt"

	_, err := NewPipeline(cfg, nil, nil).Download(context.Background())
	if err == nil {
		t.Fatal("Expected an error for a missing catalogue")
	}
	if !strings.Contains(err.Error(), "download wds") {
		t.Errorf("Error %q does not name the catalogue", err)
	}
}

func TestLines_FetchesWithoutLocalCopy(t *testing.T) {
	var requests atomic.Int32
	server := catalogueServer(t, &requests)
	defer server.Close()

	cfg := testConfig(t, t.TempDir())
	cfg.Catalogues.Orb6URL = server.URL + "/orb6orbits.txt"

	p := NewPipeline(cfg, nil, nil)
	lines, err := p.Lines(context.Background(), model.CatalogueOrb6)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	want, _ := ReadLines(fixtures["orb6orbits.txt"])
	if len(lines) != len(want) {
		t.Errorf("Expected %d lines, got %d", len(want), len(lines))
	}
}

func TestParse_CachedEntries(t *testing.T) {
	lines, err := ReadLines(fixtures["wdsweb_summ2.txt"])
	if err != nil {
		t.Fatal(err)
	}

	mem := cache.NewMemoryCache(time.Hour, time.Hour)
	p := NewPipeline(testConfig(t, t.TempDir()), mem, nil)

	parsed, err := p.Parse(context.Background(), "WDS", lines)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cached, err := p.Parse(context.Background(), model.CatalogueWDS, lines)
	if err != nil {
		t.Fatalf("Parse (cached): %v", err)
	}
	if len(cached.Entries) != len(parsed.Entries) {
		t.Fatalf("Expected %d cached entries, got %d", len(parsed.Entries), len(cached.Entries))
	}
	for i := range parsed.Entries {
		a, b := parsed.Entries[i].(*model.WDSEntry), cached.Entries[i].(*model.WDSEntry)
		if a.WDS != b.WDS || a.Pair() != b.Pair() {
			t.Errorf("entry %d: %s %s != %s %s", i, a.WDS, a.Pair(), b.WDS, b.Pair())
		}
	}
}

func TestParse_CachedSkippedLines(t *testing.T) {
	lines, err := ReadLines(fixtures["wdsweb_summ2.txt"])
	if err != nil {
		t.Fatal(err)
	}
	mem := cache.NewMemoryCache(time.Hour, time.Hour)

	lenient := NewPipeline(testConfig(t, t.TempDir()), mem, nil)
	first, err := lenient.Parse(context.Background(), model.CatalogueWDS, lines)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(first.Skipped) == 0 {
		t.Fatal("Expected the sample to contain a malformed line")
	}

	again, err := lenient.Parse(context.Background(), model.CatalogueWDS, lines)
	if err != nil {
		t.Fatalf("Parse (cached): %v", err)
	}
	if len(again.Skipped) != len(first.Skipped) || again.Headers != first.Headers {
		t.Fatalf("Cached parse reported %d skipped and %d headers, want %d and %d",
			len(again.Skipped), again.Headers, len(first.Skipped), first.Headers)
	}
	if again.Skipped[0].Line != first.Skipped[0].Line || again.Skipped[0].Message != first.Skipped[0].Message {
		t.Errorf("Cached skip %v differs from %v", again.Skipped[0], first.Skipped[0])
	}

	cfg := testConfig(t, t.TempDir())
	cfg.Parse.Strict = true
	strict := NewPipeline(cfg, mem, nil)
	_, err = strict.Parse(context.Background(), model.CatalogueWDS, lines)
	if !errors.Is(err, errs.ErrParse) {
		t.Fatalf("Expected a parse error from the cached strict run, got %v", err)
	}
	var pe *errs.ParseError
	if !errors.As(err, &pe) || pe.Line != first.Skipped[0].Line {
		t.Errorf("Expected line %d to fail, got %v", first.Skipped[0].Line, err)
	}
}

func TestDecodeEntries_UnknownCatalogue(t *testing.T) {
	if _, err := DecodeEntries("gaia", []byte("[]")); err == nil {
		t.Error("Expected error for unknown catalogue")
	}
	if _, err := DecodeEntries(model.CatalogueOrb6, []byte("{")); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestSources(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Names.Sources = []string{names.SourceIAU, names.SourceWikidata, names.SourceCatalogue}
	cfg.Names.File = "/etc/astrolabium/names.json"

	sources, err := NewPipeline(cfg, nil, nil).Sources("extra.json")
	if err != nil {
		t.Fatal(err)
	}
	if got := names.SourceNames(sources); got != "iau,wikidata,file,file" {
		t.Errorf("SourceNames = %q", got)
	}

	cfg.Names.Sources = []string{"simbad"}
	if _, err := NewPipeline(cfg, nil, nil).Sources(""); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestRenderBuild(t *testing.T) {
	dir := t.TempDir()
	seedDataDir(t, dir)
	build, err := NewPipeline(testConfig(t, dir), nil, nil).Create(context.Background(), CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "galaxy.yaml")
	if err := RenderBuild(nil, build, out); err != nil {
		t.Fatalf("RenderBuild: %v", err)
	}
	data, _ := os.ReadFile(out)
	for _, want := range []string{"count: 7", "wds: 06451-1643", "warnings:"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %q in YAML output", want)
		}
	}

	var buf bytes.Buffer
	if err := RenderBuild(&buf, build, ""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"count": 7`) {
		t.Errorf("Expected JSON output, got %.80s", buf.String())
	}

	buf.Reset()
	RenderSummary(&buf, build.Galaxy, build.Warnings)
	if !strings.Contains(buf.String(), "Systems: 7") || !strings.Contains(buf.String(), "ambiguity") {
		t.Errorf("Unexpected summary:\n%s", buf.String())
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]string{
		"galaxy.yaml": FormatYAML,
		"galaxy.YML":  FormatYAML,
		"galaxy.json": FormatJSON,
		"galaxy":      FormatJSON,
	}
	for file, want := range tests {
		if got := FormatFor(file); got != want {
			t.Errorf("FormatFor(%q) = %q, want %q", file, got, want)
		}
	}
	if err := Render(&bytes.Buffer{}, 1, "toml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
