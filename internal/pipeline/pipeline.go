package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/astrolabium/internal/cache"
	"github.com/ppiankov/astrolabium/internal/catalogue"
	"github.com/ppiankov/astrolabium/internal/crossref"
	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/galaxy"
	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/metrics"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/names"
	"github.com/ppiankov/astrolabium/internal/parsers"
	"github.com/ppiankov/astrolabium/internal/util"
	"github.com/ppiankov/astrolabium/internal/worker"
)

// Pipeline orchestrates download, parsing, cross-referencing and naming
type Pipeline struct {
	config   *model.Config
	fetcher  *Fetcher
	registry *parsers.Registry
	cache    cache.Cache
	metrics  *metrics.Metrics
}

// NewPipeline creates a pipeline. A nil cache disables caching and nil
// metrics are not recorded.
func NewPipeline(cfg *model.Config, c cache.Cache, m *metrics.Metrics) *Pipeline {
	if c == nil {
		c = cache.Nop{}
	}
	return &Pipeline{
		config:   cfg,
		fetcher:  NewFetcher(cfg.HTTP, WithCache(c, cfg.Cache.TTL), WithMetrics(m)),
		registry: parsers.NewRegistry(),
		cache:    c,
		metrics:  m,
	}
}

// Fetcher returns the pipeline's HTTP client
func (p *Pipeline) Fetcher() *Fetcher {
	return p.fetcher
}

// Catalogues holds the three parsed and indexed catalogues
type Catalogues struct {
	Hipparcos *catalogue.Hipparcos
	WDS       *catalogue.WDS
	Orb6      *catalogue.Orb6
	Results   map[string]*parsers.Result
	digests   map[string]string
}

// Build is the outcome of Create
type Build struct {
	Galaxy   *galaxy.Galaxy
	Warnings []crossref.Warning
}

// CreateOptions controls Create
type CreateOptions struct {
	Rebuild   bool   // Ignore a cached intermediate
	NamesFile string // Extra local name list, consulted after the configured sources
}

// catalogueURL returns the download URL of a catalogue
func (p *Pipeline) catalogueURL(name string) (string, error) {
	switch name {
	case model.CatalogueHipparcos:
		return p.config.Catalogues.HipparcosURL, nil
	case model.CatalogueWDS:
		return p.config.Catalogues.WDSURL, nil
	case model.CatalogueOrb6:
		return p.config.Catalogues.Orb6URL, nil
	}
	return "", fmt.Errorf("%w: unknown catalogue %q", errors.ErrInvalidInput, name)
}

// LocalPath returns where a catalogue is stored in the data directory.
// Gzipped downloads are stored decompressed.
func (p *Pipeline) LocalPath(name string) (string, error) {
	rawURL, err := p.catalogueURL(name)
	if err != nil {
		return "", err
	}
	dir, err := util.ExpandHome(p.config.Catalogues.DataDir)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(path.Base(rawURL), ".gz")
	return filepath.Join(dir, base), nil
}

// Download fetches the three catalogues concurrently into the data
// directory and returns their paths by catalogue
func (p *Pipeline) Download(ctx context.Context) (map[string]string, error) {
	defer p.metrics.Stage("download")()

	catalogues := p.registry.Names()
	jobs := make([]worker.Job, len(catalogues))
	for i, name := range catalogues {
		jobs[i] = &downloadJob{pipeline: p, catalogue: name}
	}

	out := make(map[string]string, len(catalogues))
	collector := worker.NewResultCollector()
	for _, r := range worker.NewPool(ctx, len(jobs)).Run(jobs) {
		collector.Add(r)
		if res := r.(*downloadResult); res.err == nil {
			out[res.catalogue] = res.path
		}
	}
	if errs := collector.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// downloadJob fetches one catalogue into the data directory
type downloadJob struct {
	pipeline  *Pipeline
	catalogue string
}

type downloadResult struct {
	catalogue string
	path      string
	err       error
}

func (r *downloadResult) GetError() error {
	return r.err
}

func (j *downloadJob) Execute(ctx context.Context) worker.Result {
	dest, err := j.pipeline.download(ctx, j.catalogue)
	if err != nil {
		err = fmt.Errorf("download %s: %w", j.catalogue, err)
	}
	return &downloadResult{catalogue: j.catalogue, path: dest, err: err}
}

func (p *Pipeline) download(ctx context.Context, name string) (string, error) {
	rawURL, err := p.catalogueURL(name)
	if err != nil {
		return "", err
	}
	dest, err := p.LocalPath(name)
	if err != nil {
		return "", err
	}

	body, err := p.fetcher.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.WrapIO("mkdir", filepath.Dir(dest), err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", errors.WrapIO("write", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", errors.WrapIO("rename", dest, err)
	}

	logging.FromContext(ctx).Info().Str("catalogue", name).Str("path", dest).Int("bytes", len(body)).Msg("downloaded catalogue")
	return dest, nil
}

// Lines returns a catalogue's lines from the data directory, downloading
// it when no local copy exists
func (p *Pipeline) Lines(ctx context.Context, name string) ([]string, error) {
	local, err := p.LocalPath(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(local); err == nil {
		return ReadLines(local)
	}

	rawURL, err := p.catalogueURL(name)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug().Str("catalogue", name).Str("url", rawURL).Msg("no local copy, fetching")
	return p.fetcher.Lines(ctx, rawURL)
}

// ReadLines reads a local catalogue file, decompressing gzip
func ReadLines(file string) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.WrapIO("read", file, err)
	}
	body, err := gunzip(data, 0)
	if err != nil {
		return nil, err
	}
	return SplitLines(body)
}

// Parse parses a catalogue's lines, reusing cached entries when the
// content is unchanged
func (p *Pipeline) Parse(ctx context.Context, name string, lines []string) (*parsers.Result, error) {
	parser, err := p.registry.Get(name)
	if err != nil {
		return nil, err
	}
	name = parser.Name()

	key := cache.Key(cache.KindEntries, name, digest(lines))
	if result, ok := p.cachedEntries(ctx, name, key, len(lines)); ok {
		if p.config.Parse.Strict && len(result.Skipped) > 0 {
			return nil, result.Skipped[0]
		}
		return result, nil
	}

	defer p.metrics.Stage("parse_" + name)()
	result, err := parsers.ParseAll(ctx, parser, lines, parsers.Options{
		Workers:   p.config.Parse.Workers,
		ChunkSize: p.config.Parse.ChunkSize,
		Strict:    p.config.Parse.Strict,
	})
	if err != nil {
		return nil, err
	}
	p.metrics.Parsed(name, len(result.Entries), len(result.Skipped))

	if err := p.storeEntries(key, result); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("catalogue", name).Msg("caching entries failed")
	}
	return result, nil
}

// parseSnapshot is the cached outcome of parsing one catalogue. Skipped
// lines travel with the entries so strict runs and error listings see them.
type parseSnapshot struct {
	Entries json.RawMessage `json:"entries"`
	Skipped []skippedLine   `json:"skipped,omitempty"`
	Headers int             `json:"headers"`
}

type skippedLine struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (p *Pipeline) storeEntries(key string, result *parsers.Result) error {
	entries, err := json.Marshal(result.Entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	snap := parseSnapshot{Entries: entries, Headers: result.Headers}
	for _, pe := range result.Skipped {
		snap.Skipped = append(snap.Skipped, skippedLine{Line: pe.Line, Field: pe.Field, Message: pe.Message})
	}
	return cache.SetJSON(p.cache, key, snap, p.config.Cache.TTL)
}

func (p *Pipeline) cachedEntries(ctx context.Context, name, key string, lines int) (*parsers.Result, bool) {
	data, ok := p.cache.Get(key)
	p.metrics.CacheLookup(cache.KindEntries, ok)
	if !ok {
		return nil, false
	}

	log := logging.FromContext(ctx)
	var snap parseSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("catalogue", name).Msg("discarding cached entries")
		return nil, false
	}
	entries, err := DecodeEntries(name, snap.Entries)
	if err != nil {
		log.Warn().Err(err).Str("catalogue", name).Msg("discarding cached entries")
		return nil, false
	}

	result := &parsers.Result{Catalogue: name, Entries: entries, Headers: snap.Headers, Lines: lines}
	for _, sl := range snap.Skipped {
		result.Skipped = append(result.Skipped, &errors.ParseError{
			Catalogue: name,
			Line:      sl.Line,
			Field:     sl.Field,
			Message:   sl.Message,
		})
	}
	log.Debug().Str("catalogue", name).Int("entries", len(entries)).Int("skipped", len(result.Skipped)).Msg("reusing cached entries")
	return result, true
}

// DecodeEntries decodes a JSON array of a catalogue's entries
func DecodeEntries(name string, data []byte) ([]model.Entry, error) {
	switch name {
	case model.CatalogueHipparcos:
		return decodeAs[*model.HipparcosEntry](data)
	case model.CatalogueWDS:
		return decodeAs[*model.WDSEntry](data)
	case model.CatalogueOrb6:
		return decodeAs[*model.Orb6Entry](data)
	}
	return nil, fmt.Errorf("%w: unknown catalogue %q", errors.ErrInvalidInput, name)
}

func decodeAs[E model.Entry](data []byte) ([]model.Entry, error) {
	var typed []E
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	entries := make([]model.Entry, len(typed))
	for i, e := range typed {
		entries[i] = e
	}
	return entries, nil
}

// Index loads, parses and indexes the three catalogues. The catalogues
// are parsed concurrently; each parse is itself chunked over workers.
func (p *Pipeline) Index(ctx context.Context) (*Catalogues, error) {
	catalogues := p.registry.Names()
	results := make([]*parsers.Result, len(catalogues))
	digests := make([]string, len(catalogues))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range catalogues {
		g.Go(func() error {
			lines, err := p.Lines(gctx, name)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			result, err := p.Parse(gctx, name, lines)
			if err != nil {
				return fmt.Errorf("parse %s: %w", name, err)
			}
			results[i] = result
			digests[i] = digest(lines)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cats := &Catalogues{
		Results: make(map[string]*parsers.Result, len(catalogues)),
		digests: make(map[string]string, len(catalogues)),
	}
	for i, name := range catalogues {
		cats.Results[name] = results[i]
		cats.digests[name] = digests[i]
	}

	done := p.metrics.Stage("index")
	cats.Hipparcos = catalogue.NewHipparcos(parsers.Typed[*model.HipparcosEntry](cats.Results[model.CatalogueHipparcos].Entries))
	cats.WDS = catalogue.NewWDS(parsers.Typed[*model.WDSEntry](cats.Results[model.CatalogueWDS].Entries))
	cats.Orb6 = catalogue.NewOrb6(parsers.Typed[*model.Orb6Entry](cats.Results[model.CatalogueOrb6].Entries))
	done()

	logging.FromContext(ctx).Info().
		Int("hipparcos", cats.Hipparcos.Len()).
		Int("wds", cats.WDS.Len()).
		Int("orb6", cats.Orb6.Len()).
		Msg("indexed catalogues")
	return cats, nil
}

// Sources builds the configured name sources in priority order, followed
// by the local name files
func (p *Pipeline) Sources(extraFile string) ([]names.Source, error) {
	var sources []names.Source
	for _, name := range p.config.Names.Sources {
		switch name {
		case names.SourceIAU:
			if p.config.Names.IAUURL != "" {
				sources = append(sources, names.NewIAUSource(p.fetcher, p.config.Names.IAUURL))
			}
		case names.SourceWikidata:
			if p.config.Names.SPARQLURL != "" && p.config.Names.WikidataAPI != "" {
				sources = append(sources, names.NewWikidataClient(p.fetcher, p.config.Names))
			}
		case names.SourceCatalogue:
			// Placeholders need no lookup
		default:
			return nil, fmt.Errorf("%w: unknown name source %q", errors.ErrInvalidInput, name)
		}
	}
	for _, file := range []string{p.config.Names.File, extraFile} {
		if file == "" {
			continue
		}
		expanded, err := util.ExpandHome(file)
		if err != nil {
			return nil, err
		}
		sources = append(sources, names.NewFileSource(expanded))
	}
	return sources, nil
}

// Create builds the galaxy: the catalogues are indexed, systems are
// resolved (or taken from the cache) and named from the name sources.
// A failing name source degrades to placeholders, it does not fail the
// build.
func (p *Pipeline) Create(ctx context.Context, opts CreateOptions) (*Build, error) {
	log := logging.FromContext(ctx)

	cats, err := p.Index(ctx)
	if err != nil {
		return nil, err
	}

	sources, err := p.Sources(opts.NamesFile)
	if err != nil {
		return nil, err
	}

	creator := crossref.NewCreator(cats.Hipparcos, cats.WDS, cats.Orb6,
		crossref.WithLogger(log),
		crossref.WithResolver(names.NewResolver(p.config.Names.Sources)),
	)

	inter := p.intermediate(ctx, creator, cats, opts.Rebuild)

	ids := creator.LookupIdentifiers(inter.Systems)
	stop := p.metrics.Stage("names")
	list, err := names.Collect(ctx, sources, ids)
	stop()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Msg("some name sources failed, unresolved stars keep placeholders")
	}
	log.Info().Str("sources", names.SourceNames(sources)).Int("entities", len(list)).Msg("collected names")

	stop = p.metrics.Stage("create")
	g, warnings := creator.Create(list, inter)
	stop()

	for _, w := range warnings {
		p.metrics.Warning(string(w.Kind))
	}
	p.metrics.Systems(g.Count())

	return &Build{Galaxy: g, Warnings: warnings}, nil
}

// intermediate returns the resolved systems, from the cache unless rebuild
// is set
func (p *Pipeline) intermediate(ctx context.Context, creator *crossref.Creator, cats *Catalogues, rebuild bool) *crossref.Intermediate {
	log := logging.FromContext(ctx)
	key := cache.Key(cache.KindIntermediate,
		cats.digests[model.CatalogueHipparcos],
		cats.digests[model.CatalogueWDS],
		cats.digests[model.CatalogueOrb6],
	)

	if !rebuild {
		var cached crossref.Intermediate
		ok, err := cache.GetJSON(p.cache, key, &cached)
		if err != nil {
			log.Warn().Err(err).Msg("discarding cached systems")
		}
		p.metrics.CacheLookup(cache.KindIntermediate, ok)
		if ok {
			return &cached
		}
	}

	stop := p.metrics.Stage("resolve")
	inter := creator.Build()
	stop()

	if err := cache.SetJSON(p.cache, key, inter, p.config.Cache.TTL); err != nil {
		log.Warn().Err(err).Msg("caching systems failed")
	}
	return inter
}

// digest fingerprints a catalogue's content for cache keys
func digest(lines []string) string {
	h := sha256.New()
	for _, line := range lines {
		_, _ = h.Write([]byte(line))
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
