package names

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/model"
)

// Getter fetches a URL body. The pipeline's Fetcher implements it with
// rate limiting, retries and caching.
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Source supplies named entities for catalogue identifiers
type Source interface {
	Name() string
	Lookup(ctx context.Context, ids []model.CatalogueID) (List, error)
}

// Filter keeps the entities sharing at least one identifier with ids. A
// nil ids slice keeps everything.
func Filter(list List, ids []model.CatalogueID) List {
	if ids == nil {
		return list
	}
	wanted := make(map[model.CatalogueID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out List
	for _, e := range list {
		for _, id := range e.IDs() {
			if wanted[id] {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// FileSource serves a JSON name list from disk
type FileSource struct {
	path string
}

// NewFileSource creates a source over a list written by List.WriteJSON
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the source name
func (s *FileSource) Name() string {
	return "file"
}

// Lookup reads the file and filters it to ids
func (s *FileSource) Lookup(_ context.Context, ids []model.CatalogueID) (List, error) {
	list, err := LoadFile(s.path)
	if err != nil {
		return nil, err
	}
	return Filter(list, ids), nil
}

// Collect queries every source concurrently and merges the lists in
// source order. A failing source is logged and skipped; its error is
// returned joined with the others alongside whatever was collected.
func Collect(ctx context.Context, sources []Source, ids []model.CatalogueID) (List, error) {
	log := logging.FromContext(ctx)
	lists := make([]List, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			list, err := src.Lookup(gctx, ids)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				log.Warn().Err(err).Str("source", src.Name()).Msg("name source failed")
				return nil
			}
			lists[i] = list
			log.Debug().Str("source", src.Name()).Int("entities", len(list)).Msg("collected names")
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Merge(lists...), errors.Join(errs...)
}

// SourceNames returns the names of sources, for logging
func SourceNames(sources []Source) string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Name()
	}
	return strings.Join(out, ",")
}
