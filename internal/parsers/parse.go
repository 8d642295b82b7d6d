package parsers

import (
	"context"
	"fmt"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/worker"
)

// DefaultChunkSize is the number of lines handed to one worker job
const DefaultChunkSize = 4096

// Options controls a whole-file parse
type Options struct {
	Workers   int  // Parallel chunk workers, at least 1
	ChunkSize int  // Lines per job; DefaultChunkSize when zero
	Strict    bool // Abort on the first bad line instead of skipping it
}

// Result is the outcome of parsing one catalogue file
type Result struct {
	Catalogue string
	Entries   []model.Entry        // Parsed entries in file order
	Skipped   []*errors.ParseError // Lines that failed, in file order
	Headers   int                  // Lines rejected by Skip
	Lines     int                  // Total lines seen
}

type numberedLine struct {
	n    int
	text string
}

type chunkResult struct {
	entries []model.Entry
	errs    []*errors.ParseError
}

// ParseAll validates p's schema, then parses lines in parallel chunks and
// replays the results in file order. A schema error is returned before any
// line is looked at. In strict mode the first failing line (in file order)
// is returned as the error.
func ParseAll(ctx context.Context, p Parser, lines []string, opts Options) (*Result, error) {
	if err := p.Schema().Validate(); err != nil {
		return nil, err
	}

	log := logging.FromContext(logging.WithCatalogue(ctx, p.Name()))

	result := &Result{Catalogue: p.Name(), Lines: len(lines)}

	data := make([]numberedLine, 0, len(lines))
	for i, line := range lines {
		if p.Skip(line) {
			result.Headers++
			continue
		}
		data = append(data, numberedLine{n: i + 1, text: line})
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	processor := worker.NewBatchProcessor(func(ctx context.Context, chunk []numberedLine) (chunkResult, error) {
		return parseChunk(p, chunk), nil
	}, opts.Workers)

	for _, r := range processor.Process(ctx, worker.Chunk(data, chunkSize)) {
		if r.Error != nil {
			return nil, fmt.Errorf("parse %s: %w", p.Name(), r.Error)
		}
		if opts.Strict && len(r.Value.errs) > 0 {
			return nil, r.Value.errs[0]
		}
		result.Entries = append(result.Entries, r.Value.entries...)
		result.Skipped = append(result.Skipped, r.Value.errs...)
	}

	for _, pe := range result.Skipped {
		log.Warn().
			Int("line", pe.Line).
			Str("field", pe.Field).
			Str("reason", pe.Message).
			Msg("skipping line")
	}

	log.Info().
		Int("entries", len(result.Entries)).
		Int("skipped", len(result.Skipped)).
		Int("headers", result.Headers).
		Msg("parsed catalogue")

	return result, nil
}

func parseChunk(p Parser, chunk []numberedLine) chunkResult {
	var out chunkResult
	for _, line := range chunk {
		entry, err := p.ParseLine(line.text, line.n)
		if err != nil {
			var pe *errors.ParseError
			if !errors.As(err, &pe) {
				pe = errors.NewParseError(p.Name(), line.n, "", err)
			}
			out.errs = append(out.errs, pe)
			continue
		}
		out.entries = append(out.entries, entry)
	}
	return out
}

// Typed collects entries of one concrete type
func Typed[E model.Entry](entries []model.Entry) []E {
	out := make([]E, 0, len(entries))
	for _, entry := range entries {
		if e, ok := entry.(E); ok {
			out = append(out, e)
		}
	}
	return out
}
