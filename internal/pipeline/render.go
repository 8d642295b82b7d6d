package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/astrolabium/internal/crossref"
	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/galaxy"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// galaxyDocument is the rendered form of a build
type galaxyDocument struct {
	Count    int                `json:"count"`
	Systems  any                `json:"systems"`
	Warnings []crossref.Warning `json:"warnings,omitempty"`
}

// FormatFor picks the output format from a file extension
func FormatFor(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Render writes v as indented JSON or as block YAML. YAML is produced
// from the JSON form so both formats share field names and units.
func Render(w io.Writer, v any, format string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	switch format {
	case FormatJSON, "":
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("convert to yaml: %w", err)
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: unknown format %q", errors.ErrInvalidInput, format)
}

// blockStyle drops the flow style inherited from JSON
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = 0
	}
	if n.Kind == yaml.ScalarNode && n.Style == yaml.DoubleQuotedStyle {
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// RenderBuild writes the galaxy and its warnings to path, choosing the
// format from the extension. An empty path writes JSON to w.
func RenderBuild(w io.Writer, b *Build, file string) error {
	doc := galaxyDocument{Count: b.Galaxy.Count(), Systems: b.Galaxy.Systems(), Warnings: b.Warnings}
	if file == "" || file == "-" {
		return Render(w, doc, FormatJSON)
	}

	f, err := os.Create(file)
	if err != nil {
		return errors.WrapIO("create", file, err)
	}
	if err := Render(f, doc, FormatFor(file)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.WrapIO("close", file, err)
	}
	return nil
}

// RenderSummary prints system and warning counts
func RenderSummary(w io.Writer, g *galaxy.Galaxy, warnings []crossref.Warning) {
	stars := len(g.Stars())
	_, _ = fmt.Fprintf(w, "Systems: %d\n", g.Count())
	_, _ = fmt.Fprintf(w, "Stars:   %d\n", stars)

	counts := crossref.CountByKind(warnings)
	if len(counts) == 0 {
		_, _ = fmt.Fprintln(w, "Warnings: none")
		return
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	_, _ = fmt.Fprintf(w, "Warnings: %d\n", len(warnings))
	for _, k := range kinds {
		_, _ = fmt.Fprintf(w, "  %-18s %d\n", k, counts[crossref.WarningKind(k)])
	}
}
