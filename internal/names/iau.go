package names

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/model"
)

var wdsInCell = regexp.MustCompile(`\d{5}[+-]\d{4}`)

// iauColumns locates the fields of the WGSN table by header text
type iauColumns struct {
	name, designation, wds, component, hip, hd int
}

func locateColumns(headers []string) (iauColumns, bool) {
	cols := iauColumns{-1, -1, -1, -1, -1, -1}
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(h, "name") && cols.name < 0:
			cols.name = i
		case strings.HasPrefix(h, "designation") && cols.designation < 0:
			cols.designation = i
		case strings.Contains(h, "wds") && cols.wds < 0:
			cols.wds = i
		case (h == "#" || strings.HasPrefix(h, "comp")) && cols.component < 0:
			cols.component = i
		case h == "hip":
			cols.hip = i
		case h == "hd":
			cols.hd = i
		}
	}
	return cols, cols.name >= 0 && (cols.hip >= 0 || cols.hd >= 0 || cols.wds >= 0)
}

// ParseIAUTable reads the IAU WGSN star-name table from an HTML page. The
// first table carrying a name column and at least one catalogue column is
// used; placeholder cells ("_", "-") count as empty.
func ParseIAUTable(r io.Reader) (List, error) {
	doc, err := parseHTML(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse IAU page: %v", errors.ErrParse, err)
	}

	for _, table := range findAll(doc, func(n *html.Node) bool { return isElement(n, "table") }) {
		trs := rows(table)
		if len(trs) == 0 {
			continue
		}
		var headers []string
		for _, cell := range children(trs[0], "th", "td") {
			headers = append(headers, text(cell))
		}
		cols, ok := locateColumns(headers)
		if !ok {
			continue
		}

		var list List
		for _, tr := range trs[1:] {
			if e, ok := iauEntity(cols, children(tr, "td", "th")); ok {
				list = append(list, e)
			}
		}
		return list, nil
	}

	return nil, fmt.Errorf("%w: no star-name table in IAU page", errors.ErrParse)
}

func iauEntity(cols iauColumns, cells []*html.Node) (Entity, bool) {
	cell := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		v := text(cells[i])
		if v == "_" || v == "-" || v == "—" {
			return ""
		}
		return v
	}

	name := cell(cols.name)
	if name == "" {
		return Entity{}, false
	}

	e := Entity{
		ID:          cell(cols.designation),
		Name:        name,
		Source:      SourceIAU,
		Component:   cell(cols.component),
		Identifiers: make(map[string]string),
	}
	if e.ID == "" {
		e.ID = name
	}
	if hip := cell(cols.hip); hip != "" {
		e.Identifiers[model.CatalogueHipparcos] = hip
	}
	if hd := cell(cols.hd); hd != "" {
		e.Identifiers[model.CatalogueHD] = hd
	}
	if wds := wdsInCell.FindString(cell(cols.wds)); wds != "" {
		e.Identifiers[model.CatalogueWDS] = wds
	}
	return e, true
}

// IAUSource serves names from the IAU WGSN table page
type IAUSource struct {
	getter Getter
	url    string
}

// NewIAUSource creates a source reading the table at url
func NewIAUSource(getter Getter, url string) *IAUSource {
	return &IAUSource{getter: getter, url: url}
}

// Name returns the source name
func (s *IAUSource) Name() string {
	return SourceIAU
}

// Lookup fetches the table and keeps entities sharing an identifier with
// ids; nil ids keeps every entity
func (s *IAUSource) Lookup(ctx context.Context, ids []model.CatalogueID) (List, error) {
	body, err := s.getter.Get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch IAU table: %w", err)
	}

	list, err := ParseIAUTable(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	filtered := Filter(list, ids)
	logging.FromContext(ctx).Debug().
		Int("table", len(list)).
		Int("matched", len(filtered)).
		Msg("read IAU names")
	return filtered, nil
}
