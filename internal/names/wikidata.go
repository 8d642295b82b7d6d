package names

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/units"
	"github.com/ppiankov/astrolabium/internal/worker"
)

// Wikidata properties and items
const (
	propCatalogueCode = "P528"
	propCatalogue     = "P972"
	propMass          = "P2067"
	itemSolarMass     = "Q180892"

	// wbgetentities accepts at most 50 ids per request
	maxEntityBatch = 50
)

// WikidataClient resolves catalogue numbers to Wikidata items and reads
// their English labels and masses
type WikidataClient struct {
	getter     Getter
	sparqlURL  string
	apiURL     string
	batchSize  int
	catalogues map[string]string // catalogue -> item QID
}

// NewWikidataClient creates a client from the names configuration
func NewWikidataClient(getter Getter, cfg model.NamesConfig) *WikidataClient {
	batch := cfg.BatchSize
	if batch <= 0 || batch > maxEntityBatch {
		batch = maxEntityBatch
	}
	catalogues := make(map[string]string, len(cfg.CatalogueQIDs))
	for cat, qid := range cfg.CatalogueQIDs {
		catalogues[cat] = qid
	}
	return &WikidataClient{
		getter:     getter,
		sparqlURL:  cfg.SPARQLURL,
		apiURL:     cfg.WikidataAPI,
		batchSize:  batch,
		catalogues: catalogues,
	}
}

// Name returns the source name
func (w *WikidataClient) Name() string {
	return SourceWikidata
}

// QIDs maps catalogue numbers to the items carrying them
func (w *WikidataClient) QIDs(ctx context.Context, catalogue string, codes []string) (map[string]string, error) {
	catQID, ok := w.catalogues[catalogue]
	if !ok {
		return nil, fmt.Errorf("%w: no Wikidata item for catalogue %q", errors.ErrInvalidInput, catalogue)
	}

	out := make(map[string]string, len(codes))
	for _, batch := range worker.Chunk(codes, w.batchSize) {
		body, err := w.getter.Get(ctx, w.sparqlURL+"?"+url.Values{
			"format": {"json"},
			"query":  {catalogueQuery(catQID, batch)},
		}.Encode())
		if err != nil {
			return nil, fmt.Errorf("query %s numbers: %w", catalogue, err)
		}
		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("%w: invalid SPARQL response", errors.ErrParse)
		}

		gjson.GetBytes(body, "results.bindings").ForEach(func(_, b gjson.Result) bool {
			code := b.Get("code.value").String()
			if _, dup := out[code]; !dup {
				out[code] = entityID(b.Get("item.value").String())
			}
			return true
		})
	}
	return out, nil
}

func catalogueQuery(catQID string, codes []string) string {
	quoted := make([]string, len(codes))
	for i, c := range codes {
		quoted[i] = strconv.Quote(c)
	}
	return fmt.Sprintf(`SELECT ?item ?code WHERE {
  VALUES ?code { %s }
  ?item p:%s ?stmt .
  ?stmt ps:%s ?code ;
        pq:%s wd:%s .
}`, strings.Join(quoted, " "), propCatalogueCode, propCatalogueCode, propCatalogue, catQID)
}

// entityID strips the concept URI prefix from an item
func entityID(uri string) string {
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// Entities reads items in batches and returns them in qids order.
// Missing items and items without an English label are skipped.
func (w *WikidataClient) Entities(ctx context.Context, qids []string) (List, error) {
	byQID := make(map[string]Entity, len(qids))
	for _, batch := range worker.Chunk(qids, w.batchSize) {
		body, err := w.getter.Get(ctx, w.apiURL+"?"+url.Values{
			"action":    {"wbgetentities"},
			"format":    {"json"},
			"props":     {"labels|claims"},
			"languages": {"en"},
			"ids":       {strings.Join(batch, "|")},
		}.Encode())
		if err != nil {
			return nil, fmt.Errorf("get entities: %w", err)
		}
		if msg := gjson.GetBytes(body, "error.info"); msg.Exists() {
			return nil, &errors.APIError{Service: "wikidata", StatusCode: 200, Message: msg.String()}
		}

		gjson.GetBytes(body, "entities").ForEach(func(key, v gjson.Result) bool {
			if v.Get("missing").Exists() {
				return true
			}
			if e, ok := w.entity(key.String(), v); ok {
				byQID[e.ID] = e
			}
			return true
		})
	}

	var list List
	for _, qid := range qids {
		if e, ok := byQID[qid]; ok {
			list = append(list, e)
		}
	}
	return list, nil
}

func (w *WikidataClient) entity(qid string, v gjson.Result) (Entity, bool) {
	label := v.Get("labels.en.value").String()
	if label == "" {
		return Entity{}, false
	}

	catalogueOf := make(map[string]string, len(w.catalogues))
	for cat, q := range w.catalogues {
		catalogueOf[q] = cat
	}

	e := Entity{ID: qid, Name: label, Source: SourceWikidata, Identifiers: make(map[string]string)}
	v.Get("claims." + propCatalogueCode).ForEach(func(_, claim gjson.Result) bool {
		code := claim.Get("mainsnak.datavalue.value").String()
		cat := catalogueOf[claim.Get("qualifiers."+propCatalogue+".0.datavalue.value.id").String()]
		if code != "" && cat != "" && e.Identifiers[cat] == "" {
			e.Identifiers[cat] = code
		}
		return true
	})

	mass := v.Get("claims." + propMass + ".0.mainsnak.datavalue.value")
	if entityID(mass.Get("unit").String()) == itemSolarMass {
		if m, err := strconv.ParseFloat(strings.TrimPrefix(mass.Get("amount").String(), "+"), 64); err == nil {
			e.Mass = units.Ptr(m, units.SolarMass)
		}
	}
	return e, true
}

// Search returns the items whose label matches name, best match first
func (w *WikidataClient) Search(ctx context.Context, name string) ([]string, error) {
	body, err := w.getter.Get(ctx, w.apiURL+"?"+url.Values{
		"action":   {"wbsearchentities"},
		"format":   {"json"},
		"language": {"en"},
		"type":     {"item"},
		"search":   {name},
	}.Encode())
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", name, err)
	}

	var qids []string
	for _, r := range gjson.GetBytes(body, "search.#.id").Array() {
		qids = append(qids, r.String())
	}
	return qids, nil
}

// Lookup resolves ids in every catalogue the client knows an item for and
// returns the labelled entities
func (w *WikidataClient) Lookup(ctx context.Context, ids []model.CatalogueID) (List, error) {
	log := logging.FromContext(ctx)

	codes := make(map[string][]string)
	for _, id := range ids {
		if _, ok := w.catalogues[id.Catalogue]; ok {
			codes[id.Catalogue] = append(codes[id.Catalogue], id.ID)
		}
	}
	cats := make([]string, 0, len(codes))
	for cat := range codes {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	seen := make(map[string]bool)
	var qids []string
	for _, cat := range cats {
		found, err := w.QIDs(ctx, cat, codes[cat])
		if err != nil {
			return nil, err
		}
		for _, code := range codes[cat] {
			if q, ok := found[code]; ok && !seen[q] {
				seen[q] = true
				qids = append(qids, q)
			}
		}
		log.Debug().Str("catalogue", cat).Int("codes", len(codes[cat])).Int("items", len(found)).Msg("resolved Wikidata items")
	}

	return w.Entities(ctx, qids)
}
