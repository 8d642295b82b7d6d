package parsers

import (
	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/schema"
	"github.com/ppiankov/astrolabium/internal/units"
)

// WDSParser parses wdsweb_summ2.txt, the WDS summary catalogue
type WDSParser struct {
	schema *schema.Schema
}

// NewWDSParser creates the WDS parser
func NewWDSParser() *WDSParser {
	return &WDSParser{schema: wdsSchema()}
}

func wdsSchema() *schema.Schema {
	return &schema.Schema{
		Catalogue: model.CatalogueWDS,
		Width:     130,
		Columns: []schema.Column{
			{Name: "WDS", Start: 0, Width: 10, Kind: schema.String},
			{Name: "disc", Start: 10, Width: 7, Kind: schema.String},
			{Name: "comp", Start: 17, Width: 5, Kind: schema.String, Nullable: true},
			{Name: "obs_f", Start: 23, Width: 4, Kind: schema.Int, Nullable: true},
			{Name: "obs_l", Start: 28, Width: 4, Kind: schema.Int, Nullable: true},
			{Name: "n_obs", Start: 33, Width: 4, Kind: schema.Int, Nullable: true},
			{Name: "pa1", Start: 38, Width: 3, Kind: schema.Float, Nullable: true, Unit: units.Degree},
			{Name: "pa2", Start: 42, Width: 3, Kind: schema.Float, Nullable: true, Unit: units.Degree},
			{Name: "sep1", Start: 46, Width: 5, Kind: schema.Float, Nullable: true, Unit: units.Arcsecond},
			{Name: "sep2", Start: 52, Width: 5, Kind: schema.Float, Nullable: true, Unit: units.Arcsecond},
			{Name: "mag1", Start: 58, Width: 5, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "mag2", Start: 64, Width: 5, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "st", Start: 70, Width: 10, Kind: schema.String, Nullable: true},
			{Name: "pm1", Start: 80, Width: 8, Kind: schema.Compound, Nullable: true, Unit: units.ArcsecondPerKiloYear, ItemWidth: 4},
			{Name: "pm2", Start: 89, Width: 8, Kind: schema.Compound, Nullable: true, Unit: units.ArcsecondPerKiloYear, ItemWidth: 4},
			{Name: "DM", Start: 98, Width: 8, Kind: schema.String, Nullable: true},
			{Name: "notes", Start: 107, Width: 4, Kind: schema.String, Nullable: true},
			{Name: "coord", Start: 112, Width: 18, Kind: schema.String, Nullable: true},
		},
	}
}

// Name returns the catalogue name
func (p *WDSParser) Name() string { return model.CatalogueWDS }

// Schema returns the column table
func (p *WDSParser) Schema() *schema.Schema { return p.schema }

// KnownKeys returns the entry's serialized field names
func (p *WDSParser) KnownKeys() []string { return model.WDSKeys() }

// Skip reports header and ruler lines
func (p *WDSParser) Skip(line string) bool { return !startsWithDigit(line) }

// ParseLine converts one WDS summary record
func (p *WDSParser) ParseLine(line string, lineNumber int) (model.Entry, error) {
	rec, err := p.schema.ParseLine(line, lineNumber)
	if err != nil {
		return nil, err
	}

	wds, err := designation(p.Name(), rec, "WDS", lineNumber)
	if err != nil {
		return nil, err
	}

	e := &model.WDSEntry{
		WDS:   wds,
		Disc:  rec.String("disc"),
		Comp:  rec.String("comp"),
		ObsF:  intPtr(rec, "obs_f"),
		ObsL:  intPtr(rec, "obs_l"),
		NObs:  intPtr(rec, "n_obs"),
		PA1:   rec.QuantityPtr("pa1"),
		PA2:   rec.QuantityPtr("pa2"),
		Sep1:  rec.QuantityPtr("sep1"),
		Sep2:  rec.QuantityPtr("sep2"),
		Mag1:  rec.FloatPtr("mag1"),
		Mag2:  rec.FloatPtr("mag2"),
		ST:    rec.StringPtr("st"),
		DM:    rec.StringPtr("DM"),
		Notes: rec.StringPtr("notes"),
		Coord: rec.StringPtr("coord"),
	}

	if e.PM1RA, e.PM1Dec, err = properMotion(rec, "pm1"); err != nil {
		return nil, errors.NewParseError(p.Name(), lineNumber, "pm1", err)
	}
	if e.PM2RA, e.PM2Dec, err = properMotion(rec, "pm2"); err != nil {
		return nil, errors.NewParseError(p.Name(), lineNumber, "pm2", err)
	}
	return e, nil
}

// properMotion splits a "+RRR+DDD" column into its RA and Dec components
func properMotion(rec schema.Record, name string) (*units.Quantity, *units.Quantity, error) {
	if !rec.Has(name) {
		return nil, nil, nil
	}
	ra, err := rec.Item(name, 0)
	if err != nil {
		return nil, nil, err
	}
	dec, err := rec.Item(name, 1)
	if err != nil {
		return nil, nil, err
	}
	return &ra, &dec, nil
}
