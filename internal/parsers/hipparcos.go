package parsers

import (
	"fmt"
	"strings"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/schema"
	"github.com/ppiankov/astrolabium/internal/units"
)

// HipparcosParser parses hip2.dat, the 2007 Hipparcos reduction
// (van Leeuwen). Fields are '|' separated at fixed offsets.
type HipparcosParser struct {
	schema *schema.Schema
}

// NewHipparcosParser creates the Hipparcos parser
func NewHipparcosParser() *HipparcosParser {
	return &HipparcosParser{schema: hipparcosSchema()}
}

func hipparcosSchema() *schema.Schema {
	return &schema.Schema{
		Catalogue: model.CatalogueHipparcos,
		Width:     277,
		Columns: []schema.Column{
			{Name: "HIP", Start: 0, Width: 6, Kind: schema.Int},
			{Name: "Sn", Start: 7, Width: 3, Kind: schema.Int},
			{Name: "So", Start: 11, Width: 1, Kind: schema.Int},
			{Name: "Nc", Start: 13, Width: 1, Kind: schema.Int},
			{Name: "RADE", Start: 15, Width: 27, Kind: schema.Compound, Unit: units.Radian},
			{Name: "Plx", Start: 43, Width: 7, Kind: schema.Float, Unit: units.MilliArcsecond},
			{Name: "pmRA", Start: 51, Width: 8, Kind: schema.Float, Unit: units.MilliArcsecondPerYear},
			{Name: "pmDE", Start: 60, Width: 8, Kind: schema.Float, Unit: units.MilliArcsecondPerYear},
			{Name: "e_RA", Start: 69, Width: 6, Kind: schema.Float, Unit: units.MilliArcsecond},
			{Name: "e_DE", Start: 76, Width: 6, Kind: schema.Float, Unit: units.MilliArcsecond},
			{Name: "e_Plx", Start: 83, Width: 6, Kind: schema.Float, Unit: units.MilliArcsecond},
			{Name: "e_pmRA", Start: 90, Width: 6, Kind: schema.Float, Unit: units.MilliArcsecondPerYear},
			{Name: "e_pmDE", Start: 97, Width: 6, Kind: schema.Float, Unit: units.MilliArcsecondPerYear},
			{Name: "Ntr", Start: 104, Width: 3, Kind: schema.Int, Nullable: true},
			{Name: "F2", Start: 108, Width: 5, Kind: schema.Float, Nullable: true},
			{Name: "F1", Start: 114, Width: 2, Kind: schema.Int, Nullable: true},
			{Name: "var", Start: 117, Width: 6, Kind: schema.Float, Nullable: true},
			{Name: "ic", Start: 124, Width: 4, Kind: schema.Int, Nullable: true},
			{Name: "Hpmag", Start: 129, Width: 7, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "e_Hpmag", Start: 137, Width: 6, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "sHp", Start: 144, Width: 5, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "VA", Start: 150, Width: 1, Kind: schema.Int, Nullable: true},
			{Name: "B-V", Start: 152, Width: 6, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "e_B-V", Start: 159, Width: 5, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "V-I", Start: 165, Width: 6, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "UW", Start: 172, Width: 105, Kind: schema.Compound, Nullable: true, ItemWidth: 7},
		},
	}
}

// Name returns the catalogue name
func (p *HipparcosParser) Name() string { return model.CatalogueHipparcos }

// Schema returns the column table
func (p *HipparcosParser) Schema() *schema.Schema { return p.schema }

// KnownKeys returns the entry's serialized field names
func (p *HipparcosParser) KnownKeys() []string { return model.HipparcosKeys() }

// Skip reports lines without a right-aligned HIP number
func (p *HipparcosParser) Skip(line string) bool {
	return !startsWithDigit(strings.TrimLeft(line, " "))
}

// ParseLine converts one hip2.dat record
func (p *HipparcosParser) ParseLine(line string, lineNumber int) (model.Entry, error) {
	rec, err := p.schema.ParseLine(line, lineNumber)
	if err != nil {
		return nil, err
	}

	ra, err := rec.Item("RADE", 0)
	if err != nil {
		return nil, errors.NewParseError(p.Name(), lineNumber, "RADE", err)
	}
	de, err := rec.Item("RADE", 1)
	if err != nil {
		return nil, errors.NewParseError(p.Name(), lineNumber, "RADE", err)
	}
	if n := len(rec.Items("RADE")); n != 2 {
		return nil, errors.NewParseError(p.Name(), lineNumber, "RADE", fmt.Errorf("expected RA and Dec, got %d values", n))
	}

	e := &model.HipparcosEntry{
		HIP:    rec.String("HIP"),
		Sn:     int(rec["Sn"].Int),
		So:     int(rec["So"].Int),
		Nc:     int(rec["Nc"].Int),
		RA:     ra,
		DE:     de,
		Plx:    rec["Plx"].Quantity(),
		PmRA:   rec["pmRA"].Quantity().MustTo(units.ArcsecondPerKiloYear),
		PmDE:   rec["pmDE"].Quantity().MustTo(units.ArcsecondPerKiloYear),
		ERA:    rec["e_RA"].Quantity(),
		EDE:    rec["e_DE"].Quantity(),
		EPlx:   rec["e_Plx"].Quantity(),
		EPmRA:  rec["e_pmRA"].Quantity().MustTo(units.ArcsecondPerKiloYear),
		EPmDE:  rec["e_pmDE"].Quantity().MustTo(units.ArcsecondPerKiloYear),
		Ntr:    intPtr(rec, "Ntr"),
		F2:     rec.FloatPtr("F2"),
		F1:     intPtr(rec, "F1"),
		Var:    rec.FloatPtr("var"),
		IC:     intPtr(rec, "ic"),
		Hpmag:  rec.FloatPtr("Hpmag"),
		EHpmag: rec.FloatPtr("e_Hpmag"),
		SHp:    rec.FloatPtr("sHp"),
		VA:     intPtr(rec, "VA"),
		BV:     rec.FloatPtr("B-V"),
		EBV:    rec.FloatPtr("e_B-V"),
		VI:     rec.FloatPtr("V-I"),
		UW:     rec.Items("UW"),
	}
	return e, nil
}
