package parsers

import (
	"fmt"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/schema"
	"github.com/ppiankov/astrolabium/internal/units"
)

// Orb6Parser parses orb6orbits.txt, the Sixth Catalog of Orbits of Visual
// Binary Stars
type Orb6Parser struct {
	schema *schema.Schema
}

// NewOrb6Parser creates the ORB6 parser
func NewOrb6Parser() *Orb6Parser {
	return &Orb6Parser{schema: orb6Schema()}
}

func orb6Schema() *schema.Schema {
	return &schema.Schema{
		Catalogue: model.CatalogueOrb6,
		Width:     264,
		Columns: []schema.Column{
			{Name: "coord", Start: 0, Width: 18, Kind: schema.String},
			{Name: "WDS", Start: 19, Width: 10, Kind: schema.String},
			{Name: "disc", Start: 30, Width: 14, Kind: schema.String},
			{Name: "ADS", Start: 45, Width: 5, Kind: schema.String, Nullable: true},
			{Name: "HD", Start: 51, Width: 6, Kind: schema.String, Nullable: true},
			{Name: "HIP", Start: 58, Width: 6, Kind: schema.String, Nullable: true},
			{Name: "V1", Start: 66, Width: 5, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "V1_flag", Start: 71, Width: 1, Kind: schema.String, Nullable: true},
			{Name: "V2", Start: 73, Width: 5, Kind: schema.Float, Nullable: true, Unit: units.Magnitude},
			{Name: "V2_flag", Start: 78, Width: 1, Kind: schema.String, Nullable: true},
			{Name: "P", Start: 81, Width: 11, Kind: schema.Float},
			{Name: "P_flag", Start: 92, Width: 1, Kind: schema.String},
			{Name: "P_e", Start: 94, Width: 11, Kind: schema.Float, Nullable: true},
			{Name: "a", Start: 105, Width: 9, Kind: schema.Float},
			{Name: "a_flag", Start: 114, Width: 1, Kind: schema.String},
			{Name: "a_e", Start: 116, Width: 9, Kind: schema.Float, Nullable: true},
			{Name: "i", Start: 125, Width: 8, Kind: schema.Float, Nullable: true, Unit: units.Degree},
			{Name: "i_e", Start: 134, Width: 8, Kind: schema.Float, Nullable: true, Unit: units.Degree},
			{Name: "lan", Start: 142, Width: 9, Kind: schema.Float, Nullable: true, Unit: units.Degree},
			{Name: "lan_e", Start: 152, Width: 10, Kind: schema.Float, Nullable: true, Unit: units.Degree},
			{Name: "T", Start: 162, Width: 12, Kind: schema.Float, Nullable: true},
			{Name: "T_flag", Start: 174, Width: 1, Kind: schema.String, Nullable: true},
			{Name: "T_e", Start: 176, Width: 10, Kind: schema.Float, Nullable: true},
			{Name: "e", Start: 186, Width: 9, Kind: schema.Float, Nullable: true},
			{Name: "e_e", Start: 195, Width: 9, Kind: schema.Float, Nullable: true},
			{Name: "lpa", Start: 204, Width: 9, Kind: schema.Float, Nullable: true, Unit: units.Degree},
			{Name: "lpa_e", Start: 213, Width: 9, Kind: schema.Float, Nullable: true, Unit: units.Degree},
			{Name: "equinox", Start: 222, Width: 5, Kind: schema.Int, Nullable: true},
			{Name: "last", Start: 227, Width: 5, Kind: schema.Int, Nullable: true},
			{Name: "grade", Start: 232, Width: 2, Kind: schema.Int},
			{Name: "notes", Start: 235, Width: 1, Kind: schema.String, Nullable: true},
			{Name: "ref", Start: 237, Width: 8, Kind: schema.String, Nullable: true},
			{Name: "png", Start: 246, Width: 18, Kind: schema.String, Nullable: true},
		},
	}
}

// Period unit flags
var periodUnits = map[string]units.Unit{
	"y": units.Year,
	"d": units.Day,
	"c": units.Century,
	"h": units.Hour,
	"m": units.Minute,
}

// Semi-major axis unit flags
var axisUnits = map[string]units.Unit{
	"a": units.Arcsecond,
	"m": units.MilliArcsecond,
}

// Julian dates of the J2000.0 epoch; T is normalized to Julian years
const (
	jdJ2000         = 2451545.0
	truncatedJD     = 2400000.0
	modifiedJD      = 2400000.5
	daysPerJulianYr = 365.25
)

// Name returns the catalogue name
func (p *Orb6Parser) Name() string { return model.CatalogueOrb6 }

// Schema returns the column table
func (p *Orb6Parser) Schema() *schema.Schema { return p.schema }

// KnownKeys returns the entry's serialized field names
func (p *Orb6Parser) KnownKeys() []string { return model.Orb6Keys() }

// Skip reports header and ruler lines
func (p *Orb6Parser) Skip(line string) bool { return !startsWithDigit(line) }

// ParseLine converts one ORB6 orbit
func (p *Orb6Parser) ParseLine(line string, lineNumber int) (model.Entry, error) {
	rec, err := p.schema.ParseLine(line, lineNumber)
	if err != nil {
		return nil, err
	}

	wds, err := designation(p.Name(), rec, "WDS", lineNumber)
	if err != nil {
		return nil, err
	}

	fail := func(field string, err error) (model.Entry, error) {
		return nil, errors.NewParseError(p.Name(), lineNumber, field, err)
	}

	periodUnit, ok := periodUnits[rec.String("P_flag")]
	if !ok {
		return fail("P_flag", fmt.Errorf("unknown period unit %q", rec.String("P_flag")))
	}
	axisUnit, ok := axisUnits[rec.String("a_flag")]
	if !ok {
		return fail("a_flag", fmt.Errorf("unknown axis unit %q", rec.String("a_flag")))
	}

	e := &model.Orb6Entry{
		Coord:   rec.String("coord"),
		WDS:     wds,
		Disc:    rec.String("disc"),
		ADS:     rec.StringPtr("ADS"),
		HD:      rec.StringPtr("HD"),
		HIP:     rec.StringPtr("HIP"),
		V1:      rec.FloatPtr("V1"),
		V2:      rec.FloatPtr("V2"),
		P:       scaled(rec, "P", periodUnit, units.Year),
		PE:      scaledPtr(rec, "P_e", periodUnit, units.Year),
		A:       scaled(rec, "a", axisUnit, units.MilliArcsecond),
		AE:      scaledPtr(rec, "a_e", axisUnit, units.MilliArcsecond),
		I:       rec.QuantityPtr("i"),
		IE:      rec.QuantityPtr("i_e"),
		Lan:     rec.QuantityPtr("lan"),
		LanE:    rec.QuantityPtr("lan_e"),
		E:       rec.FloatPtr("e"),
		EE:      rec.FloatPtr("e_e"),
		Lpa:     rec.QuantityPtr("lpa"),
		LpaE:    rec.QuantityPtr("lpa_e"),
		Equinox: intPtr(rec, "equinox"),
		Last:    intPtr(rec, "last"),
		Grade:   int(rec["grade"].Int),
		Notes:   rec.StringPtr("notes"),
		Ref:     rec.StringPtr("ref"),
		PNG:     rec.StringPtr("png"),
	}

	if e.E != nil && (*e.E < 0 || *e.E >= 1) {
		return fail("e", fmt.Errorf("eccentricity %v outside [0, 1)", *e.E))
	}

	if rec.Has("T") {
		t, te, err := periastron(rec)
		if err != nil {
			return fail("T_flag", err)
		}
		e.T, e.TE = t, te
	}

	return e, nil
}

func scaled(rec schema.Record, name string, from, to units.Unit) units.Quantity {
	v, _ := rec.Float(name)
	return units.New(v, from).MustTo(to)
}

func scaledPtr(rec schema.Record, name string, from, to units.Unit) *units.Quantity {
	if !rec.Has(name) {
		return nil
	}
	q := scaled(rec, name, from, to)
	return &q
}

// periastron converts T to a Julian year. The flag says whether T is a
// year, a truncated Julian date (JD-2400000) or a modified Julian date.
func periastron(rec schema.Record) (*units.Quantity, *units.Quantity, error) {
	t, _ := rec.Float("T")
	flag := rec.String("T_flag")

	var year float64
	var errUnit units.Unit
	switch flag {
	case "y", "":
		year = t
		errUnit = units.Year
	case "d":
		year = 2000 + (t+truncatedJD-jdJ2000)/daysPerJulianYr
		errUnit = units.Day
	case "m":
		year = 2000 + (t+modifiedJD-jdJ2000)/daysPerJulianYr
		errUnit = units.Day
	default:
		return nil, nil, fmt.Errorf("unknown periastron unit %q", flag)
	}

	epoch := units.Ptr(year, units.Year)
	if !rec.Has("T_e") {
		return epoch, nil, nil
	}
	return epoch, scaledPtr(rec, "T_e", errUnit, units.Year), nil
}
