package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/units"
)

// Catalogue names used in identifiers, cache keys and logs
const (
	CatalogueHipparcos = "hipparcos"
	CatalogueWDS       = "wds"
	CatalogueOrb6      = "orb6"
	CatalogueHD        = "hd"
)

// Entry is one parsed catalogue record
type Entry interface {
	Key() string       // Index key (HIP number or WDS designation)
	Catalogue() string // Catalogue the entry came from
	ToMap() map[string]any
}

var designationPattern = regexp.MustCompile(`^\d{5}[+-]\d{4}$`)

// ValidDesignation reports whether s is a WDS system designation (hhmmm±ddmm)
func ValidDesignation(s string) bool {
	return designationPattern.MatchString(s)
}

// HipparcosEntry is one record of the Hipparcos 2007 reduction
type HipparcosEntry struct {
	HIP    string         // Hipparcos identifier
	Sn     int            // Solution type new reduction
	So     int            // Solution type old reduction
	Nc     int            // Number of components
	RA     units.Quantity // Right ascension (rad, ICRS epoch 1991.25)
	DE     units.Quantity // Declination (rad)
	Plx    units.Quantity // Parallax (mas)
	PmRA   units.Quantity // Proper motion in RA*cos(DE) (arcsec/kyr)
	PmDE   units.Quantity // Proper motion in DE (arcsec/kyr)
	ERA    units.Quantity // Formal error on RA (mas)
	EDE    units.Quantity // Formal error on DE (mas)
	EPlx   units.Quantity // Formal error on Plx (mas)
	EPmRA  units.Quantity // Formal error on pmRA (arcsec/kyr)
	EPmDE  units.Quantity // Formal error on pmDE (arcsec/kyr)
	Ntr    *int           // Number of field transits used
	F2     *float64       // Goodness of fit
	F1     *int           // Percentage rejected data
	Var    *float64       // Cosmic dispersion added
	IC     *int           // Entry in one of the suppl. catalogues
	Hpmag  *float64       // Hipparcos magnitude
	EHpmag *float64       // Error on Hpmag
	SHp    *float64       // Scatter of Hpmag
	VA     *int           // Reference to variability annex
	BV     *float64       // Colour index B-V
	EBV    *float64       // Formal error on colour index
	VI     *float64       // V-I colour index
	UW     []float64      // Upper-triangular weight matrix
}

var hipparcosFields = Fields[HipparcosEntry]{
	StringField("HIP", func(e *HipparcosEntry) *string { return &e.HIP }),
	IntField("sn", func(e *HipparcosEntry) *int { return &e.Sn }),
	IntField("so", func(e *HipparcosEntry) *int { return &e.So }),
	IntField("nc", func(e *HipparcosEntry) *int { return &e.Nc }),
	QuantityField("ra", units.Radian, func(e *HipparcosEntry) *units.Quantity { return &e.RA }),
	QuantityField("de", units.Radian, func(e *HipparcosEntry) *units.Quantity { return &e.DE }),
	QuantityField("plx", units.MilliArcsecond, func(e *HipparcosEntry) *units.Quantity { return &e.Plx }),
	QuantityField("pmRA", units.ArcsecondPerKiloYear, func(e *HipparcosEntry) *units.Quantity { return &e.PmRA }),
	QuantityField("pmDE", units.ArcsecondPerKiloYear, func(e *HipparcosEntry) *units.Quantity { return &e.PmDE }),
	QuantityField("e_ra", units.MilliArcsecond, func(e *HipparcosEntry) *units.Quantity { return &e.ERA }),
	QuantityField("e_de", units.MilliArcsecond, func(e *HipparcosEntry) *units.Quantity { return &e.EDE }),
	QuantityField("e_plx", units.MilliArcsecond, func(e *HipparcosEntry) *units.Quantity { return &e.EPlx }),
	QuantityField("e_pmRA", units.ArcsecondPerKiloYear, func(e *HipparcosEntry) *units.Quantity { return &e.EPmRA }),
	QuantityField("e_pmDE", units.ArcsecondPerKiloYear, func(e *HipparcosEntry) *units.Quantity { return &e.EPmDE }),
	OptIntField("ntr", func(e *HipparcosEntry) **int { return &e.Ntr }),
	OptFloatField("f2", func(e *HipparcosEntry) **float64 { return &e.F2 }),
	OptIntField("f1", func(e *HipparcosEntry) **int { return &e.F1 }),
	OptFloatField("var", func(e *HipparcosEntry) **float64 { return &e.Var }),
	OptIntField("ic", func(e *HipparcosEntry) **int { return &e.IC }),
	OptFloatField("hpmag", func(e *HipparcosEntry) **float64 { return &e.Hpmag }),
	OptFloatField("e_hpmag", func(e *HipparcosEntry) **float64 { return &e.EHpmag }),
	OptFloatField("shp", func(e *HipparcosEntry) **float64 { return &e.SHp }),
	OptIntField("va", func(e *HipparcosEntry) **int { return &e.VA }),
	OptFloatField("b_v", func(e *HipparcosEntry) **float64 { return &e.BV }),
	OptFloatField("e_b_v", func(e *HipparcosEntry) **float64 { return &e.EBV }),
	OptFloatField("v_i", func(e *HipparcosEntry) **float64 { return &e.VI }),
	FloatsField("uw", func(e *HipparcosEntry) *[]float64 { return &e.UW }),
}

// HipparcosKeys returns the serialized field names in registry order
func HipparcosKeys() []string { return hipparcosFields.Keys() }

func (e *HipparcosEntry) Key() string       { return e.HIP }
func (e *HipparcosEntry) Catalogue() string { return CatalogueHipparcos }

// ToMap serializes the entry with quantities as bare magnitudes
func (e *HipparcosEntry) ToMap() map[string]any { return hipparcosFields.ToMap(e) }

// HipparcosFromMap rebuilds an entry from its map form
func HipparcosFromMap(m map[string]any) (*HipparcosEntry, error) {
	e := &HipparcosEntry{}
	if err := hipparcosFields.Fill(e, m); err != nil {
		return nil, fmt.Errorf("hipparcos entry: %w", err)
	}
	return e, nil
}

func (e *HipparcosEntry) MarshalJSON() ([]byte, error) { return json.Marshal(e.ToMap()) }

func (e *HipparcosEntry) UnmarshalJSON(data []byte) error {
	m, err := decodeMap(data)
	if err != nil {
		return err
	}
	parsed, err := HipparcosFromMap(m)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

// WDSEntry is one observation record of the Washington Double Star catalogue.
// A system designation may have several entries, one per component pair.
type WDSEntry struct {
	WDS    string          // System designation (hhmmm±ddmm)
	Disc   string          // Discoverer code and number
	Comp   string          // Components, verbatim ("AB", "AB,C", "Aa,Ab" or blank)
	ObsF   *int            // Date of first observation
	ObsL   *int            // Date of last observation
	NObs   *int            // Number of observations
	PA1    *units.Quantity // Position angle at first observation (deg)
	PA2    *units.Quantity // Position angle at last observation (deg)
	Sep1   *units.Quantity // Separation at first observation (arcsec)
	Sep2   *units.Quantity // Separation at last observation (arcsec)
	Mag1   *float64        // Magnitude of the first component
	Mag2   *float64        // Magnitude of the second component
	ST     *string         // Spectral type
	PM1RA  *units.Quantity // Primary proper motion in RA (arcsec/kyr)
	PM1Dec *units.Quantity // Primary proper motion in Dec (arcsec/kyr)
	PM2RA  *units.Quantity // Secondary proper motion in RA (arcsec/kyr)
	PM2Dec *units.Quantity // Secondary proper motion in Dec (arcsec/kyr)
	DM     *string         // Durchmusterung number
	Notes  *string         // Note flags
	Coord  *string         // Arcsecond coordinates
}

var wdsFields = Fields[WDSEntry]{
	StringField("WDS", func(e *WDSEntry) *string { return &e.WDS }),
	StringField("disc", func(e *WDSEntry) *string { return &e.Disc }),
	StringField("comp", func(e *WDSEntry) *string { return &e.Comp }),
	OptIntField("obs_f", func(e *WDSEntry) **int { return &e.ObsF }),
	OptIntField("obs_l", func(e *WDSEntry) **int { return &e.ObsL }),
	OptIntField("n_obs", func(e *WDSEntry) **int { return &e.NObs }),
	OptQuantityField("pa1", units.Degree, func(e *WDSEntry) **units.Quantity { return &e.PA1 }),
	OptQuantityField("pa2", units.Degree, func(e *WDSEntry) **units.Quantity { return &e.PA2 }),
	OptQuantityField("sep1", units.Arcsecond, func(e *WDSEntry) **units.Quantity { return &e.Sep1 }),
	OptQuantityField("sep2", units.Arcsecond, func(e *WDSEntry) **units.Quantity { return &e.Sep2 }),
	OptFloatField("mag1", func(e *WDSEntry) **float64 { return &e.Mag1 }),
	OptFloatField("mag2", func(e *WDSEntry) **float64 { return &e.Mag2 }),
	OptStringField("st", func(e *WDSEntry) **string { return &e.ST }),
	OptQuantityField("pm1_ra", units.ArcsecondPerKiloYear, func(e *WDSEntry) **units.Quantity { return &e.PM1RA }),
	OptQuantityField("pm1_dec", units.ArcsecondPerKiloYear, func(e *WDSEntry) **units.Quantity { return &e.PM1Dec }),
	OptQuantityField("pm2_ra", units.ArcsecondPerKiloYear, func(e *WDSEntry) **units.Quantity { return &e.PM2RA }),
	OptQuantityField("pm2_dec", units.ArcsecondPerKiloYear, func(e *WDSEntry) **units.Quantity { return &e.PM2Dec }),
	OptStringField("DM", func(e *WDSEntry) **string { return &e.DM }),
	OptStringField("notes", func(e *WDSEntry) **string { return &e.Notes }),
	OptStringField("coord", func(e *WDSEntry) **string { return &e.Coord }),
}

// WDSKeys returns the serialized field names in registry order
func WDSKeys() []string { return wdsFields.Keys() }

func (e *WDSEntry) Key() string       { return e.WDS }
func (e *WDSEntry) Catalogue() string { return CatalogueWDS }

// Pair returns the component pair of the entry; blank means the primary pair
func (e *WDSEntry) Pair() string {
	if c := strings.TrimSpace(e.Comp); c != "" {
		return c
	}
	return "AB"
}

// ToMap serializes the entry with quantities as bare magnitudes
func (e *WDSEntry) ToMap() map[string]any { return wdsFields.ToMap(e) }

// WDSFromMap rebuilds an entry from its map form
func WDSFromMap(m map[string]any) (*WDSEntry, error) {
	e := &WDSEntry{}
	if err := wdsFields.Fill(e, m); err != nil {
		return nil, fmt.Errorf("wds entry: %w", err)
	}
	if !ValidDesignation(e.WDS) {
		return nil, fmt.Errorf("%w: malformed designation %q", errors.ErrInvalidInput, e.WDS)
	}
	return e, nil
}

func (e *WDSEntry) MarshalJSON() ([]byte, error) { return json.Marshal(e.ToMap()) }

func (e *WDSEntry) UnmarshalJSON(data []byte) error {
	m, err := decodeMap(data)
	if err != nil {
		return err
	}
	parsed, err := WDSFromMap(m)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

// Orb6Entry is one orbit of the Sixth Catalog of Orbits of Visual Binary Stars
type Orb6Entry struct {
	Coord   string          // Arcsecond coordinates
	WDS     string          // System designation (hhmmm±ddmm)
	Disc    string          // Discoverer designation with optional components
	ADS     *string         // Aitken Double Star number
	HD      *string         // Henry Draper number
	HIP     *string         // Hipparcos number
	V1      *float64        // Primary magnitude
	V2      *float64        // Secondary magnitude
	P       units.Quantity  // Period (yr)
	PE      *units.Quantity // Error on P (yr)
	A       units.Quantity  // Semi-major axis (mas)
	AE      *units.Quantity // Error on a (mas)
	I       *units.Quantity // Inclination (deg)
	IE      *units.Quantity // Error on i (deg)
	Lan     *units.Quantity // Longitude of ascending node (deg)
	LanE    *units.Quantity // Error on lan (deg)
	T       *units.Quantity // Time of periastron (Julian year)
	TE      *units.Quantity // Error on T (yr)
	E       *float64        // Eccentricity
	EE      *float64        // Error on e
	Lpa     *units.Quantity // Longitude of periastron (deg)
	LpaE    *units.Quantity // Error on lpa (deg)
	Equinox *int            // Equinox of the node
	Last    *int            // Year of last observation
	Grade   int             // Orbit grade, 1 (definitive) to 5 (indeterminate), 8-9 special
	Notes   *string         // Note flag
	Ref     *string         // Reference code
	PNG     *string         // Orbit plot file name
}

var orb6Fields = Fields[Orb6Entry]{
	StringField("coord", func(e *Orb6Entry) *string { return &e.Coord }),
	StringField("WDS", func(e *Orb6Entry) *string { return &e.WDS }),
	StringField("disc", func(e *Orb6Entry) *string { return &e.Disc }),
	OptStringField("ADS", func(e *Orb6Entry) **string { return &e.ADS }),
	OptStringField("HD", func(e *Orb6Entry) **string { return &e.HD }),
	OptStringField("HIP", func(e *Orb6Entry) **string { return &e.HIP }),
	OptFloatField("V1", func(e *Orb6Entry) **float64 { return &e.V1 }),
	OptFloatField("V2", func(e *Orb6Entry) **float64 { return &e.V2 }),
	QuantityField("P", units.Year, func(e *Orb6Entry) *units.Quantity { return &e.P }),
	OptQuantityField("P_e", units.Year, func(e *Orb6Entry) **units.Quantity { return &e.PE }),
	QuantityField("a", units.MilliArcsecond, func(e *Orb6Entry) *units.Quantity { return &e.A }),
	OptQuantityField("a_e", units.MilliArcsecond, func(e *Orb6Entry) **units.Quantity { return &e.AE }),
	OptQuantityField("i", units.Degree, func(e *Orb6Entry) **units.Quantity { return &e.I }),
	OptQuantityField("i_e", units.Degree, func(e *Orb6Entry) **units.Quantity { return &e.IE }),
	OptQuantityField("lan", units.Degree, func(e *Orb6Entry) **units.Quantity { return &e.Lan }),
	OptQuantityField("lan_e", units.Degree, func(e *Orb6Entry) **units.Quantity { return &e.LanE }),
	OptQuantityField("T", units.Year, func(e *Orb6Entry) **units.Quantity { return &e.T }),
	OptQuantityField("T_e", units.Year, func(e *Orb6Entry) **units.Quantity { return &e.TE }),
	OptFloatField("e", func(e *Orb6Entry) **float64 { return &e.E }),
	OptFloatField("e_e", func(e *Orb6Entry) **float64 { return &e.EE }),
	OptQuantityField("lpa", units.Degree, func(e *Orb6Entry) **units.Quantity { return &e.Lpa }),
	OptQuantityField("lpa_e", units.Degree, func(e *Orb6Entry) **units.Quantity { return &e.LpaE }),
	OptIntField("equinox", func(e *Orb6Entry) **int { return &e.Equinox }),
	OptIntField("last", func(e *Orb6Entry) **int { return &e.Last }),
	IntField("orb_g", func(e *Orb6Entry) *int { return &e.Grade }),
	OptStringField("notes", func(e *Orb6Entry) **string { return &e.Notes }),
	OptStringField("ref", func(e *Orb6Entry) **string { return &e.Ref }),
	OptStringField("png", func(e *Orb6Entry) **string { return &e.PNG }),
}

// Orb6Keys returns the serialized field names in registry order
func Orb6Keys() []string { return orb6Fields.Keys() }

func (e *Orb6Entry) Key() string       { return e.WDS }
func (e *Orb6Entry) Catalogue() string { return CatalogueOrb6 }

// Discoverer returns the discoverer code without the component suffix
func (e *Orb6Entry) Discoverer() string {
	if len(e.Disc) <= discovererWidth {
		return strings.TrimSpace(e.Disc)
	}
	return strings.TrimSpace(e.Disc[:discovererWidth])
}

// Components returns the component suffix of the discoverer designation
func (e *Orb6Entry) Components() string {
	if len(e.Disc) <= discovererWidth {
		return ""
	}
	return strings.TrimSpace(e.Disc[discovererWidth:])
}

// discoverer codes are a 3-4 letter prefix and a number, padded to 7 characters
const discovererWidth = 7

// ToMap serializes the entry with quantities as bare magnitudes
func (e *Orb6Entry) ToMap() map[string]any { return orb6Fields.ToMap(e) }

// Orb6FromMap rebuilds an entry from its map form
func Orb6FromMap(m map[string]any) (*Orb6Entry, error) {
	e := &Orb6Entry{}
	if err := orb6Fields.Fill(e, m); err != nil {
		return nil, fmt.Errorf("orb6 entry: %w", err)
	}
	if !ValidDesignation(e.WDS) {
		return nil, fmt.Errorf("%w: malformed designation %q", errors.ErrInvalidInput, e.WDS)
	}
	return e, nil
}

func (e *Orb6Entry) MarshalJSON() ([]byte, error) { return json.Marshal(e.ToMap()) }

func (e *Orb6Entry) UnmarshalJSON(data []byte) error {
	m, err := decodeMap(data)
	if err != nil {
		return err
	}
	parsed, err := Orb6FromMap(m)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

func decodeMap(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
