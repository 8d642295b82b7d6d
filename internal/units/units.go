// Package units implements unit-tagged quantities for catalogue values.
//
// A Quantity is a float magnitude paired with an enumerated Unit. Conversions
// are only defined between units of the same Dimension; everything else is
// rejected with errors.ErrIncompatibleUnits rather than coerced.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/astrolabium/internal/errors"
)

// Dimension groups units that can be converted into each other
type Dimension int

const (
	Dimensionless Dimension = iota
	Angle
	Time
	AngularRate
	Mass
	Photometric
)

func (d Dimension) String() string {
	switch d {
	case Angle:
		return "angle"
	case Time:
		return "time"
	case AngularRate:
		return "angular rate"
	case Mass:
		return "mass"
	case Photometric:
		return "photometric"
	default:
		return "dimensionless"
	}
}

// Unit is an enumerated physical unit tag
type Unit int

const (
	None Unit = iota
	Degree
	Radian
	Arcsecond
	MilliArcsecond
	Year
	KiloYear
	Century
	Day
	Hour
	Minute
	MilliArcsecondPerYear
	ArcsecondPerKiloYear
	SolarMass
	Magnitude
)

// scale to the dimension's base unit is num/den * 10^exp. Keeping the power
// of ten apart lets decimal conversions stay exact (0.87865 arcsec is 878.65 mas).
type unitInfo struct {
	symbol string
	dim    Dimension
	num    float64
	den    float64
	exp    int
}

var unitTable = map[Unit]unitInfo{
	None:                  {"", Dimensionless, 1, 1, 0},
	Degree:                {"deg", Angle, 3600, 1, 0},
	Radian:                {"rad", Angle, 648000, math.Pi, 0},
	Arcsecond:             {"arcsec", Angle, 1, 1, 0},
	MilliArcsecond:        {"mas", Angle, 1, 1, -3},
	Year:                  {"yr", Time, 1, 1, 0},
	KiloYear:              {"kyr", Time, 1, 1, 3},
	Century:               {"cyr", Time, 1, 1, 2},
	Day:                   {"d", Time, 1, 365.25, 0},
	Hour:                  {"h", Time, 1, 8766, 0},
	Minute:                {"min", Time, 1, 525960, 0},
	MilliArcsecondPerYear: {"mas/yr", AngularRate, 1, 1, -3},
	ArcsecondPerKiloYear:  {"arcsec/kyr", AngularRate, 1, 1, -3},
	SolarMass:             {"Msun", Mass, 1, 1, 0},
	Magnitude:             {"mag", Photometric, 1, 1, 0},
}

// String returns the unit symbol
func (u Unit) String() string {
	return unitTable[u].symbol
}

// Dimension returns the dimension the unit measures
func (u Unit) Dimension() Dimension {
	return unitTable[u].dim
}

// MarshalText encodes the unit as its symbol
func (u Unit) MarshalText() ([]byte, error) {
	if _, ok := unitTable[u]; !ok {
		return nil, fmt.Errorf("unknown unit %d", int(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText decodes a unit symbol
func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ParseUnit looks up a unit by symbol
func ParseUnit(symbol string) (Unit, error) {
	symbol = strings.TrimSpace(symbol)
	for u, info := range unitTable {
		if info.symbol == symbol {
			return u, nil
		}
	}
	return None, fmt.Errorf("%w: unknown unit symbol %q", errors.ErrInvalidInput, symbol)
}

// Convert converts a bare magnitude between two units of the same dimension
func Convert(v float64, from, to Unit) (float64, error) {
	if from == to {
		return v, nil
	}
	fi, ok := unitTable[from]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %d", errors.ErrInvalidInput, int(from))
	}
	ti, ok := unitTable[to]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %d", errors.ErrInvalidInput, int(to))
	}
	if fi.dim != ti.dim {
		return 0, &errors.UnitError{From: from.String(), To: to.String()}
	}
	if fi.num != ti.num || fi.den != ti.den {
		v = v * fi.num * ti.den / (fi.den * ti.num)
	}
	return Shift(v, fi.exp-ti.exp), nil
}

// Shift multiplies v by 10^exp by moving the decimal point of its shortest
// decimal representation, so no binary rounding is introduced.
func Shift(v float64, exp int) float64 {
	if exp == 0 || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	s := strconv.FormatFloat(v, 'e', -1, 64)
	mantissa, e, _ := strings.Cut(s, "e")
	n, err := strconv.Atoi(e)
	if err != nil {
		return v * math.Pow10(exp)
	}
	shifted, err := strconv.ParseFloat(mantissa+"e"+strconv.Itoa(n+exp), 64)
	if err != nil {
		return v * math.Pow10(exp)
	}
	return shifted
}

// Quantity is a magnitude with its unit
type Quantity struct {
	Value float64 `json:"value" yaml:"value"`
	Unit  Unit    `json:"unit" yaml:"unit"`
}

// New creates a Quantity
func New(v float64, u Unit) Quantity {
	return Quantity{Value: v, Unit: u}
}

// Ptr returns a pointer to a new Quantity, used for optional fields
func Ptr(v float64, u Unit) *Quantity {
	q := New(v, u)
	return &q
}

// To converts the quantity into another unit of the same dimension
func (q Quantity) To(u Unit) (Quantity, error) {
	v, err := Convert(q.Value, q.Unit, u)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: v, Unit: u}, nil
}

// MustTo is To for conversions known to be valid at compile time.
func (q Quantity) MustTo(u Unit) Quantity {
	c, err := q.To(u)
	if err != nil {
		panic(err)
	}
	return c
}

// In returns the bare magnitude expressed in unit u
func (q Quantity) In(u Unit) (float64, error) {
	c, err := q.To(u)
	return c.Value, err
}

// Add returns q+o in q's unit
func (q Quantity) Add(o Quantity) (Quantity, error) {
	c, err := o.To(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: q.Value + c.Value, Unit: q.Unit}, nil
}

// Sub returns q-o in q's unit
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	c, err := o.To(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: q.Value - c.Value, Unit: q.Unit}, nil
}

// Compare returns -1, 0 or 1 comparing q with o
func (q Quantity) Compare(o Quantity) (int, error) {
	c, err := o.To(q.Unit)
	if err != nil {
		return 0, err
	}
	switch {
	case q.Value < c.Value:
		return -1, nil
	case q.Value > c.Value:
		return 1, nil
	default:
		return 0, nil
	}
}

func (q Quantity) String() string {
	if q.Unit == None {
		return strconv.FormatFloat(q.Value, 'g', -1, 64)
	}
	return strconv.FormatFloat(q.Value, 'g', -1, 64) + " " + q.Unit.String()
}
