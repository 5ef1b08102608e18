package accel

import (
	"fmt"
	"math"

	"rawaccel/internal/abi"
)

// GainFunc maps an input speed (counts/ms) to a sensitivity multiplier.
// Implementations must be pure.
type GainFunc func(speed float64, args AccelArgs) float64

// Constraint is a closed or half-open interval a field value must lie in.
type Constraint struct {
	Min, Max     float64
	MinExclusive bool
	MaxExclusive bool
}

// AtLeast returns the constraint v >= min.
func AtLeast(min float64) Constraint { return Constraint{Min: min, Max: math.Inf(1)} }

// Above returns the constraint v > min.
func Above(min float64) Constraint {
	return Constraint{Min: min, Max: math.Inf(1), MinExclusive: true}
}

// Check returns a reason when v violates the constraint, or "" when it holds.
func (c Constraint) Check(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "must be a finite number"
	}
	if c.MinExclusive && v <= c.Min {
		return fmt.Sprintf("must be greater than %g", c.Min)
	}
	if !c.MinExclusive && v < c.Min {
		return fmt.Sprintf("must be at least %g", c.Min)
	}
	if c.MaxExclusive && v >= c.Max {
		return fmt.Sprintf("must be less than %g", c.Max)
	}
	if !c.MaxExclusive && v > c.Max {
		return fmt.Sprintf("must be at most %g", c.Max)
	}
	return ""
}

// sensitivityBound applies to every family: the per-axis multiplier is always active.
var sensitivityBound = Above(0)

// Family describes one curve shape as plain data.
type Family struct {
	Index    Index
	Name     string
	Visible  FieldSet
	Defaults AccelArgs
	Bounds   map[Field]Constraint

	GainFunc GainFunc
}

// Gain evaluates the family at speed. A family without a gain function is the identity.
func (f Family) Gain(speed float64, args AccelArgs) float64 {
	if f.GainFunc == nil {
		return 1
	}
	return f.GainFunc(speed, args)
}

// Active reports whether f is meaningful for this family. Sensitivity always is.
func (f Family) Active(field Field) bool {
	return field == FieldSensitivity || f.Visible.Has(field)
}

// Bound returns the constraint for an active field.
func (f Family) Bound(field Field) (Constraint, bool) {
	if field == FieldSensitivity {
		return sensitivityBound, true
	}
	c, ok := f.Bounds[field]
	return c, ok
}

func familyDefaults(idx Index) AccelArgs {
	a := DefaultArgs()
	a.Family = idx
	return a
}

// Off is the identity family.
func Off() Family {
	return Family{
		Index:    Index(abi.ModeOff),
		Name:     "Off",
		Defaults: familyDefaults(Index(abi.ModeOff)),
	}
}

var motivityFields = NewFieldSet(FieldMotivity, FieldSynchronousSpeed, FieldGamma, FieldCap)

var motivityBounds = map[Field]Constraint{
	FieldMotivity:         Above(1),
	FieldSynchronousSpeed: Above(0),
	FieldGamma:            Above(0),
	FieldCap:              AtLeast(0),
}

// Motivity is the tanh-shaped family: sensitivity rises from 1/motivity to
// motivity, centred on the synchronous speed, with gamma controlling the slope.
func Motivity() Family {
	return Family{
		Index:    Index(abi.ModeTanh),
		Name:     "Motivity",
		Visible:  motivityFields,
		Defaults: familyDefaults(Index(abi.ModeTanh)),
		Bounds:   motivityBounds,
		GainFunc: func(speed float64, args AccelArgs) float64 {
			return motivityGain(speed, args, math.Tanh)
		},
	}
}

// Gudermannian has the same parameters as Motivity with a softer knee.
func Gudermannian() Family {
	return Family{
		Index:    Index(abi.ModeGD),
		Name:     "Gudermannian",
		Visible:  motivityFields,
		Defaults: familyDefaults(Index(abi.ModeGD)),
		Bounds:   motivityBounds,
		GainFunc: func(speed float64, args AccelArgs) float64 {
			return motivityGain(speed, args, gd)
		},
	}
}

func gd(x float64) float64 {
	return 2 / math.Pi * math.Atan(math.Sinh(x*math.Pi/2))
}

// motivityGain evaluates exp(fn(G*(ln v - ln S)) * ln M), clamped by cap.
func motivityGain(speed float64, args AccelArgs, fn func(float64) float64) float64 {
	if args.Gamma == 0 || args.Motivity <= 1 {
		return 1
	}
	if args.SynchronousSpeed <= 0 {
		// Unreachable through validation. The driver returns motivity uncapped here.
		return args.Motivity
	}

	a := math.Log(args.SynchronousSpeed)
	c := math.Log(args.Motivity)
	g := args.Gamma / c

	x := g * (math.Log(speed) - a)
	return clampScale(math.Exp(fn(x)*c), args.Cap)
}

// clampScale bounds a sensitivity multiplier. cap <= 0 leaves it effectively
// uncapped at 9; 0 < cap < 1 is treated as a floor for negative acceleration.
func clampScale(scale, cap float64) float64 {
	lo, hi := 0.0, 9.0
	switch {
	case cap <= 0:
	case cap < 1:
		lo, hi = cap, 1
	default:
		hi = cap
	}
	return math.Min(math.Max(scale, lo), hi)
}
