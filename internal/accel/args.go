package accel

import (
	"fmt"
	"strings"

	"rawaccel/internal/abi"
)

// Index identifies a curve family. The values are frozen to the driver's
// gain mode enumeration (see package abi) and must never be renumbered.
type Index int32

// Field names one numeric parameter of AccelArgs.
type Field int

const (
	FieldMotivity Field = iota
	FieldSynchronousSpeed
	FieldGamma
	FieldCap
	FieldWeight
	FieldOffset
	FieldLimit
	FieldMidpoint
	FieldScale
	FieldExponent
	FieldSensitivity

	numFields
)

var fieldNames = [numFields]string{
	FieldMotivity:         "motivity",
	FieldSynchronousSpeed: "synchronous_speed",
	FieldGamma:            "gamma",
	FieldCap:              "cap",
	FieldWeight:           "weight",
	FieldOffset:           "offset",
	FieldLimit:            "limit",
	FieldMidpoint:         "midpoint",
	FieldScale:            "scale",
	FieldExponent:         "exponent",
	FieldSensitivity:      "sensitivity",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// ParseField maps a field name (as printed by String) back to a Field.
// Hyphens and case are ignored so "sync-speed" style input from a shell works.
func ParseField(name string) (Field, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	switch n {
	case "sync_speed", "syncspeed":
		return FieldSynchronousSpeed, nil
	case "sens":
		return FieldSensitivity, nil
	}
	for f := Field(0); f < numFields; f++ {
		if fieldNames[f] == n {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// Fields returns every field in declaration order.
func Fields() []Field {
	out := make([]Field, 0, numFields)
	for f := Field(0); f < numFields; f++ {
		out = append(out, f)
	}
	return out
}

// FieldSet is a bit set of fields.
type FieldSet uint32

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s |= 1 << uint(f)
	}
	return s
}

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool { return s&(1<<uint(f)) != 0 }

// With returns s plus f.
func (s FieldSet) With(f Field) FieldSet { return s | 1<<uint(f) }

// AccelArgs holds the per-axis parameters. Which fields matter depends on Family.
type AccelArgs struct {
	Family           Index   `json:"family"`
	Motivity         float64 `json:"motivity"`
	SynchronousSpeed float64 `json:"synchronous_speed"`
	Gamma            float64 `json:"gamma"`
	Cap              float64 `json:"cap"`
	Weight           float64 `json:"weight"`
	Offset           float64 `json:"offset"`
	Limit            float64 `json:"limit"`
	Midpoint         float64 `json:"midpoint"`
	Scale            float64 `json:"scale"`
	Exponent         float64 `json:"exponent"`
	Sensitivity      float64 `json:"sensitivity"`
}

// DefaultArgs returns the driver's neutral parameter values.
func DefaultArgs() AccelArgs {
	return AccelArgs{
		Family:           Index(abi.ModeOff),
		Motivity:         2,
		SynchronousSpeed: 10,
		Gamma:            1,
		Cap:              0,
		Weight:           1,
		Offset:           0,
		Limit:            2,
		Midpoint:         10,
		Scale:            1,
		Exponent:         2,
		Sensitivity:      1,
	}
}

func (a *AccelArgs) ptr(f Field) *float64 {
	switch f {
	case FieldMotivity:
		return &a.Motivity
	case FieldSynchronousSpeed:
		return &a.SynchronousSpeed
	case FieldGamma:
		return &a.Gamma
	case FieldCap:
		return &a.Cap
	case FieldWeight:
		return &a.Weight
	case FieldOffset:
		return &a.Offset
	case FieldLimit:
		return &a.Limit
	case FieldMidpoint:
		return &a.Midpoint
	case FieldScale:
		return &a.Scale
	case FieldExponent:
		return &a.Exponent
	case FieldSensitivity:
		return &a.Sensitivity
	}
	return nil
}

// Get returns the value of f, or 0 for an unknown field.
func (a AccelArgs) Get(f Field) float64 {
	if p := a.ptr(f); p != nil {
		return *p
	}
	return 0
}

// Set stores v into f. Unknown fields are ignored.
func (a *AccelArgs) Set(f Field, v float64) {
	if p := a.ptr(f); p != nil {
		*p = v
	}
}

// ToNative packs the arguments into the driver record layout.
func (a AccelArgs) ToNative() abi.Args {
	return abi.Args{
		Family:           int32(a.Family),
		Motivity:         a.Motivity,
		SynchronousSpeed: a.SynchronousSpeed,
		Gamma:            a.Gamma,
		Cap:              a.Cap,
		Weight:           a.Weight,
		Offset:           a.Offset,
		Limit:            a.Limit,
		Midpoint:         a.Midpoint,
		Scale:            a.Scale,
		Exponent:         a.Exponent,
		Sensitivity:      a.Sensitivity,
	}
}

// ArgsFromNative is the inverse of ToNative.
func ArgsFromNative(n abi.Args) AccelArgs {
	return AccelArgs{
		Family:           Index(n.Family),
		Motivity:         n.Motivity,
		SynchronousSpeed: n.SynchronousSpeed,
		Gamma:            n.Gamma,
		Cap:              n.Cap,
		Weight:           n.Weight,
		Offset:           n.Offset,
		Limit:            n.Limit,
		Midpoint:         n.Midpoint,
		Scale:            n.Scale,
		Exponent:         n.Exponent,
		Sensitivity:      n.Sensitivity,
	}
}
