package accel

import (
	"fmt"
	"math"

	"rawaccel/internal/abi"
)

// Defaults for the parts of the record that are not curve parameters.
const (
	DefaultDPI         = 1200
	DefaultPollRate    = 1000
	DefaultMinimumTime = 0.4 // ms
)

// DriverSettings is the full record exchanged with the driver.
type DriverSettings struct {
	DPI            uint32         `json:"dpi"`
	PollRate       uint32         `json:"poll_rate"`
	X              AccelArgs      `json:"x"`
	Y              AccelArgs      `json:"y"`
	Directionality Directionality `json:"directionality"`
	Rotation       float64        `json:"rotation"`    // degrees
	Sensitivity    float64        `json:"sensitivity"` // global multiplier
	MinimumTime    float64        `json:"minimum_time"`
}

// DefaultSettings is what the driver runs before anything is written: no
// acceleration, no rotation, unit sensitivity.
func DefaultSettings() DriverSettings {
	return DriverSettings{
		DPI:            DefaultDPI,
		PollRate:       DefaultPollRate,
		X:              DefaultArgs(),
		Y:              DefaultArgs(),
		Directionality: DefaultDirectionality(),
		Sensitivity:    1,
		MinimumTime:    DefaultMinimumTime,
	}
}

// Validate checks the whole record. Y is only checked when the axes are
// evaluated separately, since Whole mode never reads it.
func (s DriverSettings) Validate(reg *Registry) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateAxis(reg, AxisX, s.X)...)
	if s.Directionality.Mode == ByComponent {
		errs = append(errs, validateAxis(reg, AxisY, s.Y)...)
	}
	errs = append(errs, s.Directionality.Validate()...)

	global := func(field, reason string) {
		errs = append(errs, ValidationError{Axis: AxisGlobal, Field: field, Reason: reason})
	}
	if math.IsNaN(s.Rotation) || math.IsInf(s.Rotation, 0) {
		global("rotation", "must be a finite number")
	}
	if reason := Above(0).Check(s.Sensitivity); reason != "" {
		global("sensitivity", reason)
	}
	if reason := Above(0).Check(s.MinimumTime); reason != "" {
		global("minimum_time", reason)
	}
	if s.DPI == 0 {
		global("dpi", "must be positive")
	}
	if s.PollRate == 0 {
		global("poll_rate", "must be positive")
	}
	return errs
}

func validateAxis(reg *Registry, axis Axis, args AccelArgs) []ValidationError {
	family, ok := reg.LookupIndex(args.Family)
	if !ok {
		return []ValidationError{{
			Axis:   axis,
			Field:  "family",
			Reason: fmt.Sprintf("unknown curve family index %d", args.Family),
		}}
	}
	return WithAxis(axis, ValidateArgs(family, args))
}

// Policy resolves the families of s against reg. Unknown indices fall back to Off.
func (s DriverSettings) Policy(reg *Registry) Policy {
	return Policy{
		Directionality: s.Directionality,
		FamilyX:        reg.Resolve(s.X.Family),
		FamilyY:        reg.Resolve(s.Y.Family),
		ArgsX:          s.X,
		ArgsY:          s.Y,
	}
}

// ToNative packs s into the driver record.
func (s DriverSettings) ToNative() abi.Settings {
	mode := abi.ModeWhole
	if s.Directionality.Mode == ByComponent {
		mode = abi.ModeByComponent
	}
	return abi.Settings{
		DPI:         s.DPI,
		PollRate:    s.PollRate,
		Mode:        mode,
		Rotation:    s.Rotation,
		Sensitivity: s.Sensitivity,
		MinimumTime: s.MinimumTime,
		DomainX:     s.Directionality.DomainX,
		DomainY:     s.Directionality.DomainY,
		RangeX:      s.Directionality.RangeX,
		RangeY:      s.Directionality.RangeY,
		LpNorm:      s.Directionality.LpNorm,
		Args:        [2]abi.Args{s.X.ToNative(), s.Y.ToNative()},
	}
}

// SettingsFromNative unpacks a driver record.
func SettingsFromNative(n abi.Settings) DriverSettings {
	mode := Whole
	if n.Mode == abi.ModeByComponent {
		mode = ByComponent
	}
	return DriverSettings{
		DPI:      n.DPI,
		PollRate: n.PollRate,
		X:        ArgsFromNative(n.Args[0]),
		Y:        ArgsFromNative(n.Args[1]),
		Directionality: Directionality{
			Mode:    mode,
			DomainX: n.DomainX,
			DomainY: n.DomainY,
			RangeX:  n.RangeX,
			RangeY:  n.RangeY,
			LpNorm:  n.LpNorm,
		},
		Rotation:    n.Rotation,
		Sensitivity: n.Sensitivity,
		MinimumTime: n.MinimumTime,
	}
}

// Encode serialises s in the driver's wire layout.
func (s DriverSettings) Encode() ([]byte, error) {
	return abi.Encode(s.ToNative())
}

// DecodeSettings parses a driver payload.
func DecodeSettings(b []byte) (DriverSettings, error) {
	n, err := abi.Decode(b)
	if err != nil {
		return DriverSettings{}, err
	}
	return SettingsFromNative(n), nil
}
