// Package profile reads and writes settings profiles as TOML.
//
// A profile names each axis's curve family and gives its fields as they
// would be typed, so a bad value is reported per field instead of failing the
// whole file:
//
//	dpi = 1600
//	sensitivity = 1.0
//
//	[directionality]
//	mode = "whole"
//	lp_norm = 2.0
//
//	[x]
//	family = "Motivity"
//	motivity = 1.5
//	synchronous_speed = 8
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"rawaccel/internal/accel"
)

var ErrUnknownFamily = errors.New("unknown curve family")

// File is the on-disk layout.
type File struct {
	DPI         uint32  `toml:"dpi"`
	PollRate    uint32  `toml:"poll_rate"`
	Rotation    float64 `toml:"rotation"`
	Sensitivity float64 `toml:"sensitivity"`
	MinimumTime float64 `toml:"minimum_time"`

	Directionality Directionality `toml:"directionality"`

	X map[string]any `toml:"x"`
	Y map[string]any `toml:"y"`
}

type Directionality struct {
	Mode    string  `toml:"mode"`
	DomainX float64 `toml:"domain_x"`
	DomainY float64 `toml:"domain_y"`
	RangeX  float64 `toml:"range_x"`
	RangeY  float64 `toml:"range_y"`
	LpNorm  float64 `toml:"lp_norm"`
}

// Profile is a decoded file. The axes are kept as argument sets so text that
// failed to parse is still reported by Validate.
type Profile struct {
	Settings accel.DriverSettings
	X, Y     *accel.ArgumentSet
}

// Validate checks the whole profile the way a write would.
func (p *Profile) Validate(reg *accel.Registry) []accel.ValidationError {
	var errs []accel.ValidationError
	errs = append(errs, accel.WithAxis(accel.AxisX, p.X.Validate())...)
	if p.Settings.Directionality.Mode == accel.ByComponent {
		errs = append(errs, accel.WithAxis(accel.AxisY, p.Y.Validate())...)
	}
	for _, e := range p.Resolved().Validate(reg) {
		if e.Axis == accel.AxisGlobal {
			errs = append(errs, e)
		}
	}
	return errs
}

// Resolved returns the settings with both axes filled in from the argument sets.
func (p *Profile) Resolved() accel.DriverSettings {
	s := p.Settings
	s.X = p.X.Args()
	s.Y = p.Y.Args()
	return s
}

func defaultFile() File {
	d := accel.DefaultSettings()
	return File{
		DPI:         d.DPI,
		PollRate:    d.PollRate,
		Rotation:    d.Rotation,
		Sensitivity: d.Sensitivity,
		MinimumTime: d.MinimumTime,
		Directionality: Directionality{
			Mode:   d.Directionality.Mode.String(),
			LpNorm: d.Directionality.LpNorm,
		},
	}
}

// Load reads a profile from path.
func Load(path string, reg *accel.Registry) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := Decode(b, reg)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Decode parses profile text. Missing keys take the driver defaults; unknown
// keys are an error.
func Decode(data []byte, reg *accel.Registry) (*Profile, error) {
	f := defaultFile()
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	mode, err := accel.ParseMode(f.Directionality.Mode)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Settings: accel.DriverSettings{
			DPI:      f.DPI,
			PollRate: f.PollRate,
			Directionality: accel.Directionality{
				Mode:    mode,
				DomainX: f.Directionality.DomainX,
				DomainY: f.Directionality.DomainY,
				RangeX:  f.Directionality.RangeX,
				RangeY:  f.Directionality.RangeY,
				LpNorm:  f.Directionality.LpNorm,
			},
			Rotation:    f.Rotation,
			Sensitivity: f.Sensitivity,
			MinimumTime: f.MinimumTime,
		},
	}
	if p.X, err = decodeAxis(reg, "x", f.X); err != nil {
		return nil, err
	}
	if p.Y, err = decodeAxis(reg, "y", f.Y); err != nil {
		return nil, err
	}
	p.Settings.X, p.Settings.Y = p.X.Args(), p.Y.Args()
	return p, nil
}

func decodeAxis(reg *accel.Registry, axis string, table map[string]any) (*accel.ArgumentSet, error) {
	family := reg.Off()
	if v, ok := table["family"]; ok {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s.family must be a string", axis)
		}
		if family, ok = reg.Lookup(name); !ok {
			return nil, fmt.Errorf("%s.family: %w %q (known: %s)", axis, ErrUnknownFamily, name, strings.Join(reg.Names(), ", "))
		}
	}

	set := accel.NewArgumentSet(family)

	// Sorted so repeated loads report errors in the same order.
	keys := make([]string, 0, len(table))
	for k := range table {
		if k != "family" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		field, err := accel.ParseField(k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", axis, err)
		}
		set.SetField(field, rawText(table[k]))
	}
	// Drop anything the family hides.
	set.ApplyFamilyDefaults(family)
	return set, nil
}

// rawText renders a TOML value the way a user would have typed it.
func rawText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// FromSettings renders s as a profile file. Only the fields each family uses are written.
func FromSettings(reg *accel.Registry, s accel.DriverSettings) File {
	return File{
		DPI:         s.DPI,
		PollRate:    s.PollRate,
		Rotation:    s.Rotation,
		Sensitivity: s.Sensitivity,
		MinimumTime: s.MinimumTime,
		Directionality: Directionality{
			Mode:    s.Directionality.Mode.String(),
			DomainX: s.Directionality.DomainX,
			DomainY: s.Directionality.DomainY,
			RangeX:  s.Directionality.RangeX,
			RangeY:  s.Directionality.RangeY,
			LpNorm:  s.Directionality.LpNorm,
		},
		X: encodeAxis(reg, s.X),
		Y: encodeAxis(reg, s.Y),
	}
}

func encodeAxis(reg *accel.Registry, args accel.AccelArgs) map[string]any {
	family := reg.Resolve(args.Family)
	out := map[string]any{"family": family.Name}
	for _, f := range accel.Fields() {
		if family.Active(f) {
			out[f.String()] = args.Get(f)
		}
	}
	return out
}

// Encode writes s as TOML.
func Encode(reg *accel.Registry, s accel.DriverSettings) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(FromSettings(reg, s)); err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes s to path, replacing any existing file.
func Save(path string, reg *accel.Registry, s accel.DriverSettings) error {
	b, err := Encode(reg, s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".profile-*.toml")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}
