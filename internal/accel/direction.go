package accel

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Mode selects how the two axes are combined.
type Mode int

const (
	// Whole evaluates the X family on the combined Lp magnitude of the motion.
	Whole Mode = iota
	// ByComponent evaluates each axis with its own family and arguments.
	ByComponent
)

func (m Mode) String() string {
	switch m {
	case Whole:
		return "whole"
	case ByComponent:
		return "by_component"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "whole" or "by_component" (also "by-component", "component").
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "whole", "":
		return Whole, nil
	case "by_component", "component", "bycomponent":
		return ByComponent, nil
	default:
		return 0, fmt.Errorf("invalid directionality mode %q (must be whole or by_component)", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Directionality is the directional part of the driver settings.
type Directionality struct {
	Mode    Mode    `json:"mode"`
	DomainX float64 `json:"domain_x"`
	DomainY float64 `json:"domain_y"`
	RangeX  float64 `json:"range_x"`
	RangeY  float64 `json:"range_y"`
	LpNorm  float64 `json:"lp_norm"`
}

// lpNorm encodes the max-norm as "inf", which JSON numbers cannot carry.
type lpNorm float64

func (p lpNorm) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(p), 1) {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(p))
}

func (p *lpNorm) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if !strings.EqualFold(s, "inf") {
			return fmt.Errorf("invalid lp_norm %q", s)
		}
		*p = lpNorm(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("invalid lp_norm: %w", err)
	}
	*p = lpNorm(f)
	return nil
}

func (d Directionality) MarshalJSON() ([]byte, error) {
	type plain Directionality
	return json.Marshal(struct {
		plain
		LpNorm lpNorm `json:"lp_norm"`
	}{plain(d), lpNorm(d.LpNorm)})
}

func (d *Directionality) UnmarshalJSON(b []byte) error {
	type plain Directionality
	p := lpNorm(d.LpNorm)
	aux := struct {
		*plain
		LpNorm *lpNorm `json:"lp_norm"`
	}{(*plain)(d), &p}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.LpNorm = float64(p)
	return nil
}

// DefaultDirectionality combines the axes with the Euclidean norm and no clipping.
func DefaultDirectionality() Directionality {
	return Directionality{Mode: Whole, LpNorm: 2}
}

// Validate checks the clip bounds and the norm.
func (d Directionality) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, reason string) {
		errs = append(errs, ValidationError{Axis: AxisGlobal, Field: field, Reason: reason})
	}

	if d.Mode != Whole && d.Mode != ByComponent {
		add("mode", "must be whole or by_component")
	}

	nonNeg := AtLeast(0)
	for _, c := range []struct {
		name string
		v    float64
	}{{"domain_x", d.DomainX}, {"domain_y", d.DomainY}, {"range_x", d.RangeX}, {"range_y", d.RangeY}} {
		if reason := nonNeg.Check(c.v); reason != "" {
			add(c.name, reason)
		}
	}
	if d.DomainX > 0 && d.RangeX > d.DomainX {
		add("range_x", "must not exceed domain_x")
	}
	if d.DomainY > 0 && d.RangeY > d.DomainY {
		add("range_y", "must not exceed domain_y")
	}

	if math.IsNaN(d.LpNorm) || d.LpNorm < 1 || math.IsInf(d.LpNorm, -1) {
		add("lp_norm", "must be at least 1 or infinite")
	}
	return errs
}

// Combine returns the Lp magnitude of (x, y); an infinite p gives the max-norm.
func (d Directionality) Combine(x, y float64) float64 {
	x, y = math.Abs(x), math.Abs(y)
	p := d.LpNorm
	switch {
	case math.IsInf(p, 1):
		return math.Max(x, y)
	case p == 2:
		return math.Hypot(x, y)
	case p == 1:
		return x + y
	}
	// Scaled by the larger component so large p neither overflows nor underflows.
	m := math.Max(x, y)
	if m == 0 {
		return 0
	}
	return m * math.Pow(math.Pow(x/m, p)+math.Pow(y/m, p), 1/p)
}

// clipDomain bounds an evaluation speed; a zero domain leaves it alone.
func clipDomain(speed, domain float64) float64 {
	if domain > 0 && speed > domain {
		return domain
	}
	return speed
}

// clipRange bounds the magnitude of an output component, keeping its sign.
func clipRange(v, rng float64) float64 {
	if rng > 0 && math.Abs(v) > rng {
		return math.Copysign(rng, v)
	}
	return v
}

// Policy bundles directionality with the families and arguments it drives.
type Policy struct {
	Directionality
	FamilyX, FamilyY Family
	ArgsX, ArgsY     AccelArgs
}

// Scale returns the per-axis multipliers for a motion of (vx, vy) counts/ms,
// before range clipping and sensitivity.
func (p Policy) Scale(vx, vy float64) (float64, float64) {
	if p.Mode == ByComponent {
		sx := p.FamilyX.Gain(clipDomain(math.Abs(vx), p.DomainX), p.ArgsX)
		sy := p.FamilyY.Gain(clipDomain(math.Abs(vy), p.DomainY), p.ArgsY)
		return sx, sy
	}

	mag := p.Combine(clipDomain(math.Abs(vx), p.DomainX), clipDomain(math.Abs(vy), p.DomainY))
	s := p.FamilyX.Gain(mag, p.ArgsX)
	return s, s
}

// Apply scales a velocity and clips it to the configured range.
// sensX and sensY are applied between the gain and the range clip.
func (p Policy) Apply(vx, vy, sensX, sensY float64) (float64, float64) {
	sx, sy := p.Scale(vx, vy)
	return clipRange(vx*sx*sensX, p.RangeX), clipRange(vy*sy*sensY, p.RangeY)
}
