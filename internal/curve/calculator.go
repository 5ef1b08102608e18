// Package curve samples the composed transfer function for charts and checks.
package curve

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"rawaccel/internal/accel"
)

var (
	ErrSampleCount  = errors.New("sample count must be at least 2")
	ErrSampleDomain = errors.New("sample domain must be a positive finite speed")
)

// Sample is one point of a curve. Speeds are in counts/ms.
type Sample struct {
	InputSpeed       float64 `json:"input_speed"`
	OutputSpeed      float64 `json:"output_speed"`
	Gain             float64 `json:"gain"`
	SensitivityRatio float64 `json:"sensitivity_ratio"`
}

// Compute samples motion along +X over [0, domain] with count evenly spaced speeds.
func Compute(d accel.Directionality, familyX accel.Family, argsX accel.AccelArgs,
	familyY accel.Family, argsY accel.AccelArgs, domain float64, count int) ([]Sample, error) {
	return ComputeAt(d, familyX, argsX, familyY, argsY, domain, count, 0)
}

// ComputeAt is Compute for motion at angleDeg from +X (counter-clockwise).
func ComputeAt(d accel.Directionality, familyX accel.Family, argsX accel.AccelArgs,
	familyY accel.Family, argsY accel.AccelArgs, domain float64, count int, angleDeg float64) ([]Sample, error) {
	if count < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrSampleCount, count)
	}
	if !(domain > 0) || math.IsInf(domain, 0) {
		return nil, fmt.Errorf("%w: got %g", ErrSampleDomain, domain)
	}

	p := accel.Policy{
		Directionality: d,
		FamilyX:        familyX,
		FamilyY:        familyY,
		ArgsX:          argsX,
		ArgsY:          argsY,
	}
	rad := angleDeg * math.Pi / 180
	dir := direction{cos: math.Cos(rad), sin: math.Sin(rad)}
	switch angleDeg {
	case 0:
		dir = direction{cos: 1}
	case 90:
		dir = direction{sin: 1}
	}

	samples := make([]Sample, count)
	step := float64(count - 1)
	for i := range samples {
		v := domain * float64(i) / step
		r := dir.ratio(p, v, orOne(argsX.Sensitivity), orOne(argsY.Sensitivity))
		samples[i] = Sample{InputSpeed: v, OutputSpeed: v * r, SensitivityRatio: r}
	}
	fillGain(samples)
	return samples, nil
}

type direction struct{ cos, sin float64 }

// ratio is |output| / |input| for a motion of speed v in this direction.
// At v == 0 it is the limit, the gain evaluated at zero speed.
func (dir direction) ratio(p accel.Policy, v, sensX, sensY float64) float64 {
	if v == 0 {
		sx, sy := p.Scale(0, 0)
		return math.Hypot(sx*sensX*dir.cos, sy*sensY*dir.sin)
	}
	ox, oy := p.Apply(v*dir.cos, v*dir.sin, sensX, sensY)
	return math.Hypot(ox, oy) / v
}

// orOne treats an unset multiplier as 1.
func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// fillGain sets Gain to the slope of OutputSpeed. Interior samples use the
// central difference; the endpoints use their single adjacent interval.
func fillGain(s []Sample) {
	n := len(s)
	slope := func(i, j int) float64 {
		return (s[j].OutputSpeed - s[i].OutputSpeed) / (s[j].InputSpeed - s[i].InputSpeed)
	}
	s[0].Gain = slope(0, 1)
	for i := 1; i < n-1; i++ {
		s[i].Gain = slope(i-1, i+1)
	}
	s[n-1].Gain = slope(n-2, n-1)
}

// Axes holds the X and Y charts of one settings record.
type Axes struct {
	X []Sample
	Y []Sample
}

// ComputeAxes samples along +X and +Y concurrently.
func ComputeAxes(ctx context.Context, d accel.Directionality, familyX accel.Family, argsX accel.AccelArgs,
	familyY accel.Family, argsY accel.AccelArgs, domain float64, count int) (Axes, error) {
	var out Axes
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := ComputeAt(d, familyX, argsX, familyY, argsY, domain, count, 0)
		if err != nil {
			return fmt.Errorf("x axis: %w", err)
		}
		out.X = s
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := ComputeAt(d, familyX, argsX, familyY, argsY, domain, count, 90)
		if err != nil {
			return fmt.Errorf("y axis: %w", err)
		}
		out.Y = s
		return nil
	})

	if err := g.Wait(); err != nil {
		return Axes{}, err
	}
	return out, nil
}

// ComputeSettings samples both axes of s, folding the global sensitivity into
// each axis. Unknown family indices fall back to Off.
func ComputeSettings(ctx context.Context, reg *accel.Registry, s accel.DriverSettings, domain float64, count int) (Axes, error) {
	x, y := s.X, s.Y
	global := orOne(s.Sensitivity)
	x.Sensitivity = orOne(x.Sensitivity) * global
	y.Sensitivity = orOne(y.Sensitivity) * global

	return ComputeAxes(ctx, s.Directionality, reg.Resolve(x.Family), x, reg.Resolve(y.Family), y, domain, count)
}
