package accel

import "math"

// Modifier applies a DriverSettings record to raw motion reports.
// It is immutable once built and safe for concurrent use.
type Modifier struct {
	policy  Policy
	rotate  bool
	cos     float64
	sin     float64
	sensX   float64
	sensY   float64
	minTime float64
}

// NewModifier prepares s for the motion path.
func NewModifier(reg *Registry, s DriverSettings) *Modifier {
	m := &Modifier{
		policy:  s.Policy(reg),
		sensX:   nonZero(s.Sensitivity) * nonZero(s.X.Sensitivity),
		sensY:   nonZero(s.Sensitivity) * nonZero(s.Y.Sensitivity),
		minTime: s.MinimumTime,
	}
	if m.minTime <= 0 {
		m.minTime = DefaultMinimumTime
	}
	if s.Rotation != 0 {
		rad := s.Rotation * math.Pi / 180
		m.rotate = true
		m.cos, m.sin = math.Cos(rad), math.Sin(rad)
	}
	return m
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// Modify transforms one report of (dx, dy) counts that arrived ms milliseconds
// after the previous one. Rotation is applied first, then acceleration, then
// sensitivity and range clipping.
func (m *Modifier) Modify(dx, dy, ms float64) (float64, float64) {
	if m.rotate {
		dx, dy = dx*m.cos-dy*m.sin, dx*m.sin+dy*m.cos
	}
	if dx == 0 && dy == 0 {
		return 0, 0
	}

	t := math.Max(ms, m.minTime)
	vx, vy := m.policy.Apply(dx/t, dy/t, m.sensX, m.sensY)
	return vx * t, vy * t
}
