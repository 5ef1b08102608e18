package input

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"rawaccel/internal/accel"
	"rawaccel/internal/monitor"
)

// idleGap is the longest interval treated as continuous motion. The first
// report after a longer pause uses the nominal poll interval instead.
const idleGap = 100 * time.Millisecond

// Sink receives one output frame at a time, terminated by SYN_REPORT.
type Sink interface {
	Emit(events []Event) error
}

// PointPublisher observes every motion report. It must not block.
type PointPublisher interface {
	PublishPoint(monitor.Point)
}

type transfer struct {
	mod    *accel.Modifier
	pollMs float64
}

// frame is the per-device state between two SYN_REPORTs.
type frame struct {
	dx, dy   int32
	pass     []Event
	dropping bool

	last           time.Time
	carryX, carryY float64
}

// Motion applies the active settings to report frames. Settings can be
// swapped with Apply while Run is active; each frame sees either the old
// record or the new one.
type Motion struct {
	sink   Sink
	points PointPublisher
	logger *slog.Logger

	cur    atomic.Pointer[transfer]
	frames map[int]*frame
	out    []Event
}

// NewMotion starts with the driver defaults. points may be nil.
func NewMotion(reg *accel.Registry, sink Sink, points PointPublisher, logger *slog.Logger) *Motion {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Motion{
		sink:   sink,
		points: points,
		logger: logger,
		frames: make(map[int]*frame),
	}
	m.Apply(reg, accel.DefaultSettings())
	return m
}

// Apply makes s the active record for subsequent frames.
func (m *Motion) Apply(reg *accel.Registry, s accel.DriverSettings) {
	poll := float64(s.PollRate)
	if poll <= 0 {
		poll = accel.DefaultPollRate
	}
	m.cur.Store(&transfer{
		mod:    accel.NewModifier(reg, s),
		pollMs: 1000 / poll,
	})
}

// Run consumes events until ctx is canceled or events is closed. A sink
// error stops the loop.
func (m *Motion) Run(ctx context.Context, events <-chan SourceEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := m.Handle(ev); err != nil {
				return err
			}
		}
	}
}

// Handle feeds one event. Output is emitted when the event ends a frame.
func (m *Motion) Handle(ev SourceEvent) error {
	f := m.frames[ev.Source]
	if f == nil {
		f = &frame{}
		m.frames[ev.Source] = f
	}

	switch {
	case ev.Type == EvSyn && ev.Code == SynDropped:
		// The kernel buffer overflowed; everything up to the next report is stale.
		f.reset()
		f.dropping = true
		return nil

	case ev.Type == EvSyn && ev.Code == SynReport:
		if f.dropping {
			f.reset()
			f.dropping = false
			return nil
		}
		return m.flush(f, ev.Time())

	case f.dropping:
		return nil

	case ev.IsMotion():
		if ev.Code == RelX {
			f.dx += ev.Value
		} else {
			f.dy += ev.Value
		}
		return nil

	case ev.Type == EvMsc:
		// Scan codes describe the physical device only.
		return nil

	default:
		f.pass = append(f.pass, Event{Type: ev.Type, Code: ev.Code, Value: ev.Value})
		return nil
	}
}

func (f *frame) reset() {
	f.dx, f.dy = 0, 0
	f.pass = f.pass[:0]
}

func (m *Motion) flush(f *frame, at time.Time) error {
	defer f.reset()
	out := m.out[:0]

	if f.dx != 0 || f.dy != 0 {
		t := m.cur.Load()

		ms := t.pollMs
		if !f.last.IsZero() {
			if gap := at.Sub(f.last); gap > 0 && gap <= idleGap {
				ms = float64(gap) / float64(time.Millisecond)
			}
		}
		f.last = at

		dx, dy := float64(f.dx), float64(f.dy)
		outX, outY := t.mod.Modify(dx, dy, ms)

		// Fractional counts carry into the next report.
		x := outX + f.carryX
		y := outY + f.carryY
		ix, iy := math.Trunc(x), math.Trunc(y)
		f.carryX, f.carryY = x-ix, y-iy

		if ix != 0 {
			out = append(out, Event{Type: EvRel, Code: RelX, Value: int32(ix)})
		}
		if iy != 0 {
			out = append(out, Event{Type: EvRel, Code: RelY, Value: int32(iy)})
		}

		if m.points != nil {
			m.points.PublishPoint(monitor.Point{
				DX: dx, DY: dy, Ms: ms,
				OutX: outX, OutY: outY,
				At: at,
			})
		}
	}

	out = append(out, f.pass...)
	if len(out) == 0 {
		return nil
	}
	out = append(out, Event{Type: EvSyn, Code: SynReport})
	m.out = out

	if err := m.sink.Emit(out); err != nil {
		m.logger.Error("Virtual pointer write failed", "error", err)
		return err
	}
	return nil
}
