package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"rawaccel/internal/accel"
)

// Event types on the wire.
const (
	TypeStateInit       = "state_init"
	TypeLastPoint       = "last_point"
	TypeSettingsApplied = "settings_applied"
)

// pointCoalesceWindow is the longest a last_point update waits before it is
// sent. Bursts inside the window collapse to the newest point.
const pointCoalesceWindow = 50 * time.Millisecond

// Point is one motion report as seen by the input pipeline.
type Point struct {
	// Raw counts and elapsed time since the previous report.
	DX, DY float64
	Ms     float64

	// Counts after the transfer function.
	OutX, OutY float64

	At time.Time
}

// InputSpeed is the raw speed in counts/ms.
func (p Point) InputSpeed() float64 {
	if p.Ms <= 0 {
		return 0
	}
	return accel.DefaultDirectionality().Combine(p.DX, p.DY) / p.Ms
}

// OutputSpeed is the accelerated speed in counts/ms.
func (p Point) OutputSpeed() float64 {
	if p.Ms <= 0 {
		return 0
	}
	return accel.DefaultDirectionality().Combine(p.OutX, p.OutY) / p.Ms
}

type pointData struct {
	DX          float64 `json:"dx"`
	DY          float64 `json:"dy"`
	Ms          float64 `json:"ms"`
	OutX        float64 `json:"out_x"`
	OutY        float64 `json:"out_y"`
	InputSpeed  float64 `json:"input_speed"`
	OutputSpeed float64 `json:"output_speed"`
}

func toPointData(p Point) pointData {
	return pointData{
		DX: p.DX, DY: p.DY, Ms: p.Ms,
		OutX: p.OutX, OutY: p.OutY,
		InputSpeed:  p.InputSpeed(),
		OutputSpeed: p.OutputSpeed(),
	}
}

type snapshotData struct {
	Settings  accel.DriverSettings `json:"settings"`
	LastPoint *pointData           `json:"last_point,omitempty"`
}

type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalEnvelope(typ string, at time.Time, data any) ([]byte, error) {
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UTC()
	return json.Marshal(envelope{Type: typ, Ts: &ts, Data: data})
}

type Config struct {
	Hub HubConfig

	// PointBuf is the queue between the motion path and the broadcaster.
	PointBuf int
}

// Monitor owns the hub and the broadcaster. Publishing never blocks the caller.
type Monitor struct {
	logger *slog.Logger
	hub    *Hub
	active func() accel.DriverSettings

	points   chan Point
	settings chan accel.DriverSettings
	last     atomic.Pointer[Point]
	dropped  atomic.Uint64
}

// New builds a Monitor. active supplies the settings sent in state_init.
func New(logger *slog.Logger, cfg Config, active func() accel.DriverSettings) *Monitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.PointBuf <= 0 {
		cfg.PointBuf = 256
	}
	return &Monitor{
		logger:   logger,
		hub:      NewHub(logger, cfg.Hub),
		active:   active,
		points:   make(chan Point, cfg.PointBuf),
		settings: make(chan accel.DriverSettings, 8),
	}
}

func (m *Monitor) Hub() *Hub { return m.hub }

// PublishPoint records p as the last observed point. When the queue is full
// the point is dropped.
func (m *Monitor) PublishPoint(p Point) {
	m.last.Store(&p)
	select {
	case m.points <- p:
	default:
		m.dropped.Add(1)
	}
}

// PublishSettings announces a newly applied record.
func (m *Monitor) PublishSettings(s accel.DriverSettings) {
	select {
	case m.settings <- s:
	default:
		m.logger.Warn("Monitor settings queue full, dropping event")
	}
}

// LastPoint returns the newest published point.
func (m *Monitor) LastPoint() (Point, bool) {
	p := m.last.Load()
	if p == nil {
		return Point{}, false
	}
	return *p, true
}

// Dropped returns how many points were discarded because the queue was full.
func (m *Monitor) Dropped() uint64 { return m.dropped.Load() }

// Run starts the hub and the broadcaster and returns when ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.hub.Run(ctx)
	}()
	m.broadcast(ctx)
	<-done
}

// broadcast serialises events for the hub. last_point is rate limited: the
// newest pending point is flushed at most once per window.
func (m *Monitor) broadcast(ctx context.Context) {
	var pending *Point
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if pending == nil {
			return
		}
		msg, err := marshalEnvelope(TypeLastPoint, pending.At, toPointData(*pending))
		pending = nil
		if err != nil {
			m.logger.Warn("Monitor marshal failed", "type", TypeLastPoint, "error", err)
			return
		}
		m.hub.BroadcastBytes(msg)
	}
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case <-timerC:
			timer, timerC = nil, nil
			flush()

		case p := <-m.points:
			pending = &p
			if timer == nil {
				timer = time.NewTimer(pointCoalesceWindow)
				timerC = timer.C
			}

		case s := <-m.settings:
			// Points observed under the old record go out first.
			flush()
			stopTimer()
			msg, err := marshalEnvelope(TypeSettingsApplied, time.Time{}, s)
			if err != nil {
				m.logger.Warn("Monitor marshal failed", "type", TypeSettingsApplied, "error", err)
				continue
			}
			m.hub.BroadcastBytes(msg)
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Register installs the websocket handler on mux at path.
func (m *Monitor) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, m.handleWS)
}

// handleWS upgrades, registers the client and queues state_init.
func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("Monitor upgrade failed", "error", err)
		return
	}

	client := newClient(m.hub, conn, r.RemoteAddr, m.logger)

	// Queue state_init before the client is visible to broadcasts so it is always first.
	snap := snapshotData{}
	if m.active != nil {
		snap.Settings = m.active()
	}
	if p, ok := m.LastPoint(); ok {
		pd := toPointData(p)
		snap.LastPoint = &pd
	}
	if msg, err := marshalEnvelope(TypeStateInit, time.Time{}, snap); err == nil {
		client.send <- msg
	} else {
		m.logger.Warn("Monitor marshal failed", "type", TypeStateInit, "error", err)
	}

	m.hub.register <- client

	// The pumps outlive the request; the hub and socket errors end them.
	go client.writePump()
	go client.readPump()
}
