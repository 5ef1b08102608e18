package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"rawaccel/internal/accel"
	"rawaccel/internal/monitor"
)

var errStop = errors.New("stop")

func TestStreamMonitor_InitThenSettings(t *testing.T) {
	logger = slog.New(slog.DiscardHandler)

	active := accel.DefaultSettings()
	active.Sensitivity = 0.75
	m := monitor.New(logger, monitor.Config{}, func() accel.DriverSettings { return active })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		m.Run(ctx)
	}()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	serveDone := make(chan error, 1)
	go func() { serveDone <- m.Serve(ctx, l, "/ws") }()
	defer func() {
		cancel()
		<-serveDone
		<-runDone
	}()

	applied := accel.DefaultSettings()
	applied.DPI = 3200

	var got []monitorEvent
	err = streamMonitor(ctx, "ws://"+l.Addr().String()+"/ws", func(ev monitorEvent) error {
		got = append(got, ev)
		if ev.Type == monitor.TypeStateInit {
			m.PublishSettings(applied)
			return nil
		}
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("streamMonitor err=%v, want errStop", err)
	}

	if len(got) != 2 || got[0].Type != monitor.TypeStateInit || got[1].Type != monitor.TypeSettingsApplied {
		t.Fatalf("events=%v, want state_init then settings_applied", got)
	}
	for _, ev := range got {
		if err := printMonitorEvent(ev); err != nil {
			t.Errorf("printMonitorEvent(%s): %v", ev.Type, err)
		}
	}
}

func TestStreamMonitor_BadURL(t *testing.T) {
	logger = slog.New(slog.DiscardHandler)
	err := streamMonitor(context.Background(), "ws://127.0.0.1:1/ws", func(monitorEvent) error { return nil })
	if err == nil {
		t.Fatal("expected a connection error")
	}
}

func TestPrintMonitorEvent_Unknown(t *testing.T) {
	if err := printMonitorEvent(monitorEvent{Type: "volume"}); err == nil {
		t.Error("expected an error for an unknown event type")
	}
}
