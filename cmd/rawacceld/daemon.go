//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"rawaccel/internal/accel"
	"rawaccel/internal/config"
	"rawaccel/internal/driver"
	"rawaccel/internal/input"
	"rawaccel/internal/monitor"
)

// eventBuffer sits between the epoll reader and the motion loop.
const eventBuffer = 256

// runDaemon wires the settings store, the driver socket, the monitor and the
// input pipeline, and runs them until ctx is canceled or one of them fails.
func runDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	reg := accel.Builtin()

	store := driver.NewStore(reg, config.ExpandPath(cfg.Driver.StateFile), logger)
	if err := store.Load(); err != nil {
		logger.Warn("Could not restore saved settings, using defaults", "error", err)
	}

	var mon *monitor.Monitor
	var points input.PointPublisher
	if cfg.Monitor.Enabled {
		mon = monitor.New(logger, monitor.Config{
			Hub: monitor.HubConfig{
				SendBuf:      cfg.Monitor.SendBuffer,
				BroadcastBuf: cfg.Monitor.BroadcastBuffer,
			},
			PointBuf: cfg.Monitor.PointBuffer,
		}, store.Active)
		points = mon
	}

	devs, err := input.OpenDevices(cfg.Input.Devices, cfg.Input.Grab)
	if err != nil {
		return fmt.Errorf("open input devices: %w (run as root or add the user to the 'input' group)", err)
	}
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	pointer, err := input.CreateVirtualPointer(cfg.Input.UinputPath, cfg.Input.DeviceName)
	if err != nil {
		return fmt.Errorf("create virtual pointer: %w", err)
	}
	defer pointer.Close()

	motion := input.NewMotion(reg, pointer, points, logger)
	motion.Apply(reg, store.Active())

	store.OnApply(func(s accel.DriverSettings) {
		motion.Apply(reg, s)
		if mon != nil {
			mon.PublishSettings(s)
		}
	})

	mode, err := cfg.Driver.Mode()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	srv := driver.NewServer(store, logger)
	g.Go(func() error {
		return srv.Run(ctx, cfg.Driver.SocketPath, mode)
	})

	if mon != nil {
		g.Go(func() error {
			mon.Run(ctx)
			return nil
		})
		g.Go(func() error {
			return mon.ListenAndServe(ctx, cfg.Monitor.Listen, cfg.Monitor.Path)
		})
	}

	events := make(chan input.SourceEvent, eventBuffer)
	g.Go(func() error {
		if err := input.ReadEvents(ctx, devs, events); err != nil {
			return fmt.Errorf("input reader: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return motion.Run(ctx, events)
	})

	listenInfo := []any{
		"devices", cfg.Input.Devices,
		"grab", cfg.Input.Grab,
		"socket", cfg.Driver.SocketPath,
	}
	if mon != nil {
		listenInfo = append(listenInfo, "monitor", cfg.Monitor.Listen+cfg.Monitor.Path)
	}
	logger.Info("Listening", listenInfo...)

	return g.Wait()
}
