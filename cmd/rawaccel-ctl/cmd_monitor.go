package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"rawaccel/internal/accel"
	"rawaccel/internal/monitor"
)

var monitorURL string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream motion reports and settings changes from the daemon",
	Long: `Connects to the daemon's monitor websocket and prints the settings it
reports on connect, every settings change and the most recent motion report.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorURL, "url", "ws://127.0.0.1:7331/ws", "Monitor websocket URL")
}

// monitorEvent is one frame of the monitor stream.
type monitorEvent struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type monitorPoint struct {
	DX          float64 `json:"dx"`
	DY          float64 `json:"dy"`
	Ms          float64 `json:"ms"`
	OutX        float64 `json:"out_x"`
	OutY        float64 `json:"out_y"`
	InputSpeed  float64 `json:"input_speed"`
	OutputSpeed float64 `json:"output_speed"`
}

type monitorSnapshot struct {
	Settings  accel.DriverSettings `json:"settings"`
	LastPoint *monitorPoint        `json:"last_point"`
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	return streamMonitor(ctx, monitorURL, func(ev monitorEvent) error {
		if jsonOut {
			return printJSON(ev)
		}
		return printMonitorEvent(ev)
	})
}

// streamMonitor calls fn for every frame until ctx is canceled, the daemon
// closes the stream or fn fails.
func streamMonitor(ctx context.Context, rawURL string, fn func(monitorEvent) error) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid monitor URL: %w", err)
	}

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u.Redacted(), err)
	}
	defer conn.Close()
	logger.Info("Monitor connected", "url", u.Redacted())

	errCh := make(chan error, 1)
	go func() {
		for {
			var ev monitorEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err = nil
				}
				errCh <- err
				return
			}
			if err := fn(ev); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			logger.Debug("Monitor close failed", "error", err)
		}
		return nil
	}
}

func printMonitorEvent(ev monitorEvent) error {
	switch ev.Type {
	case monitor.TypeStateInit:
		var snap monitorSnapshot
		if err := json.Unmarshal(ev.Data, &snap); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		if err := renderSettings("Active settings", snap.Settings); err != nil {
			return err
		}
		if snap.LastPoint != nil {
			printPoint(ev.Ts, *snap.LastPoint)
		}
	case monitor.TypeSettingsApplied:
		var s accel.DriverSettings
		if err := json.Unmarshal(ev.Data, &s); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return renderSettings("Settings applied "+ev.Ts.Local().Format(time.TimeOnly), s)
	case monitor.TypeLastPoint:
		var p monitorPoint
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		printPoint(ev.Ts, p)
	default:
		return errors.New("unexpected monitor event " + ev.Type)
	}
	return nil
}

func printPoint(at time.Time, p monitorPoint) {
	pterm.Printf("%s  in (%g, %g) / %sms  out (%s, %s)  %s -> %s counts/ms\n",
		at.Local().Format("15:04:05.000"),
		p.DX, p.DY, formatFloat(p.Ms),
		formatFloat(p.OutX), formatFloat(p.OutY),
		formatFloat(p.InputSpeed), formatFloat(p.OutputSpeed))
}
