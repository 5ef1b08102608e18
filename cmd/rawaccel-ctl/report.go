package main

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/pterm/pterm"

	"rawaccel/internal/accel"
	"rawaccel/internal/driver"
)

func jsonEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

// reportError prints err the way the user can act on it.
func reportError(err error) {
	var vf *driver.ValidationFailedError
	var rej *driver.WriteRejectedError

	switch {
	case errors.As(err, &vf):
		pterm.Error.Println("Settings are invalid; nothing was sent to the driver")
		renderValidation(vf.Errors)
	case errors.As(err, &rej):
		pterm.Error.Println("The driver rejected the settings and kept its previous ones")
		for _, r := range rej.Reasons {
			pterm.Println("  - " + r)
		}
	case errors.Is(err, driver.ErrWriteRejected):
		pterm.Error.Println("The driver rejected the settings and kept its previous ones")
	case errors.Is(err, driver.ErrWriteInProgress):
		pterm.Warning.Println("Another write is in progress; try again")
	case errors.Is(err, driver.ErrDriverUnavailable):
		pterm.Error.Printf("Driver unavailable at %s: %v\n", socketPath, err)
		pterm.Info.Println("Is rawacceld running, and can this user open its socket?")
	default:
		pterm.Error.Println(err.Error())
	}
}

func renderValidation(errs []accel.ValidationError) {
	data := pterm.TableData{{"Axis", "Field", "Problem"}}
	for _, e := range errs {
		data = append(data, []string{string(e.Axis), e.Field, e.Reason})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// renderSettings prints s as a table of global values followed by one column per axis.
func renderSettings(title string, s accel.DriverSettings) error {
	pterm.DefaultSection.Println(title)

	d := s.Directionality
	global := pterm.TableData{
		{"Setting", "Value"},
		{"dpi", strconv.FormatUint(uint64(s.DPI), 10)},
		{"poll_rate", strconv.FormatUint(uint64(s.PollRate), 10)},
		{"sensitivity", formatFloat(s.Sensitivity)},
		{"rotation", formatFloat(s.Rotation)},
		{"minimum_time", formatFloat(s.MinimumTime)},
		{"mode", d.Mode.String()},
		{"lp_norm", formatFloat(d.LpNorm)},
		{"domain", formatFloat(d.DomainX) + " / " + formatFloat(d.DomainY)},
		{"range", formatFloat(d.RangeX) + " / " + formatFloat(d.RangeY)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(global).Render(); err != nil {
		return err
	}

	fx, fy := reg.Resolve(s.X.Family), reg.Resolve(s.Y.Family)
	axes := pterm.TableData{{"Field", "X", "Y"}}
	axes = append(axes, []string{"family", fx.Name, fy.Name})
	for _, f := range accel.Fields() {
		if !fx.Active(f) && !fy.Active(f) {
			continue
		}
		axes = append(axes, []string{f.String(), axisValue(fx, s.X, f), axisValue(fy, s.Y, f)})
	}
	if s.Directionality.Mode == accel.Whole {
		pterm.Info.Println("Whole mode: the Y column is not used")
	}
	return pterm.DefaultTable.WithHasHeader().WithData(axes).Render()
}

func axisValue(family accel.Family, args accel.AccelArgs, f accel.Field) string {
	if !family.Active(f) {
		return "-"
	}
	return formatFloat(args.Get(f))
}
