package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"rawaccel/internal/accel"
)

var setCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Change some settings and write the result",
	Long: `Reads the active settings, applies the assignments and writes the whole
record back.

Axis keys are prefixed with x. or y.; the family is chosen by name:
  rawaccel-ctl set x.family=Motivity x.motivity=1.5 x.synchronous_speed=8

Global keys: dpi, poll_rate, sensitivity, rotation, minimum_time, mode,
lp_norm, domain_x, domain_y, range_x, range_y.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sy := newSynchronizer()
	s, err := sy.ReadActive(ctx)
	if err != nil {
		return err
	}

	x, y := accel.ArgumentSets(reg, s)
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("%q is not a key=value assignment", arg)
		}
		if err := applyAssignment(&s, x, y, key, raw); err != nil {
			return err
		}
	}

	if err := sy.WriteArgumentSets(ctx, s, x, y); err != nil {
		return err
	}
	pterm.Success.Println("Settings applied")
	return nil
}

// applyAssignment sets one key. Axis field text is stored as typed and
// checked when the record is validated; global values must parse here.
func applyAssignment(s *accel.DriverSettings, x, y *accel.ArgumentSet, key, raw string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	raw = strings.TrimSpace(raw)

	if axis, field, ok := strings.Cut(key, "."); ok {
		var set *accel.ArgumentSet
		switch axis {
		case "x":
			set = x
		case "y":
			set = y
		default:
			return fmt.Errorf("unknown axis %q in %q (use x or y)", axis, key)
		}

		if field == "family" {
			family, ok := reg.Lookup(raw)
			if !ok {
				return fmt.Errorf("unknown curve family %q (known: %s)", raw, strings.Join(reg.Names(), ", "))
			}
			set.ApplyFamilyDefaults(family)
			return nil
		}
		f, err := accel.ParseField(field)
		if err != nil {
			return err
		}
		set.SetField(f, raw)
		return nil
	}

	d := &s.Directionality
	switch key {
	case "dpi", "poll_rate":
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %q is not a whole number", key, raw)
		}
		if key == "dpi" {
			s.DPI = uint32(v)
		} else {
			s.PollRate = uint32(v)
		}
		return nil
	case "mode":
		m, err := accel.ParseMode(raw)
		if err != nil {
			return err
		}
		d.Mode = m
		return nil
	}

	target := map[string]*float64{
		"sensitivity":  &s.Sensitivity,
		"rotation":     &s.Rotation,
		"minimum_time": &s.MinimumTime,
		"lp_norm":      &d.LpNorm,
		"domain_x":     &d.DomainX,
		"domain_y":     &d.DomainY,
		"range_x":      &d.RangeX,
		"range_y":      &d.RangeY,
	}[key]
	if target == nil {
		return fmt.Errorf("unknown setting %q (axis fields need an x. or y. prefix)", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", key, raw)
	}
	*target = v
	return nil
}
