package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"rawaccel/internal/accel"
	"rawaccel/internal/curve"
	"rawaccel/internal/profile"
)

var (
	curveProfile string
	curveCount   int
	curveDomain  float64
	curveAxis    string
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Sample the sensitivity and gain curves",
	Long: `Samples the transfer function of the active settings, or of a profile
with --profile, over evenly spaced input speeds. Speeds are printed in
counts/ms, in inches per second using the settings' DPI and in counts per
report using the poll rate.`,
	Args: cobra.NoArgs,
	RunE: runCurve,
}

func init() {
	curveCmd.Flags().StringVarP(&curveProfile, "profile", "p", "", "Sample a TOML profile instead of the active settings")
	curveCmd.Flags().IntVarP(&curveCount, "count", "n", 21, "Number of samples")
	curveCmd.Flags().Float64Var(&curveDomain, "domain", 0, "Highest input speed in counts/ms (default: 50 in/s at the settings' DPI)")
	curveCmd.Flags().StringVar(&curveAxis, "axis", "x", "Axis to print: x or y")
}

func runCurve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var s accel.DriverSettings
	if curveProfile != "" {
		p, err := profile.Load(curveProfile, reg)
		if err != nil {
			return err
		}
		s = p.Resolved()
	} else {
		var err error
		if s, err = newSynchronizer().ReadActive(ctx); err != nil {
			return err
		}
	}

	units := curve.Units{DPI: s.DPI, PollRate: s.PollRate}
	if err := units.Validate(); err != nil {
		return err
	}
	domain := curveDomain
	if domain == 0 {
		domain = units.DefaultDomain()
	}

	axes, err := curve.ComputeSettings(ctx, reg, s, domain, curveCount)
	if err != nil {
		return err
	}

	var samples []curve.Sample
	switch curveAxis {
	case "x":
		samples = axes.X
	case "y":
		samples = axes.Y
	default:
		return fmt.Errorf("unknown axis %q (use x or y)", curveAxis)
	}
	annotated := units.Annotate(samples)

	if jsonOut {
		return printJSON(annotated)
	}

	data := pterm.TableData{{"in (counts/ms)", "in (in/s)", "in (counts/report)", "out (counts/ms)", "out (counts/report)", "sensitivity", "gain"}}
	for _, a := range annotated {
		data = append(data, []string{
			formatFloat(a.InputSpeed),
			formatFloat(a.InputIPS),
			formatFloat(a.InputCounts),
			formatFloat(a.OutputSpeed),
			formatFloat(a.OutputCounts),
			formatFloat(a.SensitivityRatio),
			formatFloat(a.Gain),
		})
	}
	pterm.DefaultSection.Printf("%s axis, %s / %s", curveAxis, reg.Resolve(s.X.Family).Name, reg.Resolve(s.Y.Family).Name)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
