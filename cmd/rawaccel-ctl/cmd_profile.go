package main

import (
	"context"
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"rawaccel/internal/driver"
	"rawaccel/internal/profile"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply PROFILE",
	Short: "Write a TOML profile to the daemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

var exportCmd = &cobra.Command{
	Use:   "export PROFILE",
	Short: "Save the active settings as a TOML profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var watchCmd = &cobra.Command{
	Use:   "watch PROFILE",
	Short: "Apply a profile now and again every time it is saved",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Only validate the profile")
}

func runApply(cmd *cobra.Command, args []string) error {
	p, err := profile.Load(args[0], reg)
	if err != nil {
		return err
	}

	if applyDryRun {
		if errs := p.Validate(reg); len(errs) > 0 {
			return &driver.ValidationFailedError{Errors: errs}
		}
		pterm.Success.Println("Profile is valid")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := applyProfile(ctx, newSynchronizer(), p); err != nil {
		return err
	}
	pterm.Success.Printf("Applied %s\n", args[0])
	return nil
}

func applyProfile(ctx context.Context, sy *driver.Synchronizer, p *profile.Profile) error {
	return sy.WriteArgumentSets(ctx, p.Settings, p.X, p.Y)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := newSynchronizer().ReadActive(ctx)
	if err != nil {
		return err
	}
	if err := profile.Save(args[0], reg, s); err != nil {
		return err
	}
	pterm.Success.Printf("Saved active settings to %s\n", args[0])
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	path := args[0]
	sy := newSynchronizer()

	w, err := profile.NewWatcher(path, reg, logger, profile.DefaultDebounce)
	if err != nil {
		return err
	}

	if p, err := profile.Load(path, reg); err != nil {
		reportError(err)
	} else if err := applyProfile(ctx, sy, p); err != nil {
		reportError(err)
	} else {
		pterm.Success.Printf("Applied %s\n", path)
	}

	pterm.Info.Printf("Watching %s (Ctrl-C to stop)\n", path)
	return w.Run(ctx, func(p *profile.Profile, err error) {
		if err == nil {
			err = applyProfile(ctx, sy, p)
		}
		switch {
		case err == nil:
			pterm.Success.Printf("Applied %s\n", path)
		case errors.Is(err, context.Canceled):
		default:
			reportError(err)
		}
	})
}
