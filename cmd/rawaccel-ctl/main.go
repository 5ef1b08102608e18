// Command rawaccel-ctl reads, edits and writes the settings of a running
// rawacceld, and samples the resulting curves.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rawaccel/internal/accel"
	"rawaccel/internal/driver"
	"rawaccel/internal/logging"
)

var (
	// Global flags
	socketPath string
	timeout    time.Duration
	logLevel   string
	jsonOut    bool

	logger *slog.Logger
	reg    = accel.Builtin()
)

var rootCmd = &cobra.Command{
	Use:   "rawaccel-ctl",
	Short: "Control the rawaccel pointer acceleration daemon",
	Long: `rawaccel-ctl talks to rawacceld over its Unix socket.

Settings are validated locally before they are sent. A write either replaces
the daemon's settings as a whole or leaves them untouched.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger = logging.New(os.Stderr, level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/run/rawaccel.sock", "rawacceld socket path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", driver.DefaultTimeout, "Driver call timeout")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: error, warn, info, debug")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(familiesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(defaultsCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(curveCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(monitorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// newSynchronizer connects a Synchronizer to the daemon socket. State changes
// are logged at debug level.
func newSynchronizer() *driver.Synchronizer {
	client := driver.NewClient(socketPath, timeout, logger)
	sy := driver.NewSynchronizer(client, reg, logger)
	sy.OnStateChange(func(st driver.State) {
		logger.Debug("Synchronizer state", "state", st.String())
	})
	return sy
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := jsonEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
