//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rawaccel/internal/config"
	"rawaccel/internal/logging"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("rawacceld v%s\n", version)
	fmt.Println("Pointer acceleration daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  rawacceld [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Grabs the configured pointer devices, applies the active acceleration")
	fmt.Println("  settings to their motion and re-emits it on a virtual pointer. Settings")
	fmt.Println("  are read and written over a Unix socket by rawaccel-ctl.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Evdev node of the pointer to accelerate (overrides input.devices)")
	fmt.Println()
	fmt.Println("  -grab")
	fmt.Println("        Grab the input devices exclusively (default true)")
	fmt.Println()
	fmt.Println("  -uinput string")
	fmt.Println("        uinput node used for the virtual pointer (default \"/dev/uinput\")")
	fmt.Println()
	fmt.Println("  -socket string")
	fmt.Println("        Unix socket for settings requests (default \"/run/rawaccel.sock\")")
	fmt.Println()
	fmt.Println("  -state-file string")
	fmt.Println("        File the active settings are saved to; empty disables saving")
	fmt.Println()
	fmt.Println("  -monitor")
	fmt.Println("        Serve the motion monitor websocket (default true)")
	fmt.Println()
	fmt.Println("  -monitor-listen string")
	fmt.Println("        Monitor listen address (default \"127.0.0.1:7331\")")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the input devices and write access to /dev/uinput")
	fmt.Println("  - Send SIGINT or SIGTERM to stop; the grabbed devices are released on exit")
	fmt.Println()
}

func main() {
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		inputDevice   = flag.String("input-device", "", "Evdev node of the pointer to accelerate")
		grab          = flag.Bool("grab", true, "Grab the input devices exclusively")
		uinputPath    = flag.String("uinput", "/dev/uinput", "uinput node used for the virtual pointer")
		socketPath    = flag.String("socket", "/run/rawaccel.sock", "Unix socket for settings requests")
		stateFile     = flag.String("state-file", "", "File the active settings are saved to")
		monitorOn     = flag.Bool("monitor", true, "Serve the motion monitor websocket")
		monitorListen = flag.String("monitor-listen", "127.0.0.1:7331", "Monitor listen address")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion   = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var o config.FlagOverrides
	if set["input-device"] {
		o.InputDevice = inputDevice
	}
	if set["grab"] {
		o.InputGrab = grab
	}
	if set["uinput"] {
		o.UinputPath = uinputPath
	}
	if set["socket"] {
		o.SocketPath = socketPath
	}
	if set["state-file"] {
		o.StateFile = stateFile
	}
	if set["monitor"] {
		o.MonitorEnabled = monitorOn
	}
	if set["monitor-listen"] {
		o.MonitorListen = monitorListen
	}
	if set["log-level"] {
		o.LogLevel = logLevelStr
	}
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.Setup(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debug("Starting rawacceld", "version", version)
	if err := runDaemon(ctx, cfg, logger); err != nil {
		logger.Error("Daemon stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Shut down")
}
