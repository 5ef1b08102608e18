// Package config holds the YAML configuration of the rawacceld daemon.
//
// Defaults and validation live here so the rest of the daemon can assume a
// well-formed config. The file is the primary surface; flags only override.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"rawaccel/internal/logging"
)

// Config is the top-level YAML configuration.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Driver  DriverConfig  `yaml:"driver"`
	Monitor MonitorConfig `yaml:"monitor"`
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	// Evdev nodes of the physical pointers to accelerate.
	Devices []string `yaml:"devices"`

	// Grab takes the devices exclusively so the desktop only sees the virtual pointer.
	Grab bool `yaml:"grab"`

	UinputPath string `yaml:"uinput_path"`
	DeviceName string `yaml:"device_name"`
}

type DriverConfig struct {
	SocketPath string `yaml:"socket_path"`

	// SocketMode is an octal permission string such as "0660".
	SocketMode string `yaml:"socket_mode"`

	// StateFile keeps the active record across restarts. Empty disables persistence.
	StateFile string `yaml:"state_file"`

	TimeoutMS int `yaml:"timeout_ms"`
}

type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`

	PointBuffer     int `yaml:"point_buffer"`
	SendBuffer      int `yaml:"send_buffer"`
	BroadcastBuffer int `yaml:"broadcast_buffer"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Devices:    []string{"/dev/input/event0"},
			Grab:       true,
			UinputPath: "/dev/uinput",
			DeviceName: "rawaccel virtual pointer",
		},
		Driver: DriverConfig{
			SocketPath: "/run/rawaccel.sock",
			SocketMode: "0660",
			StateFile:  "/var/lib/rawaccel/settings.json",
			TimeoutMS:  2000,
		},
		Monitor: MonitorConfig{
			Enabled:         true,
			Listen:          "127.0.0.1:7331",
			Path:            "/ws",
			PointBuffer:     256,
			SendBuffer:      32,
			BroadcastBuffer: 128,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values to apply over the loaded config. A nil
// pointer means the flag was not set.
type FlagOverrides struct {
	InputDevice *string
	InputGrab   *bool
	UinputPath  *string

	SocketPath *string
	StateFile  *string

	MonitorEnabled *bool
	MonitorListen  *string

	LogLevel *string
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even when
// it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.InputGrab != nil {
		cfg.Input.Grab = *o.InputGrab
	}
	if o.UinputPath != nil {
		cfg.Input.UinputPath = *o.UinputPath
	}

	if o.SocketPath != nil {
		cfg.Driver.SocketPath = *o.SocketPath
	}
	if o.StateFile != nil {
		cfg.Driver.StateFile = *o.StateFile
	}

	if o.MonitorEnabled != nil {
		cfg.Monitor.Enabled = *o.MonitorEnabled
	}
	if o.MonitorListen != nil {
		cfg.Monitor.Listen = *o.MonitorListen
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants after defaults, file and overrides have
// been applied. It returns the first problem found.
func (c *Config) Validate() error {
	// Input
	if len(c.Input.Devices) == 0 {
		return errors.New("input.devices must not be empty")
	}
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if c.Input.UinputPath == "" {
		return errors.New("input.uinput_path must not be empty")
	}
	if c.Input.DeviceName == "" {
		return errors.New("input.device_name must not be empty")
	}

	// Driver
	if c.Driver.SocketPath == "" {
		return errors.New("driver.socket_path must not be empty")
	}
	if _, err := c.Driver.Mode(); err != nil {
		return err
	}
	if c.Driver.TimeoutMS <= 0 {
		return errors.New("driver.timeout_ms must be > 0")
	}

	// Monitor
	if c.Monitor.Enabled {
		if c.Monitor.Listen == "" {
			return errors.New("monitor.enabled is true but monitor.listen is empty")
		}
		if c.Monitor.Path == "" || c.Monitor.Path[0] != '/' {
			return errors.New("monitor.path must start with /")
		}
	}
	if c.Monitor.PointBuffer < 0 || c.Monitor.SendBuffer < 0 || c.Monitor.BroadcastBuffer < 0 {
		return errors.New("monitor buffer sizes must be >= 0")
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// Mode parses SocketMode.
func (d DriverConfig) Mode() (os.FileMode, error) {
	if d.SocketMode == "" {
		return 0o660, nil
	}
	v, err := strconv.ParseUint(d.SocketMode, 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("driver.socket_mode %q must be an octal permission like 0660", d.SocketMode)
	}
	return os.FileMode(v), nil
}

// Timeout returns the driver call timeout.
func (d DriverConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
