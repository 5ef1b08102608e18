package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"rawaccel/internal/accel"
)

// Store holds the settings the driver is running. Readers on the motion path
// load the active record without locking; writers are serialised.
type Store struct {
	reg       *accel.Registry
	statePath string
	logger    *slog.Logger

	mu      sync.Mutex // serialises Apply
	active  atomic.Pointer[accel.DriverSettings]
	applied []func(accel.DriverSettings)
}

// NewStore starts with accel.DefaultSettings. statePath may be empty to
// disable persistence.
func NewStore(reg *accel.Registry, statePath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{reg: reg, statePath: statePath, logger: logger}
	def := accel.DefaultSettings()
	s.active.Store(&def)
	return s
}

// Load restores the record persisted by a previous run. A missing file is not
// an error. A corrupt or invalid file is reported and the defaults are kept.
func (s *Store) Load() error {
	if s.statePath == "" {
		return nil
	}
	b, err := os.ReadFile(s.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("No saved settings, using defaults", "path", s.statePath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}

	settings, err := accel.DecodeSettings(b)
	if err != nil {
		return fmt.Errorf("decode state file %s: %w", s.statePath, err)
	}
	if errs := settings.Validate(s.reg); len(errs) > 0 {
		return fmt.Errorf("state file %s: %w", s.statePath, &ValidationFailedError{Errors: errs})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active.Store(&settings)
	s.logger.Info("Restored saved settings", "path", s.statePath)
	return nil
}

// Active returns a copy of the running settings.
func (s *Store) Active() accel.DriverSettings {
	return *s.active.Load()
}

// OnApply registers fn to run after every successful Apply, in apply order.
// fn must not block.
func (s *Store) OnApply(fn func(accel.DriverSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, fn)
}

// Apply validates and installs settings as a whole. A refused record returns
// *WriteRejectedError and leaves the previous record active.
func (s *Store) Apply(settings accel.DriverSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if errs := settings.Validate(s.reg); len(errs) > 0 {
		reasons := make([]string, len(errs))
		for i, e := range errs {
			reasons[i] = e.Error()
		}
		s.logger.Warn("Rejected settings", "reasons", reasons)
		return &WriteRejectedError{Reasons: reasons}
	}

	if err := s.persist(settings); err != nil {
		return err
	}

	s.active.Store(&settings)
	s.logger.Info("Applied settings",
		"mode", settings.Directionality.Mode,
		"family_x", s.reg.Resolve(settings.X.Family).Name,
		"family_y", s.reg.Resolve(settings.Y.Family).Name,
		"sensitivity", settings.Sensitivity,
	)
	for _, fn := range s.applied {
		fn(settings)
	}
	return nil
}

// persist writes the record next to the state file and renames it into place.
func (s *Store) persist(settings accel.DriverSettings) error {
	if s.statePath == "" {
		return nil
	}
	b, err := settings.Encode()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.statePath), ".rawaccel-state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.statePath); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
