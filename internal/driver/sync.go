package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"rawaccel/internal/accel"
)

// State is the phase of a settings write.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateRejected
	StateWriting
	StateApplied
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRejected:
		return "rejected"
	case StateWriting:
		return "writing"
	case StateApplied:
		return "applied"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Synchronizer reads the active settings from a Driver and writes new ones.
// Only one write may be in flight; a second caller fails fast instead of queuing.
type Synchronizer struct {
	driver Driver
	reg    *accel.Registry
	logger *slog.Logger

	busy  atomic.Bool
	state atomic.Int32

	obsMu    sync.Mutex
	observer func(State)
}

func NewSynchronizer(d Driver, reg *accel.Registry, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synchronizer{driver: d, reg: reg, logger: logger}
}

// OnStateChange sets the observer called on every transition. It runs on the
// writing goroutine and must not call back into the Synchronizer.
func (s *Synchronizer) OnStateChange(fn func(State)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observer = fn
}

// State returns the current phase.
func (s *Synchronizer) State() State { return State(s.state.Load()) }

func (s *Synchronizer) setState(st State) {
	s.state.Store(int32(st))
	s.obsMu.Lock()
	fn := s.observer
	s.obsMu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// ReadActive returns the settings the driver is running.
func (s *Synchronizer) ReadActive(ctx context.Context) (accel.DriverSettings, error) {
	settings, err := s.driver.Read(ctx)
	if err != nil {
		return accel.DriverSettings{}, fmt.Errorf("read active settings: %w", err)
	}
	return settings, nil
}

// WriteSettings validates settings and, if valid, issues a single write.
//
// It returns *ValidationFailedError without touching the driver when any
// field is out of bounds, ErrWriteInProgress when another write is running,
// and *WriteRejectedError or ErrWriteRejected when the driver refuses.
// ctx is only checked before the driver call is made.
func (s *Synchronizer) WriteSettings(ctx context.Context, settings accel.DriverSettings) error {
	return s.write(ctx, settings, nil)
}

// WriteArgumentSets writes base with its axes replaced by x and y. Text that
// failed to parse in either set is reported as a validation failure.
func (s *Synchronizer) WriteArgumentSets(ctx context.Context, base accel.DriverSettings, x, y *accel.ArgumentSet) error {
	base.X = x.Args()
	base.Y = y.Args()

	var errs []accel.ValidationError
	errs = append(errs, accel.WithAxis(accel.AxisX, x.Validate())...)
	if base.Directionality.Mode == accel.ByComponent {
		errs = append(errs, accel.WithAxis(accel.AxisY, y.Validate())...)
	}
	return s.write(ctx, base, errs)
}

func (s *Synchronizer) write(ctx context.Context, settings accel.DriverSettings, pre []accel.ValidationError) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrWriteInProgress
	}
	defer func() {
		s.setState(StateIdle)
		s.busy.Store(false)
	}()

	s.setState(StateValidating)
	errs := mergeValidation(pre, settings.Validate(s.reg))
	if len(errs) > 0 {
		s.setState(StateRejected)
		s.logger.Debug("Settings failed validation", "errors", len(errs))
		return &ValidationFailedError{Errors: errs}
	}

	if err := ctx.Err(); err != nil {
		s.setState(StateFailed)
		return err
	}

	s.setState(StateWriting)
	if err := s.driver.Write(ctx, settings); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("write settings: %w", err)
	}
	s.setState(StateApplied)
	return nil
}

// mergeValidation appends errs to pre, skipping fields pre already reports.
func mergeValidation(pre, errs []accel.ValidationError) []accel.ValidationError {
	seen := make(map[string]bool, len(pre))
	for _, e := range pre {
		seen[string(e.Axis)+"."+e.Field] = true
	}
	out := pre
	for _, e := range errs {
		if !seen[string(e.Axis)+"."+e.Field] {
			out = append(out, e)
		}
	}
	return out
}
