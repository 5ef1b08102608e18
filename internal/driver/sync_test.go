package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"rawaccel/internal/accel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDriver is a test double for Driver.
type fakeDriver struct {
	mu      sync.Mutex
	active  accel.DriverSettings
	writes  int
	reasons []string
	reject  bool
	readErr error

	// When block is non-nil, Write signals entered and waits for block to close.
	entered chan struct{}
	block   chan struct{}
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{active: accel.DefaultSettings()}
}

func (f *fakeDriver) Read(ctx context.Context) (accel.DriverSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return accel.DriverSettings{}, f.readErr
	}
	return f.active, nil
}

func (f *fakeDriver) Write(ctx context.Context, s accel.DriverSettings) error {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.reject {
		if len(f.reasons) == 0 {
			return ErrWriteRejected
		}
		return &WriteRejectedError{Reasons: f.reasons}
	}
	f.active = s
	return nil
}

func (f *fakeDriver) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func motivitySettings() accel.DriverSettings {
	s := accel.DefaultSettings()
	s.X = accel.Motivity().Defaults
	s.X.Motivity = 1.8
	s.X.SynchronousSpeed = 12
	s.Rotation = 2.5
	return s
}

// recordStates collects every state the synchronizer passes through.
func recordStates(s *Synchronizer) func() []State {
	var mu sync.Mutex
	var states []State
	s.OnStateChange(func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})
	return func() []State {
		mu.Lock()
		defer mu.Unlock()
		return append([]State(nil), states...)
	}
}

func TestSynchronizer_WriteThenReadRoundTrip(t *testing.T) {
	drv := newFakeDriver()
	sy := NewSynchronizer(drv, accel.Builtin(), nil)
	states := recordStates(sy)

	want := motivitySettings()
	if err := sy.WriteSettings(context.Background(), want); err != nil {
		t.Fatalf("WriteSettings: %v", err)
	}
	got, err := sy.ReadActive(context.Background())
	if err != nil {
		t.Fatalf("ReadActive: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("read back mismatch (-want +got):\n%s", diff)
	}

	wantStates := []State{StateValidating, StateWriting, StateApplied, StateIdle}
	if diff := cmp.Diff(wantStates, states()); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestSynchronizer_ValidationFailureMakesNoDriverCall(t *testing.T) {
	drv := newFakeDriver()
	sy := NewSynchronizer(drv, accel.Builtin(), nil)
	states := recordStates(sy)

	bad := motivitySettings()
	bad.X.Motivity = 0.5
	bad.X.Gamma = -1

	err := sy.WriteSettings(context.Background(), bad)
	var vf *ValidationFailedError
	if !errors.As(err, &vf) {
		t.Fatalf("expected *ValidationFailedError, got %v", err)
	}
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("errors.Is(err, ErrValidationFailed) = false")
	}
	if len(vf.Errors) != 2 || vf.Errors[0].Field != "motivity" || vf.Errors[1].Field != "gamma" {
		t.Errorf("errors = %v", vf.Errors)
	}
	if n := drv.writeCount(); n != 0 {
		t.Fatalf("driver saw %d writes, want 0", n)
	}

	wantStates := []State{StateValidating, StateRejected, StateIdle}
	if diff := cmp.Diff(wantStates, states()); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestSynchronizer_RejectionKeepsPreviousSettings(t *testing.T) {
	drv := newFakeDriver()
	sy := NewSynchronizer(drv, accel.Builtin(), nil)

	before, err := sy.ReadActive(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	drv.reject = true
	drv.reasons = []string{"device busy"}
	err = sy.WriteSettings(context.Background(), motivitySettings())

	var rej *WriteRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *WriteRejectedError, got %v", err)
	}
	if diff := cmp.Diff([]string{"device busy"}, rej.Reasons); diff != "" {
		t.Errorf("reasons mismatch:\n%s", diff)
	}
	if !errors.Is(err, ErrWriteRejected) {
		t.Errorf("errors.Is(err, ErrWriteRejected) = false")
	}

	after, err := sy.ReadActive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("settings changed after rejection:\n%s", diff)
	}
	if sy.State() != StateIdle {
		t.Errorf("state=%v, want idle", sy.State())
	}
}

func TestSynchronizer_GenericRejection(t *testing.T) {
	drv := newFakeDriver()
	drv.reject = true
	sy := NewSynchronizer(drv, accel.Builtin(), nil)

	err := sy.WriteSettings(context.Background(), motivitySettings())
	if !errors.Is(err, ErrWriteRejected) {
		t.Fatalf("expected ErrWriteRejected, got %v", err)
	}
	var rej *WriteRejectedError
	if errors.As(err, &rej) {
		t.Errorf("generic rejection should not carry reasons, got %v", rej.Reasons)
	}
}

// TestSynchronizer_ConcurrentWriteFailsFast issues a second write while the
// first is blocked inside the driver.
func TestSynchronizer_ConcurrentWriteFailsFast(t *testing.T) {
	drv := newFakeDriver()
	drv.entered = make(chan struct{})
	drv.block = make(chan struct{})
	sy := NewSynchronizer(drv, accel.Builtin(), nil)

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- sy.WriteSettings(context.Background(), motivitySettings())
	}()

	select {
	case <-drv.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first write never reached the driver")
	}
	if sy.State() != StateWriting {
		t.Errorf("state=%v, want writing", sy.State())
	}

	if err := sy.WriteSettings(context.Background(), accel.DefaultSettings()); !errors.Is(err, ErrWriteInProgress) {
		t.Fatalf("second write: got %v, want ErrWriteInProgress", err)
	}

	close(drv.block)
	if err := <-firstErr; err != nil {
		t.Fatalf("first write: %v", err)
	}
	if n := drv.writeCount(); n != 1 {
		t.Fatalf("driver saw %d writes, want exactly 1", n)
	}

	// The slot is free again.
	drv.block = nil
	if err := sy.WriteSettings(context.Background(), accel.DefaultSettings()); err != nil {
		t.Fatalf("third write: %v", err)
	}
}

func TestSynchronizer_CanceledBeforeDriverCall(t *testing.T) {
	drv := newFakeDriver()
	sy := NewSynchronizer(drv, accel.Builtin(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sy.WriteSettings(ctx, motivitySettings()); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if n := drv.writeCount(); n != 0 {
		t.Fatalf("driver saw %d writes, want 0", n)
	}
}

func TestSynchronizer_ReadUnavailable(t *testing.T) {
	drv := newFakeDriver()
	drv.readErr = unavailable(errors.New("no such file"))
	sy := NewSynchronizer(drv, accel.Builtin(), nil)

	if _, err := sy.ReadActive(context.Background()); !errors.Is(err, ErrDriverUnavailable) {
		t.Fatalf("got %v, want ErrDriverUnavailable", err)
	}
}

func TestSynchronizer_WriteArgumentSetsReportsParseErrors(t *testing.T) {
	drv := newFakeDriver()
	reg := accel.Builtin()
	sy := NewSynchronizer(drv, reg, nil)

	base := accel.DefaultSettings()
	x, y := accel.ArgumentSets(reg, base)
	x.ApplyFamilyDefaults(accel.Motivity())
	x.SetField(accel.FieldGamma, "fast")

	err := sy.WriteArgumentSets(context.Background(), base, x, y)
	var vf *ValidationFailedError
	if !errors.As(err, &vf) {
		t.Fatalf("expected *ValidationFailedError, got %v", err)
	}
	if len(vf.Errors) != 1 || vf.Errors[0].Axis != accel.AxisX || vf.Errors[0].Field != "gamma" {
		t.Fatalf("errors = %v", vf.Errors)
	}
	if drv.writeCount() != 0 {
		t.Fatalf("driver was called")
	}

	x.SetField(accel.FieldGamma, "2")
	if err := sy.WriteArgumentSets(context.Background(), base, x, y); err != nil {
		t.Fatalf("WriteArgumentSets: %v", err)
	}
	got, _ := sy.ReadActive(context.Background())
	if got.X.Family != accel.Motivity().Index || got.X.Gamma != 2 {
		t.Errorf("active x = %+v", got.X)
	}
}
