package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rawaccel/internal/accel"
	"rawaccel/internal/driver"
	"rawaccel/internal/profile"
)

func TestApplyAssignment_AxisAndGlobal(t *testing.T) {
	s := accel.DefaultSettings()
	x, y := accel.ArgumentSets(reg, s)

	assign := []string{
		"x.motivity=1.8",
		"x.family=Motivity",
		"y.family=Gudermannian",
		"y.sync_speed=6",
		"mode=by_component",
		"lp_norm=inf",
		"sensitivity=1.25",
		"dpi=1600",
		"range_x=0.5",
		"domain_x=1",
	}
	for _, a := range assign {
		key, raw, _ := strings.Cut(a, "=")
		if err := applyAssignment(&s, x, y, key, raw); err != nil {
			t.Fatalf("applyAssignment(%q): %v", a, err)
		}
	}

	if got := x.Value(accel.FieldMotivity); got != 1.8 {
		t.Errorf("x.motivity=%v, want 1.8 kept across the family switch", got)
	}
	if x.Family().Name != "Motivity" || y.Family().Name != "Gudermannian" {
		t.Errorf("families=%s/%s", x.Family().Name, y.Family().Name)
	}
	if got := y.Value(accel.FieldSynchronousSpeed); got != 6 {
		t.Errorf("y.synchronous_speed=%v, want 6", got)
	}
	if s.Directionality.Mode != accel.ByComponent || !math.IsInf(s.Directionality.LpNorm, 1) {
		t.Errorf("directionality=%+v", s.Directionality)
	}
	if s.Sensitivity != 1.25 || s.DPI != 1600 {
		t.Errorf("sensitivity/dpi=%v/%d", s.Sensitivity, s.DPI)
	}

	s.X, s.Y = x.Args(), y.Args()
	if errs := s.Validate(reg); len(errs) != 0 {
		t.Errorf("Validate()=%v, want none", errs)
	}
}

func TestApplyAssignment_Errors(t *testing.T) {
	tests := []struct {
		key, raw string
		want     string
	}{
		{"z.motivity", "2", "unknown axis"},
		{"x.family", "Linear", "unknown curve family"},
		{"x.acceleration", "1", "unknown field"},
		{"motivity", "2", "need an x. or y. prefix"},
		{"dpi", "-5", "not a whole number"},
		{"rotation", "left", "not a number"},
		{"mode", "sideways", "invalid directionality mode"},
	}
	for _, tc := range tests {
		s := accel.DefaultSettings()
		x, y := accel.ArgumentSets(reg, s)
		err := applyAssignment(&s, x, y, tc.key, tc.raw)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("applyAssignment(%s=%s) err=%v, want containing %q", tc.key, tc.raw, err, tc.want)
		}
	}
}

// Axis text that does not parse is kept and reported at write time.
func TestApplyAssignment_BadAxisTextDeferred(t *testing.T) {
	s := accel.DefaultSettings()
	x, y := accel.ArgumentSets(reg, s)
	if err := applyAssignment(&s, x, y, "x.family", "Motivity"); err != nil {
		t.Fatal(err)
	}
	if err := applyAssignment(&s, x, y, "x.gamma", "steep"); err != nil {
		t.Fatalf("bad axis text should be deferred, got %v", err)
	}
	errs := x.Validate()
	if len(errs) != 1 || errs[0].Field != "gamma" {
		t.Errorf("Validate()=%v, want one gamma error", errs)
	}
}

func startDaemonSocket(t *testing.T) (*driver.Store, *driver.Synchronizer) {
	t.Helper()
	logger = slog.New(slog.DiscardHandler)
	dir := t.TempDir()
	sock := filepath.Join(dir, "rawaccel.sock")

	store := driver.NewStore(reg, filepath.Join(dir, "state.json"), logger)
	srv := driver.NewServer(store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, sock, 0o600) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("server: %v", err)
		}
	})

	socketPath, timeout = sock, time.Second
	sy := newSynchronizer()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := sy.ReadActive(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("driver socket never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return store, sy
}

func TestApplyProfile_ReachesDaemon(t *testing.T) {
	store, sy := startDaemonSocket(t)

	p, err := profile.Decode([]byte(`
sensitivity = 0.8

[x]
family = "Motivity"
motivity = 1.4
`), reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := applyProfile(context.Background(), sy, p); err != nil {
		t.Fatalf("applyProfile: %v", err)
	}

	active := store.Active()
	if active.Sensitivity != 0.8 || active.X.Get(accel.FieldMotivity) != 1.4 {
		t.Errorf("active=%+v, want the profile's values", active)
	}
}

func TestApplyProfile_InvalidNeverSent(t *testing.T) {
	store, sy := startDaemonSocket(t)
	before := store.Active()

	p, err := profile.Decode([]byte("[x]\nfamily = \"Motivity\"\nmotivity = 0.5\n"), reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	err = applyProfile(context.Background(), sy, p)
	if !errors.Is(err, driver.ErrValidationFailed) {
		t.Fatalf("applyProfile err=%v, want ErrValidationFailed", err)
	}
	if after := store.Active(); after != before {
		t.Errorf("store changed after a local validation failure: %+v", after)
	}
}
