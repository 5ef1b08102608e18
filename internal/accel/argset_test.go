package accel

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestArgumentSet_HiddenFieldsResetOnFamilySwitch checks that values typed under
// one family never leak into another family that hides them.
func TestArgumentSet_HiddenFieldsResetOnFamilySwitch(t *testing.T) {
	s := NewArgumentSet(Motivity())
	s.SetField(FieldMotivity, "3.5")
	s.SetField(FieldGamma, "2")

	s.ApplyFamilyDefaults(Off())
	if got, want := s.Value(FieldMotivity), Off().Defaults.Motivity; got != want {
		t.Errorf("motivity after switching to Off = %v, want default %v", got, want)
	}
	if got := s.Args().Family; got != Off().Index {
		t.Errorf("family index = %d, want %d", got, Off().Index)
	}
}

// TestArgumentSet_VisibleEditsSurviveFamilySwitch checks fields shared by both families.
func TestArgumentSet_VisibleEditsSurviveFamilySwitch(t *testing.T) {
	s := NewArgumentSet(Motivity())
	s.SetField(FieldSynchronousSpeed, " 7.25 ")

	s.ApplyFamilyDefaults(Gudermannian())
	if got := s.Value(FieldSynchronousSpeed); got != 7.25 {
		t.Errorf("synchronous speed = %v, want 7.25", got)
	}
	if got, want := s.Value(FieldGamma), Gudermannian().Defaults.Gamma; got != want {
		t.Errorf("unedited gamma = %v, want default %v", got, want)
	}
}

func TestArgumentSet_SensitivitySurvivesFamilySwitch(t *testing.T) {
	s := NewArgumentSet(Motivity())
	s.SetValue(FieldSensitivity, 0.75)
	s.ApplyFamilyDefaults(Off())
	if got := s.Value(FieldSensitivity); got != 0.75 {
		t.Errorf("sensitivity = %v, want 0.75", got)
	}
}

func TestArgumentSet_ValidateReportsBoundsAndParseErrors(t *testing.T) {
	s := NewArgumentSet(Motivity())
	if errs := s.Validate(); len(errs) != 0 {
		t.Fatalf("defaults should be valid, got %v", errs)
	}

	s.SetField(FieldMotivity, "1")
	s.SetField(FieldGamma, "abc")
	s.SetValue(FieldSynchronousSpeed, math.NaN())

	got := s.Validate()
	fields := make([]string, len(got))
	for i, e := range got {
		fields[i] = e.Field
	}
	want := []string{"motivity", "synchronous_speed", "gamma"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("validation fields mismatch (-want +got):\n%s", diff)
	}
	if got[0].Reason != "must be greater than 1" {
		t.Errorf("motivity reason = %q", got[0].Reason)
	}

	// A good value clears the parse error.
	s.SetField(FieldGamma, "0.5")
	s.SetValue(FieldSynchronousSpeed, 4)
	s.SetValue(FieldMotivity, 1.2)
	if errs := s.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid set, got %v", errs)
	}
}

func TestArgumentSet_HiddenParseErrorIgnored(t *testing.T) {
	s := NewArgumentSet(Motivity())
	s.SetField(FieldGamma, "oops")
	s.ApplyFamilyDefaults(Off())
	if errs := s.Validate(); len(errs) != 0 {
		t.Fatalf("hidden field errors must be dropped, got %v", errs)
	}
}

func TestArgumentSetFrom_KeepsDriverValues(t *testing.T) {
	args := Motivity().Defaults
	args.Motivity = 4
	s := ArgumentSetFrom(Motivity(), args)

	s.ApplyFamilyDefaults(Gudermannian())
	if got := s.Value(FieldMotivity); got != 4 {
		t.Errorf("motivity = %v, want 4", got)
	}
	if got := s.ToNativePayload().Family; got != int32(Gudermannian().Index) {
		t.Errorf("native family = %d", got)
	}
}

func TestArgumentSetFrom_ResetsHiddenFields(t *testing.T) {
	args := Motivity().Defaults
	args.Motivity = 4
	args.Sensitivity = 0.5
	args.Family = Off().Index

	s := ArgumentSetFrom(Off(), args)
	if got, want := s.Value(FieldMotivity), Off().Defaults.Motivity; got != want {
		t.Errorf("leftover motivity under Off = %v, want default %v", got, want)
	}
	if got := s.Value(FieldSensitivity); got != 0.5 {
		t.Errorf("sensitivity = %v, want 0.5 kept", got)
	}

	// Hidden fields were never edited, so switching back takes Motivity's defaults.
	s.ApplyFamilyDefaults(Motivity())
	if got, want := s.Value(FieldMotivity), Motivity().Defaults.Motivity; got != want {
		t.Errorf("motivity after switch = %v, want %v", got, want)
	}
}

func TestWithAxis(t *testing.T) {
	errs := ValidateArgs(Motivity(), AccelArgs{Family: Motivity().Index, Motivity: 0.5, SynchronousSpeed: 5, Gamma: 1, Sensitivity: 1})
	errs = WithAxis(AxisY, errs)
	if len(errs) != 1 || errs[0].Axis != AxisY || errs[0].Error() != "y.motivity must be greater than 1" {
		t.Errorf("WithAxis=%v, want one y.motivity error", errs)
	}
}

func TestParseField(t *testing.T) {
	for in, want := range map[string]Field{
		"motivity":   FieldMotivity,
		"Sync-Speed": FieldSynchronousSpeed,
		"sens":       FieldSensitivity,
		"exponent":   FieldExponent,
	} {
		got, err := ParseField(in)
		if err != nil || got != want {
			t.Errorf("ParseField(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseField("velocity"); err == nil {
		t.Errorf("expected error for unknown field")
	}
}
