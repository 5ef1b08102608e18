package accel

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCombine_LpNorms(t *testing.T) {
	d := Directionality{LpNorm: 2}
	if got := d.Combine(3, 4); got != 5 {
		t.Errorf("p=2: Combine(3,4)=%v, want 5", got)
	}

	d.LpNorm = math.Inf(1)
	if got := d.Combine(3, -4); got != 4 {
		t.Errorf("p=inf: Combine(3,-4)=%v, want 4", got)
	}

	d.LpNorm = 1
	if got := d.Combine(-3, 4); got != 7 {
		t.Errorf("p=1: Combine(-3,4)=%v, want 7", got)
	}

	d.LpNorm = 3
	want := math.Cbrt(27 + 64)
	if got := d.Combine(3, 4); !near(got, want) {
		t.Errorf("p=3: Combine(3,4)=%v, want %v", got, want)
	}

	// Large norms stay finite and approach the max-norm.
	for _, tc := range []struct{ p, x, y, want float64 }{
		{200, 40, 30, 40},
		{1100, 0.5, 0.25, 0.5},
		{1e6, 1e-200, 1e-200, 1e-200},
		{50, 0, 0, 0},
	} {
		d.LpNorm = tc.p
		if errs := d.Validate(); len(errs) != 0 {
			t.Fatalf("p=%v: Validate()=%v", tc.p, errs)
		}
		got := d.Combine(tc.x, tc.y)
		if math.IsInf(got, 0) || math.IsNaN(got) || math.Abs(got-tc.want) > tc.want*1e-2 {
			t.Errorf("p=%v: Combine(%v,%v)=%v, want ~%v", tc.p, tc.x, tc.y, got, tc.want)
		}
	}
}

// TestPolicy_DomainClip checks that speeds above the domain are evaluated at the domain.
func TestPolicy_DomainClip(t *testing.T) {
	args := Motivity().Defaults
	p := Policy{
		Directionality: Directionality{Mode: ByComponent, DomainX: 10, LpNorm: 2},
		FamilyX:        Motivity(),
		FamilyY:        Off(),
		ArgsX:          args,
		ArgsY:          DefaultArgs(),
	}

	at10, _ := p.Scale(10, 0)
	at15, _ := p.Scale(15, 0)
	if at10 != at15 {
		t.Errorf("scale at 15 = %v, want scale at domain %v", at15, at10)
	}
	if direct := Motivity().Gain(15, args); direct == at15 {
		t.Errorf("domain clip had no effect")
	}
}

// TestPolicy_RangeClip checks that outputs above the range are clamped.
func TestPolicy_RangeClip(t *testing.T) {
	p := Policy{
		Directionality: Directionality{Mode: ByComponent, RangeX: 2, RangeY: 2, LpNorm: 2},
		FamilyX:        Off(),
		FamilyY:        Off(),
	}
	ox, oy := p.Apply(5, -3, 1, 1)
	if ox != 2 || oy != -2 {
		t.Errorf("Apply(5,-3)=(%v,%v), want (2,-2)", ox, oy)
	}
	ox, _ = p.Apply(1.5, 0, 1, 1)
	if ox != 1.5 {
		t.Errorf("values under the range must pass, got %v", ox)
	}
}

func TestPolicy_WholeUsesXFamilyOnMagnitude(t *testing.T) {
	args := Motivity().Defaults
	p := Policy{
		Directionality: Directionality{Mode: Whole, LpNorm: 2},
		FamilyX:        Motivity(),
		FamilyY:        Off(),
		ArgsX:          args,
	}
	sx, sy := p.Scale(3, 4)
	want := Motivity().Gain(5, args)
	if sx != want || sy != want {
		t.Errorf("Scale(3,4)=(%v,%v), want both %v", sx, sy, want)
	}
}

func TestDirectionality_Validate(t *testing.T) {
	d := Directionality{Mode: Whole, DomainX: 5, RangeX: 6, DomainY: -1, LpNorm: 0.5}
	var fields []string
	for _, e := range d.Validate() {
		fields = append(fields, e.Field)
	}
	want := []string{"domain_y", "range_x", "lp_norm"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	ok := DefaultDirectionality()
	ok.LpNorm = math.Inf(1)
	if errs := ok.Validate(); len(errs) != 0 {
		t.Fatalf("infinite norm must be valid, got %v", errs)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"whole": Whole, "By-Component": ByComponent, "": Whole} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q)=%v,%v", in, got, err)
		}
	}
	if _, err := ParseMode("diagonal"); err == nil {
		t.Errorf("expected error")
	}
}

func TestDirectionality_JSONInfiniteNorm(t *testing.T) {
	d := Directionality{Mode: ByComponent, DomainX: 3, LpNorm: math.Inf(1)}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"mode":"by_component","domain_x":3,"domain_y":0,"range_x":0,"range_y":0,"lp_norm":"inf"}`
	if string(b) != want {
		t.Fatalf("Marshal = %s\nwant      %s", b, want)
	}

	var got Directionality
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if err := json.Unmarshal([]byte(`{"lp_norm":"huge"}`), &got); err == nil {
		t.Errorf("expected error for non-numeric lp_norm")
	}
}
