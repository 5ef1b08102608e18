package abi

import (
	"errors"
	"math"
	"testing"
)

func TestSize_IsFixed(t *testing.T) {
	// 5 uint32 + pad + 8 float64 + 2 * (int32 + pad + 11 float64)
	want := 6*4 + 8*8 + 2*(8+11*8)
	if Size != want {
		t.Fatalf("Size=%d, want %d", Size, want)
	}
}

func TestEncodeDecode_PreservesInfinityAndStampsHeader(t *testing.T) {
	in := Settings{
		DPI:      1600,
		PollRate: 1000,
		Mode:     ModeWhole,
		LpNorm:   math.Inf(1),
		Args:     [2]Args{{Family: ModeTanh, Motivity: 1.5}, {Family: ModeOff}},
	}

	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) != Size {
		t.Fatalf("encoded %d bytes, want %d", len(b), Size)
	}

	out, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Magic != Magic || out.Version != Version {
		t.Errorf("header not stamped: %#x/%d", out.Magic, out.Version)
	}
	if !math.IsInf(out.LpNorm, 1) {
		t.Errorf("LpNorm=%v, want +Inf", out.LpNorm)
	}
	if out.Args[0] != in.Args[0] || out.DPI != in.DPI {
		t.Errorf("fields changed: %+v", out)
	}
}

func TestDecode_RejectsWrongSize(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	if !errors.Is(err, ErrSize) {
		t.Fatalf("expected ErrSize, got %v", err)
	}
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	_, err := Decode(make([]byte, Size))
	if !errors.Is(err, ErrMagic) {
		t.Fatalf("expected ErrMagic, got %v", err)
	}
}
