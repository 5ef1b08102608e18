// Package abi defines the fixed-size settings record exchanged with rawacceld.
//
// The layout and field order are a cross-process contract: the daemon stores and
// applies exactly this record, and both sides must agree on family indices.
package abi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Record identification. Bump Version whenever the layout changes.
const (
	Magic   uint32 = 0x52414343 // "RACC"
	Version uint32 = 1
)

// Combine modes as stored in Settings.Mode.
const (
	ModeWhole       uint32 = 0
	ModeByComponent uint32 = 1
)

// Gain modes known to the driver. Off is represented by a negative index.
//
// Erf, Clamp and Softplus are reserved: the driver enumerates them but no
// family is registered for them.
const (
	ModeOff      int32 = -1
	ModeTanh     int32 = 0
	ModeGD       int32 = 1
	ModeErf      int32 = 2
	ModeClamp    int32 = 3
	ModeSoftplus int32 = 4
)

// Args is the per-axis part of the record.
type Args struct {
	Family           int32
	_                [4]byte
	Motivity         float64
	SynchronousSpeed float64
	Gamma            float64
	Cap              float64
	Weight           float64
	Offset           float64
	Limit            float64
	Midpoint         float64
	Scale            float64
	Exponent         float64
	Sensitivity      float64
}

// Settings is the complete record.
type Settings struct {
	Magic       uint32
	Version     uint32
	DPI         uint32
	PollRate    uint32
	Mode        uint32
	_           [4]byte
	Rotation    float64
	Sensitivity float64
	MinimumTime float64
	DomainX     float64
	DomainY     float64
	RangeX      float64
	RangeY      float64
	LpNorm      float64
	Args        [2]Args
}

// Size is the encoded size of Settings in bytes.
var Size = binary.Size(Settings{})

var (
	// ErrSize is returned when a payload does not match Size.
	ErrSize = errors.New("setting sizes differ")
	// ErrMagic is returned when the record header is not recognised.
	ErrMagic = errors.New("unrecognised settings record")
)

// Encode serialises s in little-endian order, stamping the header.
func Encode(s Settings) ([]byte, error) {
	s.Magic = Magic
	s.Version = Version

	buf := bytes.NewBuffer(make([]byte, 0, Size))
	if err := binary.Write(buf, binary.LittleEndian, s); err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a payload produced by Encode.
func Decode(b []byte) (Settings, error) {
	if len(b) != Size {
		return Settings{}, fmt.Errorf("%w: got %d bytes, want %d", ErrSize, len(b), Size)
	}

	var s Settings
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if s.Magic != Magic || s.Version != Version {
		return Settings{}, fmt.Errorf("%w: magic=%#x version=%d", ErrMagic, s.Magic, s.Version)
	}
	return s, nil
}
