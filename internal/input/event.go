// Package input moves pointer motion from the physical devices through the
// active transfer function to a virtual pointer.
package input

import (
	"encoding/binary"
	"time"
)

// Event mirrors the kernel's struct input_event on 64-bit Linux:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type Event struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// EventSize is the encoded size of one Event.
const EventSize = 24

// Event types and codes from linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvMsc = 0x04

	SynReport  = 0
	SynDropped = 3

	RelX           = 0x00
	RelY           = 0x01
	RelHWheel      = 0x06
	RelWheel       = 0x08
	RelWheelHiRes  = 0x0b
	RelHWheelHiRes = 0x0c

	BtnLeft    = 0x110
	BtnRight   = 0x111
	BtnMiddle  = 0x112
	BtnSide    = 0x113
	BtnExtra   = 0x114
	BtnForward = 0x115
	BtnBack    = 0x116
	BtnTask    = 0x117
)

// Time returns the kernel timestamp of e.
func (e Event) Time() time.Time {
	return time.Unix(e.Sec, e.Usec*int64(time.Microsecond))
}

// IsMotion reports whether e is relative X or Y motion.
func (e Event) IsMotion() bool {
	return e.Type == EvRel && (e.Code == RelX || e.Code == RelY)
}

// DecodeEvent parses one event from b, which must hold at least EventSize bytes.
func DecodeEvent(b []byte) Event {
	return Event{
		Sec:   int64(binary.LittleEndian.Uint64(b[0:8])),
		Usec:  int64(binary.LittleEndian.Uint64(b[8:16])),
		Type:  binary.LittleEndian.Uint16(b[16:18]),
		Code:  binary.LittleEndian.Uint16(b[18:20]),
		Value: int32(binary.LittleEndian.Uint32(b[20:24])),
	}
}

// AppendEvent appends the wire form of e to b.
func AppendEvent(b []byte, e Event) []byte {
	b = binary.LittleEndian.AppendUint64(b, uint64(e.Sec))
	b = binary.LittleEndian.AppendUint64(b, uint64(e.Usec))
	b = binary.LittleEndian.AppendUint16(b, e.Type)
	b = binary.LittleEndian.AppendUint16(b, e.Code)
	return binary.LittleEndian.AppendUint32(b, uint32(e.Value))
}

// SourceEvent is an event tagged with the index of the device it came from.
type SourceEvent struct {
	Source int
	Event
}
