//go:build linux

package input

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// uinput ioctls from linux/uinput.h.
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetRelBit  = 0x40045566

	uinputMaxNameSize = 80
	absCnt            = 64
	busVirtual        = 0x06
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// userDev is struct uinput_user_dev.
type userDev struct {
	Name       [uinputMaxNameSize]byte
	ID         inputID
	EffectsMax uint32
	Absmax     [absCnt]int32
	Absmin     [absCnt]int32
	Absfuzz    [absCnt]int32
	Absflat    [absCnt]int32
}

var pointerButtons = []int{BtnLeft, BtnRight, BtnMiddle, BtnSide, BtnExtra, BtnForward, BtnBack, BtnTask}

var pointerAxes = []int{RelX, RelY, RelWheel, RelHWheel, RelWheelHiRes, RelHWheelHiRes}

// VirtualPointer is a uinput relative pointer that re-emits accelerated motion.
type VirtualPointer struct {
	f   *os.File
	buf []byte
}

// CreateVirtualPointer registers a relative pointer with buttons and wheels at
// the uinput node path.
func CreateVirtualPointer(path, name string) (*VirtualPointer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0o660)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := int(f.Fd())

	setBits := func(req uint, what string, bits ...int) error {
		for _, b := range bits {
			if err := unix.IoctlSetInt(fd, req, b); err != nil {
				return fmt.Errorf("register %s %#x: %w", what, b, err)
			}
		}
		return nil
	}

	if err := setBits(uiSetEvBit, "event type", EvKey, EvRel, EvSyn); err != nil {
		f.Close()
		return nil, err
	}
	if err := setBits(uiSetKeyBit, "button", pointerButtons...); err != nil {
		f.Close()
		return nil, err
	}
	if err := setBits(uiSetRelBit, "axis", pointerAxes...); err != nil {
		f.Close()
		return nil, err
	}

	dev := userDev{
		ID: inputID{Bustype: busVirtual, Vendor: 0x1209, Product: 0xacce, Version: 1},
	}
	copy(dev.Name[:uinputMaxNameSize-1], name)

	var b bytes.Buffer
	if err := binary.Write(&b, binary.LittleEndian, dev); err != nil {
		f.Close()
		return nil, fmt.Errorf("encode uinput device: %w", err)
	}
	if _, err := f.Write(b.Bytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write uinput device: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("create uinput device: %w", err)
	}

	return &VirtualPointer{f: f}, nil
}

// Emit writes a batch of events in one call. The kernel stamps the time.
func (p *VirtualPointer) Emit(events []Event) error {
	p.buf = p.buf[:0]
	for _, e := range events {
		p.buf = AppendEvent(p.buf, e)
	}
	if _, err := p.f.Write(p.buf); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

// Close destroys the virtual device.
func (p *VirtualPointer) Close() error {
	_ = unix.IoctlSetInt(int(p.f.Fd()), uiDevDestroy, 0)
	return p.f.Close()
}
