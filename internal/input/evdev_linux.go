//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// EVIOCGRAB from linux/input.h.
const evIOCGrab = 0x40044590

// epollTimeoutMs bounds how long the reader waits before rechecking ctx.
const epollTimeoutMs = 100

// Device is an open evdev node.
type Device struct {
	Path    string
	fd      int
	grabbed bool
}

// OpenDevice opens path non-blocking and optionally grabs it so no other
// reader sees its events.
func OpenDevice(path string, grab bool) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	d := &Device{Path: path, fd: fd}
	if grab {
		if err := unix.IoctlSetInt(fd, evIOCGrab, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
		d.grabbed = true
	}
	return d, nil
}

// Close releases the grab and closes the node.
func (d *Device) Close() error {
	if d.grabbed {
		_ = unix.IoctlSetInt(d.fd, evIOCGrab, 0)
		d.grabbed = false
	}
	return unix.Close(d.fd)
}

// OpenDevices opens every path, closing the ones already opened on failure.
func OpenDevices(paths []string, grab bool) ([]*Device, error) {
	devs := make([]*Device, 0, len(paths))
	for _, p := range paths {
		d, err := OpenDevice(p, grab)
		if err != nil {
			for _, o := range devs {
				o.Close()
			}
			return nil, err
		}
		devs = append(devs, d)
	}
	return devs, nil
}

// ReadEvents reads from all devices with a single epoll loop and sends every
// event to out, tagged with the device's index. It returns nil when ctx is
// canceled and an error when a device fails or hangs up.
func ReadEvents(ctx context.Context, devs []*Device, out chan<- SourceEvent) error {
	if len(devs) == 0 {
		return errors.New("no input devices provided")
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	byFd := make(map[int32]int, len(devs))
	for i, d := range devs {
		byFd[int32(d.fd)] = i
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(d.fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, d.fd, &ev); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", d.Path, err)
		}
	}

	const maxEvents = 32
	ready := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, 64*EventSize)

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := unix.EpollWait(epfd, ready, epollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			src := byFd[ready[i].Fd]
			d := devs[src]

			if ready[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("device error/hangup: %s", d.Path)
			}

			// Drain the device; evdev only returns whole events.
			for {
				nr, err := unix.Read(d.fd, buf)
				if errors.Is(err, unix.EAGAIN) {
					break
				}
				if errors.Is(err, unix.EINTR) {
					continue
				}
				if err != nil {
					return fmt.Errorf("read from %s: %w", d.Path, err)
				}
				if nr == 0 {
					return fmt.Errorf("read from %s: device closed", d.Path)
				}
				for off := 0; off+EventSize <= nr; off += EventSize {
					select {
					case out <- SourceEvent{Source: src, Event: DecodeEvent(buf[off:])}:
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	}
}
