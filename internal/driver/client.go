package driver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"rawaccel/internal/accel"
)

// DefaultTimeout bounds a single driver call.
const DefaultTimeout = 2 * time.Second

// Driver is the native read/write primitive. Write is all-or-nothing.
type Driver interface {
	Read(ctx context.Context) (accel.DriverSettings, error)
	Write(ctx context.Context, s accel.DriverSettings) error
}

// Client talks to rawacceld over its Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient returns a client for socketPath. A zero timeout uses DefaultTimeout.
func NewClient(socketPath string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{socketPath: socketPath, timeout: timeout, logger: logger}
}

// Read returns the settings the driver is currently running.
func (c *Client) Read(ctx context.Context) (accel.DriverSettings, error) {
	resp, err := c.roundTrip(ctx, newRequest(RequestReadSettings, nil))
	if err != nil {
		return accel.DriverSettings{}, err
	}
	if resp.Status != StatusOK {
		return accel.DriverSettings{}, fmt.Errorf("read settings: driver error: %s", resp.Error)
	}

	b, err := decodePayload(resp.Payload)
	if err != nil {
		return accel.DriverSettings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := accel.DecodeSettings(b)
	if err != nil {
		return accel.DriverSettings{}, fmt.Errorf("read settings: %w", err)
	}
	return s, nil
}

// Write sends s as one record. Once the request is on the wire it is not
// cancelled by ctx; only the client timeout bounds it.
func (c *Client) Write(ctx context.Context, s accel.DriverSettings) error {
	record, err := s.Encode()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	resp, err := c.roundTrip(context.WithoutCancel(ctx), newRequest(RequestWriteSettings, record))
	if err != nil {
		return err
	}

	switch resp.Status {
	case StatusOK:
		return nil
	case StatusRejected:
		if len(resp.Reasons) == 0 {
			return ErrWriteRejected
		}
		return &WriteRejectedError{Reasons: resp.Reasons}
	default:
		return fmt.Errorf("write settings: driver error: %s", resp.Error)
	}
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		if isUnavailable(err) {
			return Response{}, unavailable(err)
		}
		return Response{}, fmt.Errorf("connect to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c.logger.Debug("driver request", "id", req.ID, "type", req.Type)

	b, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(append(b, '\n')); err != nil {
		return Response{}, c.ioError("send request", err)
	}

	var resp Response
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)
	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = errors.New("connection closed before response")
		}
		return Response{}, c.ioError("read response", err)
	}
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.ID != req.ID {
		return Response{}, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	return resp, nil
}

func (c *Client) ioError(op string, err error) error {
	if isUnavailable(err) {
		return unavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUnavailable reports whether err means there is no reachable driver.
func isUnavailable(err error) bool {
	if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.EACCES) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
