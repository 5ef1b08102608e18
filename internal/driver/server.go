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
	"strings"
	"sync"

	"rawaccel/internal/accel"
)

// maxLine bounds one request or response line.
const maxLine = 64 * 1024

// Server answers read and write requests against a Store.
type Server struct {
	store  *Store
	logger *slog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: store, logger: logger, conns: make(map[net.Conn]struct{})}
}

// Run listens on socketPath until ctx is canceled.
func (s *Server) Run(ctx context.Context, socketPath string, mode os.FileMode) error {
	// Remove a stale socket left by a previous run.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, mode); err != nil {
		listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.logger.Info("Driver socket listening", "socket", socketPath)
	return s.Serve(ctx, listener)
}

// Serve accepts connections on l until ctx is canceled. It closes l and every
// open connection before returning.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	defer l.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-stop:
		}
	}()

	defer s.closeConns()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Debug("Driver listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				s.logger.Debug("Driver listener closed")
				return nil
			}
			s.logger.Error("Driver accept error", "error", err)
			continue
		}

		s.track(conn)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	s.wg.Done()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp = Response{Status: StatusError, Error: fmt.Sprintf("parse request: %v", err)}
		} else {
			resp = s.handle(req)
		}

		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("Driver failed to send response", "id", resp.ID, "error", err)
			return
		}
	}
}

func (s *Server) handle(req Request) Response {
	resp := Response{ID: req.ID, Status: StatusOK}
	s.logger.Debug("Driver request", "id", req.ID, "type", req.Type)

	switch req.Type {
	case RequestReadSettings:
		b, err := s.store.Active().Encode()
		if err != nil {
			return Response{ID: req.ID, Status: StatusError, Error: err.Error()}
		}
		resp.Payload = encodePayload(b)

	case RequestWriteSettings:
		b, err := decodePayload(req.Payload)
		if err != nil {
			return s.reject(req.ID, err.Error())
		}
		settings, err := accel.DecodeSettings(b)
		if err != nil {
			return s.reject(req.ID, err.Error())
		}

		err = s.store.Apply(settings)
		var rejected *WriteRejectedError
		switch {
		case errors.As(err, &rejected):
			return Response{ID: req.ID, Status: StatusRejected, Reasons: rejected.Reasons}
		case err != nil:
			s.logger.Error("Driver failed to apply settings", "id", req.ID, "error", err)
			return Response{ID: req.ID, Status: StatusError, Error: err.Error()}
		}

	default:
		return Response{ID: req.ID, Status: StatusError, Error: fmt.Sprintf("unknown request type %q", req.Type)}
	}
	return resp
}

func (s *Server) reject(id, reason string) Response {
	s.logger.Warn("Rejected settings", "id", id, "reason", reason)
	return Response{ID: id, Status: StatusRejected, Reasons: []string{reason}}
}
