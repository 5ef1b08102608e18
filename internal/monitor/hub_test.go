package monitor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// These tests drive the hub without a network. Clients have nil conns; the
// hub guards against nil when closing.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(slog.New(slog.DiscardHandler), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func runHub(t *testing.T, hub *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Errorf("timeout waiting for hub to stop")
		}
	})
	return cancel
}

func registerClient(t *testing.T, hub *Hub, name string, buf int) *Client {
	t.Helper()
	c := &Client{hub: hub, send: make(chan []byte, buf), remoteAddr: name, logger: hub.logger}
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, name+" not registered in time")
	return c
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	runHub(t, hub)

	c1 := registerClient(t, hub, "c1", 4)
	c2 := registerClient(t, hub, "c2", 4)

	msg := []byte(`{"type":"last_point","data":{"dx":3}}`)

	// Send directly: BroadcastBytes may drop while the hub is being scheduled.
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}
	if n := hub.Clients(); n != 2 {
		t.Errorf("Clients()=%d, want 2", n)
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	runHub(t, hub)

	slow := registerClient(t, hub, "slow", 1)
	fast := registerClient(t, hub, "fast", 8)

	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"settings_applied"}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", got, msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled frame, then expect the channel to be closed.
	select {
	case <-slow.send:
	default:
	}
	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	cancel := runHub(t, hub)
	c := registerClient(t, hub, "c", 4)

	cancel()
	waitUntil(t, 500*time.Millisecond, func() bool {
		select {
		case _, ok := <-c.send:
			return !ok
		default:
			return false
		}
	}, "expected send channel to be closed on shutdown")
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
