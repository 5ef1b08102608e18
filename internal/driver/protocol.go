package driver

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
// Wire protocol
// ============================================================================
// One JSON object per line on the Unix socket, one request per connection.
//
//   Client sends:    {"id": "...", "type": "read_settings"}
//                    {"id": "...", "type": "write_settings", "payload": "<base64 record>"}
//   Server responds: {"id": "...", "status": "ok", "payload": "<base64 record>"}
//                    {"id": "...", "status": "rejected", "reasons": ["..."]}
//                    {"id": "...", "status": "error", "error": "msg"}
//
// The payload is the fixed-size settings record from package abi.
// ============================================================================

const (
	RequestReadSettings  = "read_settings"
	RequestWriteSettings = "write_settings"
)

const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Request is a single call to the driver.
type Request struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
}

// Response answers one Request.
type Response struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Payload string   `json:"payload,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func newRequest(typ string, record []byte) Request {
	req := Request{ID: uuid.NewString(), Type: typ}
	if record != nil {
		req.Payload = encodePayload(record)
	}
	return req
}

func encodePayload(record []byte) string {
	return base64.StdEncoding.EncodeToString(record)
}

func decodePayload(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return b, nil
}
