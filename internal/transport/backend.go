// Package transport defines the backend abstraction every HAMSTR radio link
// implements, and the shared errors the session engine classifies against
// (spec §7). Concrete backends live in subpackages: packetbackend (KISS
// TNC), vara (VARA HF modem), reticulum (Reticulum mesh).
package transport

import (
	"errors"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
)

// Backend carries already-assembled HAMSTR wire strings between stations.
// Framing below this line (AX.25+KISS, VARA's own protocol, Reticulum
// packets/resources) is each backend's own concern — base_backend.py's
// connect/send_data/receive_data/disconnect/is_connected contract.
type Backend interface {
	Type() Type
	Connect(remote ax25.Callsign) error
	SendData(remote ax25.Callsign, raw string) error
	ReceiveData(timeout time.Duration) (source ax25.Callsign, raw string, err error)
	Disconnect() error
	IsConnected() bool
}

// RemoteIdentifier is implemented by backends that can report the peer's
// callsign after Connect — a server listening for an incoming VARA link
// knows nothing about who will show up until the modem reports CONNECTED.
// The Reticulum backend implements it too, but reports the callsign it was
// handed in Connect, since its HELLO carries none.
type RemoteIdentifier interface {
	RemoteCallsign() ax25.Callsign
}

// Type names the supported transports (spec §5).
type Type string

const (
	TypePacket    Type = "packet"
	TypeVARA      Type = "vara"
	TypeReticulum Type = "reticulum"
)

var (
	// ErrTimeout is returned by ReceiveData when nothing arrived within the
	// requested window — not a fault, callers poll in a loop expecting it.
	ErrTimeout = errors.New("transport: receive timed out")
	// ErrChecksumMismatch is returned by a backend's ReceiveData
	// (packetbackend, vara) when a received frame fails KISS or AX.25
	// decoding; the engine's ReceiveMessage skips such frames.
	ErrChecksumMismatch = errors.New("transport: checksum mismatch")
	// ErrNotConnected is returned by SendData/ReceiveData before Connect
	// succeeds or after Disconnect.
	ErrNotConnected = errors.New("transport: backend not connected")
	// ErrTransportFatal wraps a backend I/O failure the caller should treat
	// as unrecoverable for the current session (closed socket, device gone).
	ErrTransportFatal = errors.New("transport: fatal backend error")
)
