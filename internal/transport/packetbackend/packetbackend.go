// Package packetbackend implements HAMSTR's transport.Backend over a KISS
// TNC reached by TCP (most KISS TNCs and software modems like Direwolf) or
// a local serial device, framing each outgoing message as a single AX.25 UI
// frame — no internal segmentation, spec §5 leaves fragmentation entirely
// to the session engine above this backend.
package packetbackend

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/term"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/kiss"
	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

var log = logx.Tagged(logx.TNC)

// conn is the minimal surface this backend needs from either a TCP socket
// or an open serial port.
type conn interface {
	io.Reader
	io.Writer
	Close() error
}

// Backend is a KISS-framed AX.25 UI transport over a TCP or serial link to
// a TNC.
type Backend struct {
	mu    sync.Mutex
	local ax25.Callsign
	c     conn
	scan  kiss.Scanner
	connected bool
}

// DialTCP opens a TCP connection to a KISS TNC, e.g. Direwolf's AGWPE/KISS
// port.
func DialTCP(local ax25.Callsign, host string, port int) (*Backend, error) {
	c, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("packetbackend: dialing TNC at %s:%d: %w", host, port, err)
	}
	return &Backend{local: local, c: c, connected: true}, nil
}

// OpenSerial opens a local serial device running in KISS mode at baud.
func OpenSerial(local ax25.Callsign, device string, baud int) (*Backend, error) {
	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("packetbackend: opening serial TNC %s: %w", device, err)
	}
	if baud > 0 {
		t.SetSpeed(baud)
	}
	return &Backend{local: local, c: t, connected: true}, nil
}

// WithConn wraps an already-open connection (a dialed TCP socket, an open
// serial port, or a pty in tests) as a packet backend.
func WithConn(local ax25.Callsign, c conn) *Backend {
	return &Backend{local: local, c: c, connected: true}
}

func (b *Backend) Type() transport.Type { return transport.TypePacket }

// Connect is a no-op for the packet backend: the KISS link is already up
// once the TNC connection is dialed/opened, there's no separate session
// handshake at this layer — CONNECT/CONNECT_ACK happen above, in the engine.
func (b *Backend) Connect(remote ax25.Callsign) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.c == nil {
		return transport.ErrNotConnected
	}
	b.connected = true
	return nil
}

// SendData wraps raw in an AX.25 UI frame addressed to remote, KISS-stuffs
// it, and writes it to the TNC link.
func (b *Backend) SendData(remote ax25.Callsign, raw string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected || b.c == nil {
		return transport.ErrNotConnected
	}
	frame := ax25.BuildUIFrame(b.local, remote, []byte(raw))
	kissFrame := kiss.Wrap(frame)
	if _, err := b.c.Write(kissFrame); err != nil {
		return fmt.Errorf("%w: writing to TNC: %v", transport.ErrTransportFatal, err)
	}
	return nil
}

// ReceiveData reads from the TNC link until a complete KISS frame arrives
// or timeout elapses.
func (b *Backend) ReceiveData(timeout time.Duration) (ax25.Callsign, string, error) {
	b.mu.Lock()
	c := b.c
	connected := b.connected
	b.mu.Unlock()
	if !connected || c == nil {
		return ax25.Callsign{}, "", transport.ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)
	for {
		if frame, ok := b.scan.Next(); ok {
			return decodeFrame(frame)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ax25.Callsign{}, "", transport.ErrTimeout
		}
		if dl, ok := c.(interface{ SetReadDeadline(time.Time) error }); ok {
			dl.SetReadDeadline(time.Now().Add(minDuration(remaining, 200*time.Millisecond)))
		}
		n, err := c.Read(buf)
		if n > 0 {
			b.mu.Lock()
			b.scan.Feed(buf[:n])
			b.mu.Unlock()
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return ax25.Callsign{}, "", fmt.Errorf("%w: reading from TNC: %v", transport.ErrTransportFatal, err)
		}
	}
}

func decodeFrame(kissFrame []byte) (ax25.Callsign, string, error) {
	ax25Frame, err := kiss.Unwrap(kissFrame)
	if err != nil {
		log.Warn("dropping malformed KISS frame: %v", err)
		return ax25.Callsign{}, "", transport.ErrChecksumMismatch
	}
	source, payload, err := ax25.ParseUIFrame(ax25Frame)
	if err != nil {
		log.Warn("dropping malformed AX.25 frame: %v", err)
		return ax25.Callsign{}, "", transport.ErrChecksumMismatch
	}
	return source, string(payload), nil
}

func (b *Backend) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	if b.c == nil {
		return nil
	}
	err := b.c.Close()
	b.c = nil
	return err
}

func (b *Backend) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
