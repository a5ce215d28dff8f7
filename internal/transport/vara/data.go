package vara

import (
	"fmt"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/kiss"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

// SendData wraps raw in an AX.25 UI frame and KISS-stuffs it onto the data
// socket — vara_backend.py::send_data builds the same envelope even though
// VARA itself is already point-to-point, to keep the two backends'
// wire shape identical above the transport boundary.
func (b *Backend) SendData(remote ax25.Callsign, raw string) error {
	b.mu.Lock()
	conn := b.dataConn
	connected := b.connected
	b.mu.Unlock()
	if !connected || conn == nil {
		return transport.ErrNotConnected
	}

	frame := ax25.BuildUIFrame(b.local, remote, []byte(raw))
	kissFrame := kiss.Wrap(frame)
	if _, err := conn.Write(kissFrame); err != nil {
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
		return fmt.Errorf("%w: writing to VARA data socket: %v", transport.ErrTransportFatal, err)
	}
	b.mu.Lock()
	b.lastBufferChange = time.Now()
	b.mu.Unlock()
	return nil
}

// ReceiveData reads from the data socket until one complete KISS frame
// arrives or timeout elapses, unwraps it, and strips the AX.25 header.
func (b *Backend) ReceiveData(timeout time.Duration) (ax25.Callsign, string, error) {
	b.mu.Lock()
	conn := b.dataConn
	connected := b.connected
	b.mu.Unlock()
	if !connected || conn == nil {
		return ax25.Callsign{}, "", transport.ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)
	for {
		if frame, ok := b.scan.Next(); ok {
			return b.decodeFrame(frame)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ax25.Callsign{}, "", transport.ErrTimeout
		}
		step := remaining
		if step > 200*time.Millisecond {
			step = 200 * time.Millisecond
		}
		conn.SetReadDeadline(time.Now().Add(step))
		n, err := conn.Read(buf)
		if n > 0 {
			b.scan.Feed(buf[:n])
		}
		if err != nil {
			if isTimeout(err) {
				if b.hasDisconnectNotice() {
					b.mu.Lock()
					b.connected = false
					b.mu.Unlock()
					return ax25.Callsign{}, "", transport.ErrNotConnected
				}
				continue
			}
			b.mu.Lock()
			b.connected = false
			b.mu.Unlock()
			return ax25.Callsign{}, "", fmt.Errorf("%w: reading VARA data socket: %v", transport.ErrTransportFatal, err)
		}
	}
}

func (b *Backend) decodeFrame(kissFrame []byte) (ax25.Callsign, string, error) {
	ax25Frame, err := kiss.Unwrap(kissFrame)
	if err != nil {
		log.Warn("dropping malformed VARA KISS frame: %v", err)
		return ax25.Callsign{}, "", transport.ErrChecksumMismatch
	}
	source, payload, err := ax25.ParseUIFrame(ax25Frame)
	if err != nil {
		log.Warn("dropping malformed VARA AX.25 frame: %v", err)
		return ax25.Callsign{}, "", transport.ErrChecksumMismatch
	}
	return source, string(payload), nil
}

// WaitForTransmitComplete implements protocol.TransmitWaiter: it blocks
// until the monitor reports PTT OFF with an empty transmit buffer, or gives
// up if the buffer stops moving for StallTimeout (vara_backend.py's
// "Smart Wait" — _wait_for_vara_tx_complete). Clients always return true
// immediately without consulting the monitor, although the monitor tracks
// PTT/BUFFER for both roles.
func (b *Backend) WaitForTransmitComplete(timeout time.Duration) bool {
	if !b.isServer {
		return true
	}
	deadline := time.Now().Add(timeout)
	start := time.Now()
	for time.Now().Before(deadline) {
		if b.hasDisconnectNotice() {
			return false
		}
		b.mu.Lock()
		transmitting := b.transmitting
		bufLevel := b.bufferLevel
		sinceChange := time.Since(b.lastBufferChange)
		b.mu.Unlock()

		if !transmitting && bufLevel == 0 {
			return true
		}
		if sinceChange > b.cfg.StallTimeout {
			log.Warn("VARA TX stalled: no buffer movement for %s", b.cfg.StallTimeout)
			return false
		}
		if time.Since(start) > 5*time.Minute {
			log.Warn("VARA TX wait hit the safety limit")
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// Disconnect closes the data socket, unkeys PTT, and then either closes the
// command socket (client role) or keeps it open to tell the modem to
// DISCONNECT and leave LISTEN mode ready for the next caller (server role), mirroring vara_backend.py::disconnect's
// "polite disconnect, then restart listening" sequence.
func (b *Backend) Disconnect() error {
	b.mu.Lock()
	dataConn := b.dataConn
	cmdConn := b.cmdConn
	isServer := b.isServer
	b.dataConn = nil
	b.connected = false
	b.mu.Unlock()

	b.ptt.Unkey()
	if dataConn != nil {
		dataConn.Close()
	}
	if cmdConn != nil {
		if isServer {
			b.sendCommand(cmdConn, "DISCONNECT")
			time.Sleep(1500 * time.Millisecond)
			b.sendCommand(cmdConn, "LISTEN ON")
		} else {
			cmdConn.Close()
			b.mu.Lock()
			b.cmdConn = nil
			b.mu.Unlock()
		}
	}
	return nil
}

func (b *Backend) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}
