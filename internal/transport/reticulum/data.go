package reticulum

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

// SendData writes raw as one length-prefixed frame on the link. Reticulum
// addressing happens at the Destination/Link level, not per packet, so
// unlike the packet-radio and VARA backends this carries no AX.25 header —
// matching send_data, which hands application bytes straight to RNS.Packet
// (or lets it auto-promote to an RNS.Resource above RESOURCE_THRESHOLD).
func (b *Backend) SendData(remote ax25.Callsign, raw string) error {
	b.mu.Lock()
	conn := b.conn
	connected := b.connected
	b.mu.Unlock()
	if !connected || conn == nil {
		return transport.ErrNotConnected
	}

	payload := []byte(raw)
	if len(payload) > resourceThreshold {
		log.Info("reticulum: sending %d bytes as a resource transfer (started)", len(payload))
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := conn.Write(header); err != nil {
		b.fail()
		return fmt.Errorf("%w: writing reticulum frame header: %v", transport.ErrTransportFatal, err)
	}
	if _, err := conn.Write(payload); err != nil {
		b.fail()
		return fmt.Errorf("%w: writing reticulum frame body: %v", transport.ErrTransportFatal, err)
	}

	if len(payload) > resourceThreshold {
		log.Info("reticulum: resource transfer concluded (%d bytes)", len(payload))
	}
	return nil
}

// ReceiveData reads one length-prefixed frame, blocking up to timeout —
// `receive_data`'s session.get_received_data, collapsed from an
// event-driven callback into a blocking read since there is exactly one
// link active at a time.
func (b *Backend) ReceiveData(timeout time.Duration) (ax25.Callsign, string, error) {
	b.mu.Lock()
	conn := b.conn
	reader := b.reader
	remote := b.remote
	connected := b.connected
	b.mu.Unlock()
	if !connected || conn == nil {
		return ax25.Callsign{}, "", transport.ErrNotConnected
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	header := make([]byte, 4)
	if _, err := io.ReadFull(reader, header); err != nil {
		if isTimeout(err) {
			return ax25.Callsign{}, "", transport.ErrTimeout
		}
		b.fail()
		return ax25.Callsign{}, "", fmt.Errorf("%w: reading reticulum frame header: %v", transport.ErrTransportFatal, err)
	}
	size := binary.BigEndian.Uint32(header)
	if size > 16*1024*1024 {
		b.fail()
		return ax25.Callsign{}, "", fmt.Errorf("%w: implausible reticulum frame size %d", transport.ErrTransportFatal, size)
	}

	if size > resourceThreshold {
		log.Info("reticulum: receiving %d bytes as a resource transfer", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(reader, body); err != nil {
		if isTimeout(err) {
			return ax25.Callsign{}, "", transport.ErrTimeout
		}
		b.fail()
		return ax25.Callsign{}, "", fmt.Errorf("%w: reading reticulum frame body: %v", transport.ErrTransportFatal, err)
	}
	if size > resourceThreshold {
		log.Info("reticulum: resource transfer complete")
	}
	return remote, string(body), nil
}

func (b *Backend) fail() {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// Disconnect tears down the link — `disconnect`'s teardown-and-deregister,
// minus the real RNS.Transport deregistration since this Backend never
// registered with a real Transport instance.
func (b *Backend) Disconnect() error {
	b.mu.Lock()
	conn := b.conn
	listener := b.listener
	announceDone := b.announceDone
	b.conn = nil
	b.connected = false
	b.announceDone = nil
	b.mu.Unlock()

	if announceDone != nil {
		close(announceDone)
	}
	if conn != nil {
		conn.Close()
	}
	if listener != nil {
		listener.Close()
	}
	return nil
}

func (b *Backend) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}
