// Package engine implements the HAMSTR session engine (spec §4): packet
// segmentation and reassembly, the CONNECT/CONNECT_ACK/ACK handshake with
// its resend ladder, per-packet ACK with selective retransmission, and the
// DONE/DONE_ACK/PKT_MISSING/READY recovery loop.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
	"github.com/LibertyFarmer/hamstr-sub000/internal/wire"
)

// Sentinel errors the engine returns, classified per spec §7 so callers use
// errors.Is rather than matching log text.
var (
	ErrAckTimeout        = errors.New("engine: timed out waiting for ack")
	ErrMissingPackets    = errors.New("engine: could not recover all missing packets")
	ErrConnectionTimeout = errors.New("engine: connection attempt timed out")
	ErrDisconnected      = errors.New("engine: remote disconnected")
)

var log = logx.Tagged(logx.Session)

// Engine drives one HAMSTR link over a transport.Backend, applying the
// session-layer reliability spec §4 describes on top of whatever the
// backend's own framing guarantees (or doesn't).
type Engine struct {
	Backend transport.Backend
	Local   ax25.Callsign
	Cfg     config.Config
}

// New builds an Engine bound to backend for the station identified by
// local, using cfg's session timing.
func New(backend transport.Backend, local ax25.Callsign, cfg config.Config) *Engine {
	return &Engine{Backend: backend, Local: local, Cfg: cfg}
}

// sendSinglePacket renders a control or data packet and hands it to the
// backend, exactly once — no retry, no ACK wait. After a successful send it
// pauses for the packet's estimated on-air time plus a per-type PTT tail,
// needed on half-duplex links even though this backend abstraction has no
// PTT of its own (the vara backend keys PTT itself; packetbackend relies on
// the TNC's own TX delay) — packet_handler.py::send_single_packet's pacing.
func (e *Engine) sendSinglePacket(sess *session.Session, seq, total int, t wire.MessageType, content string) error {
	var raw string
	if wire.IsControl(t) {
		raw = wire.EncodeControl(t, content)
	} else {
		raw = wire.EncodeData(seq, total, t, content)
	}
	if err := e.Backend.SendData(sess.Remote, raw); err != nil {
		return fmt.Errorf("engine: sending %s: %w", t, err)
	}
	log.Info("sent %s seq=%d/%d to %s", t, seq, total, sess.Remote)
	time.Sleep(e.transmissionTime(len(raw)) + e.pttTail(t))
	return nil
}

// transmissionTime estimates how long raw takes to put on air at the
// configured baud rate, plus the fixed per-send delay — the Go shape of
// protocol_utils.py::estimate_transmission_time (10 bits/byte: 8 data bits
// plus start/stop bits, over BAUD_RATE, plus PACKET_SEND_DELAY).
func (e *Engine) transmissionTime(frameBytes int) time.Duration {
	baud := e.Cfg.BaudRate
	if baud <= 0 {
		baud = 1200
	}
	bitsToSend := frameBytes * 10
	airTime := time.Duration(float64(bitsToSend) / float64(baud) * float64(time.Second))
	return airTime + e.Cfg.PacketSendDelay
}

// pttTail is the post-send pause layered on top of transmissionTime,
// matching packet_handler.py::send_single_packet's three-way dispatch:
// PTT_TAIL for ACK, PTT_ACK_SPACING for CONNECT/CONNECT_ACK/READY, and
// PTT_RX_DELAY for everything else.
func (e *Engine) pttTail(t wire.MessageType) time.Duration {
	switch t {
	case wire.Ack:
		return e.Cfg.PTT.Tail
	case wire.Connect, wire.ConnectAck, wire.Ready:
		return e.Cfg.PTT.AckSpacing
	default:
		return e.Cfg.PTT.RxDelay
	}
}

// SendControl sends content as a single control packet with RETRY_COUNT
// attempts (no ACK wait here — callers that need an ACK call ReceiveMessage
// themselves), matching message_processor.py::send_control_message.
func (e *Engine) SendControl(sess *session.Session, t wire.MessageType, content string) error {
	var lastErr error
	for attempt := 0; attempt < e.Cfg.SendRetries; attempt++ {
		if err := e.sendSinglePacket(sess, 0, 0, t, content); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < e.Cfg.SendRetries-1 {
			time.Sleep(e.Cfg.AckTimeout / 2)
		}
	}
	return fmt.Errorf("engine: failed to send %s after %d attempts: %w", t, e.Cfg.SendRetries, lastErr)
}

// ReceiveMessage reads and decodes the next valid packet from the backend,
// tolerating — by looping past — malformed frames the backend already
// logged and rejected, the way core.py::receive_message keeps listening
// until its own outer timeout rather than failing on the first bad frame.
func (e *Engine) ReceiveMessage(sess *session.Session, timeout time.Duration) (wire.Packet, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return wire.Packet{}, transport.ErrTimeout
		}
		step := remaining
		if step > 500*time.Millisecond {
			step = 500 * time.Millisecond
		}
		_, raw, err := e.Backend.ReceiveData(step)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) || errors.Is(err, transport.ErrChecksumMismatch) {
				continue
			}
			return wire.Packet{}, err
		}
		pkt, err := wire.Decode(raw)
		if err != nil {
			log.Warn("dropping unparseable message: %v", err)
			continue
		}
		if !pkt.VerifyCRC() {
			log.Warn("checksum mismatch on seq %d, requesting retry", pkt.Seq)
			e.sendSinglePacket(sess, 0, 0, wire.Retry, "RETRY")
			continue
		}
		sess.Touch()
		return pkt, nil
	}
}
