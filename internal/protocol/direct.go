package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

// DirectProtocol sends a request or response as one JSON frame and trusts
// the transport's own delivery guarantee — appropriate for VARA and
// Reticulum, both of which retry and reassemble below this layer, unlike
// packet radio's bare UI frames.
type DirectProtocol struct {
	Backend transport.Backend
}

// controlFrame mirrors direct_protocol.py's bare {"type": "..."} shutdown
// messages (DONE/DONE_ACK/DISCONNECT/DISCONNECT_ACK).
type controlFrame struct {
	Type string `json:"type"`
}

// SendRequest marshals req as JSON and writes it to the backend in one
// shot, then waits for the transport to confirm the frame actually went
// out over the air before returning.
func (p *DirectProtocol) SendRequest(sess *session.Session, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("protocol: marshaling request: %w", err)
	}
	if err := p.Backend.SendData(sess.Remote, string(body)); err != nil {
		return fmt.Errorf("protocol: sending request: %w", err)
	}
	log.Info("sent request (%d bytes) to %s", len(body), sess.Remote)
	p.waitForTransmitComplete(60 * time.Second)
	return nil
}

// ReceiveResponse blocks for one JSON frame and unmarshals it as a
// Request — the direct-transport response counterpart to SendRequest.
func (p *DirectProtocol) ReceiveResponse(sess *session.Session, timeout time.Duration) (Request, error) {
	_, raw, err := p.Backend.ReceiveData(timeout)
	if err != nil {
		return nil, fmt.Errorf("protocol: receiving response: %w", err)
	}
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("protocol: decoding response: %w", err)
	}
	log.Info("received response (%d bytes) from %s", len(raw), sess.Remote)
	return req, nil
}

// SendControl sends one of DONE/DONE_ACK/DISCONNECT/DISCONNECT_ACK as a
// bare {"type": ...} frame, waiting for transmission to complete the same
// way SendRequest does.
func (p *DirectProtocol) SendControl(sess *session.Session, msgType string) error {
	body, err := json.Marshal(controlFrame{Type: msgType})
	if err != nil {
		return fmt.Errorf("protocol: marshaling control %s: %w", msgType, err)
	}
	if err := p.Backend.SendData(sess.Remote, string(body)); err != nil {
		return fmt.Errorf("protocol: sending control %s: %w", msgType, err)
	}
	p.waitForTransmitComplete(60 * time.Second)
	log.Info("sent control %s to %s", msgType, sess.Remote)
	return nil
}

// AwaitControl waits up to timeout for a control frame of exactly
// expectType, reporting whether it arrived.
func (p *DirectProtocol) AwaitControl(sess *session.Session, expectType string, timeout time.Duration) bool {
	_, raw, err := p.Backend.ReceiveData(timeout)
	if err != nil {
		return false
	}
	var frame controlFrame
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		return false
	}
	return frame.Type == expectType
}

// waitForTransmitComplete defers to the backend's own completion signal
// when it has one (vara's PTT/buffer-drain wait); backends without that
// concept (reticulum, which buffers internally) are already done by the
// time SendData returns.
func (p *DirectProtocol) waitForTransmitComplete(timeout time.Duration) bool {
	if waiter, ok := p.Backend.(TransmitWaiter); ok {
		return waiter.WaitForTransmitComplete(timeout)
	}
	return true
}
