package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/engine"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/wire"
)

// PacketProtocol drives packet radio's existing DATA_REQUEST/READY
// handshake and the segmented-transfer/DONE/PKT_MISSING machinery for
// every NOSTR/Lightning exchange — the only transport too narrow to ever
// fit a JSON payload in one frame.
type PacketProtocol struct {
	Engine *engine.Engine
}

// SendRequest flattens req to the "<type> <count> <params>" request string
// that formatRequestString builds (fields separated by spaces, not "|";
// only params itself may contain "|"), sends it as a DATA_REQUEST, and completes the READY/READY handshake the receiver uses
// to signal it's ready to build and send the response.
func (p *PacketProtocol) SendRequest(sess *session.Session, req Request) error {
	reqStr := formatRequestString(req)
	if err := p.Engine.SendControl(sess, wire.DataRequest, reqStr); err != nil {
		return fmt.Errorf("protocol: sending DATA_REQUEST: %w", err)
	}
	log.Info("sent DATA_REQUEST to %s: %s", sess.Remote, reqStr)

	if !p.awaitReady(sess, p.Engine.Cfg.ReadyTimeout) {
		return fmt.Errorf("protocol: %w: no READY after DATA_REQUEST", engine.ErrAckTimeout)
	}
	if err := p.Engine.SendControl(sess, wire.Ready, "READY"); err != nil {
		return fmt.Errorf("protocol: acknowledging READY: %w", err)
	}
	return nil
}

// ReceiveResponse runs the engine's segmented-transfer receive loop and
// wraps the reassembled string back into a Request, tagging it the way
// packet_protocol.py's receive_nostr_response does ({'data': ..., 'protocol': 'packet'}).
func (p *PacketProtocol) ReceiveResponse(sess *session.Session, timeout time.Duration) (Request, error) {
	data, err := p.Engine.ReceiveTransfer(sess)
	if err != nil {
		return nil, fmt.Errorf("protocol: receiving response: %w", err)
	}
	return Request{"data": data, "protocol": "packet"}, nil
}

// AwaitRequest blocks for an incoming DATA_REQUEST, completes the
// READY/READY handshake on the receiving end, and returns the raw request
// string for the caller to parse and act on.
func (p *PacketProtocol) AwaitRequest(sess *session.Session, timeout time.Duration) (string, error) {
	pkt, err := p.Engine.ReceiveMessage(sess, timeout)
	if err != nil {
		return "", fmt.Errorf("protocol: waiting for DATA_REQUEST: %w", err)
	}
	if pkt.Type != wire.DataRequest {
		return "", fmt.Errorf("protocol: expected DATA_REQUEST, got %s", pkt.Type)
	}
	if err := p.Engine.SendControl(sess, wire.Ready, "READY"); err != nil {
		return "", fmt.Errorf("protocol: sending READY: %w", err)
	}
	if !p.awaitReady(sess, p.Engine.Cfg.ReadyTimeout) {
		return "", fmt.Errorf("protocol: %w: client never echoed READY", engine.ErrAckTimeout)
	}
	return pkt.Content, nil
}

// SendResponse runs the engine's segmented send for a RESPONSE payload —
// the server-side counterpart to ReceiveResponse.
func (p *PacketProtocol) SendResponse(sess *session.Session, response string) error {
	return p.Engine.SendTransfer(sess, wire.Response, response)
}

func (p *PacketProtocol) awaitReady(sess *session.Session, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	prompted := false
	for time.Now().Before(deadline) {
		pkt, err := p.Engine.ReceiveMessage(sess, 500*time.Millisecond)
		if err == nil {
			switch pkt.Type {
			case wire.Ready, wire.DataRequest:
				return true
			case wire.Disconnect:
				p.Engine.HandleDisconnect(sess)
				return false
			}
		}
		if !prompted && time.Until(deadline) < timeout/2 {
			p.Engine.SendControl(sess, wire.Ready, "READY")
			prompted = true
		}
	}
	return false
}

// formatRequestString converts a Request into "<type> <count> <params>",
// the format the original's packet protocol handler builds for
// MessageType.DATA_REQUEST (_format_request_string).
func formatRequestString(req Request) string {
	reqType, _ := req["type"].(string)
	if reqType == "" {
		reqType = "GET_NOTES"
	}
	count := requestCount(req)
	params, _ := req["params"].(string)
	if params != "" {
		return fmt.Sprintf("%s %d %s", reqType, count, params)
	}
	return fmt.Sprintf("%s %d", reqType, count)
}

func requestCount(req Request) int {
	switch v := req["count"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 2
	}
}
