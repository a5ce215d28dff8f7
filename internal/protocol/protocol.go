// Package protocol picks, per transport, how a NOSTR/Lightning request and
// its response cross a HAMSTR link: DirectProtocol hands reliable
// transports (VARA, Reticulum) a single JSON frame plus a DONE/DONE_ACK
// shutdown; PacketProtocol drives the session engine's segmentation and
// READY/ACK machinery for packet radio, where a frame this size would
// never survive one hop.
package protocol

import (
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/engine"
	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

var log = logx.Tagged(logx.Control)

// Request is a NOSTR/Lightning operation request or response body, carried
// as a JSON object on reliable transports and flattened to a space-separated
// "<type> <count> <params>" string for packet radio — the shape request_data/response_dict have in
// the original, kept generic because this package never interprets the
// fields itself, only forwards them (spec §9's collaborator-opaque payload
// decision).
type Request map[string]any

// Handler sends one request and waits for its response over whatever
// transport a session is bound to.
type Handler interface {
	SendRequest(sess *session.Session, req Request) error
	ReceiveResponse(sess *session.Session, timeout time.Duration) (Request, error)
}

// TransmitWaiter is implemented by backends (vara) whose send completes
// before the radio has actually finished keying — DirectProtocol blocks on
// it after every send so a DONE or DISCONNECT that follows isn't clipped
// mid-transmission. Backends without a meaningful wait (packetbackend,
// reticulum) simply don't implement it, and DirectProtocol treats that as
// "already complete", matching the original's backend-capability-sniffing
// fallback.
type TransmitWaiter interface {
	WaitForTransmitComplete(timeout time.Duration) bool
}

// ForBackend selects the handler appropriate to backend's transport type:
// DirectProtocol for the reliable transports, PacketProtocol for packet
// radio — protocol_manager.py's PROTOCOL_MAP, minus the FLDIGI entry this
// bridge has no backend for.
func ForBackend(backend transport.Backend, eng *engine.Engine) Handler {
	switch backend.Type() {
	case transport.TypeVARA, transport.TypeReticulum:
		return &DirectProtocol{Backend: backend}
	default:
		return &PacketProtocol{Engine: eng}
	}
}
