package station

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/protocol"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
)

// DecodedRequest is a client request after the protocol-specific framing
// (space-separated packet request string, or JSON direct frame) has been stripped
// away — server.py::process_request's input, generalized across both
// transports.
type DecodedRequest struct {
	Command string // "GET_NOTES", "NOTE", or a collaborator-opaque command
	ReqType NoteRequestType
	Count   int
	Params  string
	Content string // raw NOTE/ZAP event body, when Command != "GET_NOTES"
}

// RequestHandler processes one decoded request and returns the reply
// payload to compress and send back — server.py::process_request's
// contract, minus the NOSTR/Lightning mechanics themselves (the station's
// caller owns a NostrCollaborator/LightningCollaborator to do that).
type RequestHandler func(DecodedRequest) (success bool, data []byte, collabErr *CollaboratorError)

// Serve runs the server accept→handle→reset loop (spec §4.4): one session
// at a time, reset to await the next peer after every outcome. It blocks
// until ctx is canceled.
func (s *Station) Serve(ctx context.Context, handle RequestHandler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.serveOne(ctx, handle)
	}
}

func (s *Station) serveOne(ctx context.Context, handle RequestHandler) {
	if err := s.acquire(); err != nil {
		time.Sleep(100 * time.Millisecond)
		return
	}
	defer s.release()

	sess, err := s.acceptIn(s.Cfg.ConnectionTimeout)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("accept failed: %v", err)
		}
		return
	}
	log.Info("session %s: accepted from %s", sess.ID, sess.Remote)

	if err := s.handleSession(sess, handle); err != nil {
		log.Warn("session %s: %v", sess.ID, err)
	}
	s.teardownServer(sess)
	log.Info("session %s: closed", sess.ID)
}

func (s *Station) handleSession(sess *session.Session, handle RequestHandler) error {
	var reqStr string
	if sess.PendingRequest != "" {
		reqStr = sess.PendingRequest
	} else {
		switch p := s.Protocol.(type) {
		case *protocol.PacketProtocol:
			r, err := p.AwaitRequest(sess, s.Cfg.ConnectionTimeout)
			if err != nil {
				return err
			}
			reqStr = r
		case *protocol.DirectProtocol:
			req, err := p.ReceiveResponse(sess, s.Cfg.ConnectionTimeout)
			if err != nil {
				return err
			}
			reqStr = directRequestString(req)
		}
	}

	decoded := decodeRequest(reqStr)
	success, data, collabErr := handle(decoded)
	response := encodeResponse(success, data, collabErr)

	switch p := s.Protocol.(type) {
	case *protocol.PacketProtocol:
		body, err := json.Marshal(response)
		if err != nil {
			return fmt.Errorf("station: marshaling response: %w", err)
		}
		return p.SendResponse(sess, string(body))
	case *protocol.DirectProtocol:
		return p.SendRequest(sess, response)
	}
	return nil
}

// directRequestString re-flattens a DirectProtocol JSON request back into
// the same "<TYPE> <count> <params>" shape decodeRequest expects, so both
// protocols share one decoding path server-side.
func directRequestString(req protocol.Request) string {
	reqType, _ := req["type"].(string)
	if reqType == "" {
		reqType = "GET_NOTES"
	}
	if content, ok := req["content"].(string); ok && content != "" {
		return reqType + " 0 " + content
	}
	count := 2
	switch v := req["count"].(type) {
	case int:
		count = v
	case float64:
		count = int(v)
	}
	params, _ := req["params"].(string)
	if params != "" {
		return reqType + " " + strconv.Itoa(count) + " " + params
	}
	return reqType + " " + strconv.Itoa(count)
}

func decodeRequest(reqStr string) DecodedRequest {
	fields := strings.SplitN(strings.TrimSpace(reqStr), " ", 3)
	d := DecodedRequest{Command: "GET_NOTES"}
	if len(fields) == 0 {
		return d
	}
	d.Command = fields[0]
	if d.Command != "GET_NOTES" {
		if len(fields) >= 3 {
			d.Content = fields[2]
		}
		return d
	}
	if len(fields) >= 2 {
		if n, err := strconv.Atoi(fields[1]); err == nil {
			d.Count = n
		}
	}
	if len(fields) >= 3 {
		parts := strings.SplitN(fields[2], "|", 2)
		if n, err := strconv.Atoi(parts[0]); err == nil {
			d.ReqType = NoteRequestType(n)
		}
		if len(parts) == 2 {
			d.Params = parts[1]
		}
	}
	return d
}

func encodeResponse(success bool, data []byte, collabErr *CollaboratorError) protocol.Request {
	if collabErr != nil {
		return protocol.Request{
			"success":    false,
			"error_type": collabErr.Type,
			"message":    collabErr.Message,
		}
	}
	return protocol.Request{
		"success": success,
		"data":    string(data),
	}
}
