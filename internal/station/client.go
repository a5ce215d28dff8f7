package station

import (
	"encoding/json"
	"fmt"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/protocol"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
)

// RequestNotes connects to remote, asks it for NOSTR events matching
// reqType/count/params, and returns the (still compressed, collaborator-
// opaque) response bytes — client.py::connect_and_send_request collapsed
// to this bridge's single code path (the protocol dispatcher, not the
// client, decides packet-vs-direct framing).
func (s *Station) RequestNotes(remote ax25.Callsign, reqType NoteRequestType, count int, params string) ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	sess, err := s.connectOut(remote)
	if err != nil {
		return nil, fmt.Errorf("station: connecting to %s: %w", remote, err)
	}
	log.Info("connected to %s", remote)

	// formatRequestString builds "GET_NOTES <count> <params>"; the numeric
	// request-type code rides inside params (reqType[|extra]) since the
	// command name itself is always GET_NOTES here.
	req := protocol.Request{"count": count}
	if params != "" {
		req["params"] = fmt.Sprintf("%d|%s", int(reqType), params)
	} else {
		req["params"] = fmt.Sprintf("%d", int(reqType))
	}

	resp, err := s.roundTrip(sess, req)
	s.teardownClient(sess)
	if err != nil {
		return nil, err
	}

	if ok, _ := resp["success"].(bool); !ok {
		if _, hasErr := resp["error_type"]; hasErr {
			return nil, CollaboratorError{
				Type:    stringField(resp, "error_type"),
				Message: stringField(resp, "message"),
			}
		}
	}

	data, _ := resp["data"].(string)
	if data == "" {
		if raw, err := json.Marshal(resp); err == nil {
			return raw, nil
		}
	}
	return []byte(data), nil
}

// SendNote connects to remote and publishes a pre-signed NOSTR event,
// waiting for the server's publish confirmation — client.py::connect_and_send_note.
func (s *Station) SendNote(remote ax25.Callsign, event []byte) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	sess, err := s.connectOut(remote)
	if err != nil {
		return fmt.Errorf("station: connecting to %s: %w", remote, err)
	}
	log.Info("connected to %s", remote)

	// "content" is what DirectProtocol's JSON frame carries verbatim;
	// "params" is what PacketProtocol's formatRequestString packs into the
	// DATA_REQUEST string instead, since it only looks at type/count/params.
	req := protocol.Request{"type": "NOTE", "count": 0, "content": string(event), "params": string(event)}
	resp, err := s.roundTrip(sess, req)
	s.teardownClient(sess)
	if err != nil {
		return err
	}

	if ok, _ := resp["success"].(bool); !ok {
		return CollaboratorError{
			Type:    stringField(resp, "error_type"),
			Message: stringField(resp, "message"),
		}
	}
	log.Info("note published via %s", remote)
	return nil
}

// roundTrip sends req and waits for the reply, using whichever protocol
// dispatch (direct or packet) the backend selected.
func (s *Station) roundTrip(sess *session.Session, req protocol.Request) (protocol.Request, error) {
	if err := s.Protocol.SendRequest(sess, req); err != nil {
		return nil, fmt.Errorf("station: sending request: %w", err)
	}
	resp, err := s.Protocol.ReceiveResponse(sess, s.Cfg.ConnectionTimeout)
	if err != nil {
		return nil, fmt.Errorf("station: receiving response: %w", err)
	}
	return resp, nil
}

func stringField(req protocol.Request, key string) string {
	v, _ := req[key].(string)
	return v
}
