package engine

import (
	"fmt"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/wire"
)

// connectAckResends is the number of extra CONNECT_ACK sends the server
// offers a client that hasn't ACKed yet, at the 1/3 and 2/3 marks of
// ack_timeout — connection_manager.py::handle_incoming_connection's resend
// ladder.
const connectAckResends = 2

// Connect dials remote: send CONNECT, wait for CONNECT_ACK, answer it with
// ACK, retrying the whole request up to ConnectionAttemptTimeout. On the
// server side AwaitConnect also takes a DATA_REQUEST in place of that ACK
// (spec §4.2's implicit-ACK tolerance).
func (e *Engine) Connect(sess *session.Session, remote ax25.Callsign) error {
	sess.SetState(session.Connecting)
	deadline := time.Now().Add(e.Cfg.ConnectionAttemptTimeout)
	for time.Now().Before(deadline) {
		if err := e.sendSinglePacket(sess, 0, 0, wire.Connect, e.Local.String()); err != nil {
			return err
		}
		pkt, err := e.ReceiveMessage(sess, e.Cfg.AckTimeout)
		if err == nil && pkt.Type == wire.ConnectAck {
			if err := e.sendSinglePacket(sess, 0, 0, wire.Ack, "ACK"); err != nil {
				return err
			}
			sess.SetState(session.Connected)
			return nil
		}
	}
	sess.SetState(session.Error)
	return fmt.Errorf("engine: connecting to %s: %w", remote, ErrConnectionTimeout)
}

// AcceptResult is what AwaitConnect hands back once a peer has completed
// the handshake: the session is CONNECTED, and pending carries a
// DATA_REQUEST the original's "implicit ACK" path may have bundled in.
type AcceptResult struct {
	Pending string
}

// AwaitConnect blocks (up to timeout) for an incoming CONNECT, accepts it
// with CONNECT_ACK, and waits for the peer's ACK — or an implicit ACK via
// DATA_REQUEST — resending CONNECT_ACK on the 1/3 and 2/3 timeout marks if
// nothing has arrived yet (connection_manager.py::handle_incoming_connection).
func (e *Engine) AwaitConnect(sess *session.Session, timeout time.Duration) (AcceptResult, error) {
	pkt, err := e.ReceiveMessage(sess, timeout)
	if err != nil {
		return AcceptResult{}, err
	}
	if pkt.Type != wire.Connect {
		return AcceptResult{}, fmt.Errorf("engine: expected CONNECT, got %s", pkt.Type)
	}
	if remote, err := ax25.ParseCallsign(pkt.Content); err == nil {
		sess.Remote = remote
	}
	log.Info("received CONNECT from %s", sess.Remote)

	if e.Cfg.ConnectionStabilizationDelay > 0 {
		time.Sleep(e.Cfg.ConnectionStabilizationDelay)
	}
	if err := e.sendSinglePacket(sess, 0, 0, wire.ConnectAck, "Connection Accepted"); err != nil {
		return AcceptResult{}, err
	}

	ackTimeout := e.Cfg.AckTimeout
	start := time.Now()
	resends := 0
	var pending string
	for time.Since(start) < ackTimeout {
		remaining := ackTimeout - time.Since(start)
		step := remaining
		if step > 500*time.Millisecond {
			step = 500 * time.Millisecond
		}
		pkt, err := e.ReceiveMessage(sess, step)
		if err == nil {
			switch pkt.Type {
			case wire.Ack:
				sess.SetState(session.Connected)
				return AcceptResult{}, nil
			case wire.DataRequest:
				log.Info("received DATA_REQUEST from %s, treating as implicit ACK", sess.Remote)
				pending = pkt.Content
				sess.SetState(session.Connected)
				return AcceptResult{Pending: pending}, nil
			case wire.Disconnect:
				return AcceptResult{}, ErrDisconnected
			}
		}
		if time.Since(start) > (ackTimeout/3)*time.Duration(resends+1) && resends < connectAckResends {
			log.Info("no ACK yet, resending CONNECT_ACK (attempt %d)", resends+1)
			e.sendSinglePacket(sess, 0, 0, wire.ConnectAck, "Connection Accepted")
			resends++
		}
	}
	sess.SetState(session.Error)
	return AcceptResult{}, ErrConnectionTimeout
}

// Disconnect sends DISCONNECT and waits for the peer's plain ACK before
// returning — symmetric teardown per connection_manager.py::initiate_disconnect,
// which calls wait_for_ack, not a dedicated disconnect-ack type.
func (e *Engine) Disconnect(sess *session.Session, waitForAck bool) error {
	sess.SetState(session.Disconnecting)
	if err := e.SendControl(sess, wire.Disconnect, "DISCONNECT"); err != nil {
		sess.SetState(session.Disconnected)
		return err
	}
	if waitForAck {
		deadline := time.Now().Add(e.Cfg.DisconnectTimeout)
		for time.Now().Before(deadline) {
			pkt, err := e.ReceiveMessage(sess, 500*time.Millisecond)
			if err == nil && pkt.Type == wire.Ack {
				break
			}
		}
	}
	sess.SetState(session.Disconnected)
	return nil
}

// HandleDisconnect reacts to a peer-initiated DISCONNECT: acknowledges it
// with a plain ACK and marks the session closed, matching
// connection_manager.py::handle_disconnect_request's send_ack call.
func (e *Engine) HandleDisconnect(sess *session.Session) error {
	log.Info("received DISCONNECT from %s", sess.Remote)
	err := e.sendSinglePacket(sess, 0, 0, wire.Ack, "ACK")
	sess.SetState(session.Disconnected)
	return err
}
