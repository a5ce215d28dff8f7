// Package station is the top-level HAMSTR application object: global
// mutable state from the original (the radio-busy flag, the singleton TNC
// connection, the single identity) collapsed into one explicit value with a
// mutex guarding the active-transfer slot, per spec §9's "Global mutable
// state" note.
package station

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/engine"
	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
	"github.com/LibertyFarmer/hamstr-sub000/internal/protocol"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

var log = logx.Tagged(logx.System)

// ErrBusy is returned when a second radio operation is attempted while one
// is already in flight — spec §5's "only one transfer at a time across the
// entire process... fails immediately with 'radio operation in progress'".
var ErrBusy = errors.New("station: radio operation in progress")

// Station owns one backend, its session engine and protocol dispatcher, and
// the single-session registry, for one role (client or server) of one
// HAMSTR link.
type Station struct {
	Cfg      config.Config
	Local    ax25.Callsign
	Backend  transport.Backend
	Engine   *engine.Engine
	Protocol protocol.Handler
	Registry *session.Registry

	mu      sync.Mutex
	busy    bool
	counter uint64
}

// New wires a backend into a Station: the session engine (meaningful only
// for packet-radio backends; DirectProtocol backends drive the transport
// directly) and the protocol dispatcher spec §4.3 selects by backend type.
func New(backend transport.Backend, local ax25.Callsign, cfg config.Config) *Station {
	eng := engine.New(backend, local, cfg)
	s := &Station{
		Cfg:     cfg,
		Local:   local,
		Backend: backend,
		Engine:  eng,
	}
	s.Registry = session.NewRegistry(func(sess *session.Session) {
		log.Warn("evicting stale session %s (remote %s)", sess.ID, sess.Remote)
	})
	s.Protocol = protocol.ForBackend(backend, eng)
	return s
}

func (s *Station) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Station) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Station) nextSessionID() string {
	return session.NextID(atomic.AddUint64(&s.counter, 1))
}

// connectOut initiates an outgoing link to remote: for packet radio this
// drives the engine's CONNECT/CONNECT_ACK/ACK handshake; for VARA and
// Reticulum the backend's own Connect already performs the equivalent
// handshake (modem CONNECT/CONNECTED, or HELLO/ACCEPT).
func (s *Station) connectOut(remote ax25.Callsign) (*session.Session, error) {
	sess := session.New(s.nextSessionID(), remote)
	s.Registry.Accept(sess)

	if s.Backend.Type() == transport.TypePacket {
		if err := s.Engine.Connect(sess, remote); err != nil {
			s.Registry.Clear(sess)
			return nil, err
		}
		return sess, nil
	}

	if err := s.Backend.Connect(remote); err != nil {
		s.Registry.Clear(sess)
		return nil, fmt.Errorf("station: connecting to %s: %w", remote, err)
	}
	sess.SetState(session.Connected)
	return sess, nil
}

// acceptIn waits (blocking, per spec §4.1's "server side may block until a
// peer arrives") for one incoming link, the server-side counterpart of
// connectOut.
func (s *Station) acceptIn(timeout time.Duration) (*session.Session, error) {
	sess := session.New(s.nextSessionID(), ax25.Callsign{})
	s.Registry.Accept(sess)

	if s.Backend.Type() == transport.TypePacket {
		result, err := s.Engine.AwaitConnect(sess, timeout)
		if err != nil {
			s.Registry.Clear(sess)
			return nil, err
		}
		sess.PendingRequest = result.Pending
		return sess, nil
	}

	if err := s.Backend.Connect(ax25.Callsign{}); err != nil {
		s.Registry.Clear(sess)
		return nil, fmt.Errorf("station: awaiting connection: %w", err)
	}
	if ri, ok := s.Backend.(transport.RemoteIdentifier); ok {
		sess.Remote = ri.RemoteCallsign()
	}
	sess.SetState(session.Connected)
	return sess, nil
}

// teardownClient runs the appropriate shutdown sequence for the active protocol —
// the engine's symmetric DISCONNECT/ACK exchange for packet radio, or
// DirectProtocol's explicit ACK/DONE/DONE_ACK/DISCONNECT/DISCONNECT_ACK
// dance (spec §4.3.1, Scenario F) for VARA/Reticulum — then releases the
// session from the registry.
func (s *Station) teardownClient(sess *session.Session) {
	if dp, ok := s.Protocol.(*protocol.DirectProtocol); ok {
		clientFinishDirect(dp, sess)
	} else {
		if err := s.Engine.Disconnect(sess, true); err != nil {
			log.Warn("disconnect: %v", err)
		}
	}
	s.Backend.Disconnect()
	s.Registry.Clear(sess)
}

func (s *Station) teardownServer(sess *session.Session) {
	if dp, ok := s.Protocol.(*protocol.DirectProtocol); ok {
		serverFinishDirect(dp, sess)
	}
	// On packet radio the server neither waits for the client's DISCONNECT
	// nor answers it with ACK: the backend is closed right away, and the
	// client's engine.Disconnect ends when its ACK wait runs out.
	s.Backend.Disconnect()
	s.Registry.Clear(sess)
}

// clientFinishDirect runs the client's half of spec §4.3.1's shutdown dance
// after a reply has been received: ACK, await DONE, DONE_ACK, await
// DISCONNECT, DISCONNECT_ACK.
func clientFinishDirect(dp *protocol.DirectProtocol, sess *session.Session) {
	if err := dp.SendControl(sess, "ACK"); err != nil {
		log.Warn("direct shutdown: sending ACK: %v", err)
		return
	}
	if !dp.AwaitControl(sess, "DONE", 30*time.Second) {
		log.Warn("direct shutdown: no DONE from server")
		return
	}
	if err := dp.SendControl(sess, "DONE_ACK"); err != nil {
		log.Warn("direct shutdown: sending DONE_ACK: %v", err)
		return
	}
	if !dp.AwaitControl(sess, "DISCONNECT", 30*time.Second) {
		log.Warn("direct shutdown: no DISCONNECT from server")
		return
	}
	dp.SendControl(sess, "DISCONNECT_ACK")
	time.Sleep(2 * time.Second)
}

// serverFinishDirect runs the server's complementary half: await ACK, DONE,
// await DONE_ACK, DISCONNECT, await DISCONNECT_ACK.
func serverFinishDirect(dp *protocol.DirectProtocol, sess *session.Session) {
	if !dp.AwaitControl(sess, "ACK", 30*time.Second) {
		log.Warn("direct shutdown: no ACK from client")
		return
	}
	if err := dp.SendControl(sess, "DONE"); err != nil {
		log.Warn("direct shutdown: sending DONE: %v", err)
		return
	}
	if !dp.AwaitControl(sess, "DONE_ACK", 15*time.Second) {
		log.Warn("direct shutdown: no DONE_ACK from client")
	}
	dp.SendControl(sess, "DISCONNECT")
	dp.AwaitControl(sess, "DISCONNECT_ACK", 15*time.Second)
}
