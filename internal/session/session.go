// Package session tracks the single active HAMSTR link a station may hold
// at a time: its state machine, packet reassembly buffers, and the
// housekeeping connection_manager.py calls "sessions" (a dict keyed by id,
// though this bridge only ever runs one session concurrently).
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
)

// State is the half-duplex session state machine (spec §3).
type State int

const (
	Idle State = iota
	Connecting
	Connected
	DataPrep
	Sending
	Receiving
	Acknowledging
	WaitingForMissing
	DoneAck
	Disconnecting
	Disconnected
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case DataPrep:
		return "DATA_PREP"
	case Sending:
		return "SENDING"
	case Receiving:
		return "RECEIVING"
	case Acknowledging:
		return "ACKNOWLEDGING"
	case WaitingForMissing:
		return "WAITING_FOR_MISSING"
	case DoneAck:
		return "DONE_ACK"
	case Disconnecting:
		return "DISCONNECTING"
	case Disconnected:
		return "DISCONNECTED"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Session is one HAMSTR link's mutable state: reassembly buffers, outgoing
// packet cache (for retransmission), and the timestamp the inactivity sweep
// watches.
type Session struct {
	mu sync.Mutex

	ID             string
	Remote         ax25.Callsign
	State          State
	LastActivity   time.Time
	ExpectedSeq    int
	TotalPackets   int
	ReceivedChunks map[int]string
	SentChunks     map[int]string
	IsNoteWriting  bool
	PendingRequest string
}

// New creates a session in the IDLE state for remote.
func New(id string, remote ax25.Callsign) *Session {
	return &Session{
		ID:             id,
		Remote:         remote,
		State:          Idle,
		LastActivity:   time.Now(),
		ExpectedSeq:    1,
		ReceivedChunks: make(map[int]string),
		SentChunks:     make(map[int]string),
	}
}

// Touch records activity, resetting the inactivity sweep's clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivity = time.Now()
}

// SetState transitions the session to next.
func (s *Session) SetState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = next
}

// CurrentState returns the session's state under lock.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Idle reports whether the session has been inactive for longer than d.
func (s *Session) Idle(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastActivity) > d
}

// Registry holds the station's single active session, enforcing
// "one active session at a time" (spec §3) and stale-session eviction on a
// new incoming CONNECT, per connection_manager.py::connect's "Session ...
// exists. Cleaning up stale session."
type Registry struct {
	mu      sync.Mutex
	active  *Session
	onEvict func(*Session)
}

// NewRegistry builds an empty registry. onEvict, if non-nil, is called
// (outside the registry's lock) whenever a session is replaced or swept —
// the station wires it to release the session's transport/PTT resources.
func NewRegistry(onEvict func(*Session)) *Registry {
	return &Registry{onEvict: onEvict}
}

// Accept installs sess as the active session, evicting and reporting
// whatever session (if any) was previously active.
func (r *Registry) Accept(sess *Session) {
	r.mu.Lock()
	prev := r.active
	r.active = sess
	r.mu.Unlock()
	if prev != nil && r.onEvict != nil {
		r.onEvict(prev)
	}
}

// Active returns the current session, or nil if none.
func (r *Registry) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Clear removes sess as the active session if it still is the active one.
func (r *Registry) Clear(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == sess {
		r.active = nil
	}
}

// SweepInactive evicts the active session if it has been idle longer than
// timeout, reporting it through onEvict. Intended to run on a ticker
// alongside keep-alive handling.
func (r *Registry) SweepInactive(timeout time.Duration) {
	r.mu.Lock()
	sess := r.active
	var stale bool
	if sess != nil {
		stale = sess.Idle(timeout)
		if stale {
			r.active = nil
		}
	}
	r.mu.Unlock()
	if stale && r.onEvict != nil {
		r.onEvict(sess)
	}
}

// NextID generates a short, human-distinguishable session id from a
// monotonically increasing counter — the original keys sessions by a dict,
// this bridge only ever has one active at a time but still wants a stable
// label for log lines.
func NextID(counter uint64) string {
	return fmt.Sprintf("sess-%d", counter)
}
