package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
)

func Test_Registry_Accept_evicts_previous_session(t *testing.T) {
	var evicted *Session
	reg := NewRegistry(func(s *Session) { evicted = s })

	first := New("sess-1", ax25.Callsign{Call: "N0CALL"})
	reg.Accept(first)
	assert.Nil(t, evicted)

	second := New("sess-2", ax25.Callsign{Call: "N1CALL"})
	reg.Accept(second)

	assert.Same(t, first, evicted)
	assert.Same(t, second, reg.Active())
}

func Test_Registry_Clear_only_clears_if_still_active(t *testing.T) {
	reg := NewRegistry(nil)
	sess := New("sess-1", ax25.Callsign{Call: "N0CALL"})
	reg.Accept(sess)

	other := New("sess-2", ax25.Callsign{Call: "N1CALL"})
	reg.Clear(other) // not active, no-op
	assert.Same(t, sess, reg.Active())

	reg.Clear(sess)
	assert.Nil(t, reg.Active())
}

func Test_Registry_SweepInactive_evicts_stale_session(t *testing.T) {
	var evicted *Session
	reg := NewRegistry(func(s *Session) { evicted = s })

	sess := New("sess-1", ax25.Callsign{Call: "N0CALL"})
	sess.LastActivity = time.Now().Add(-time.Hour)
	reg.Accept(sess)

	reg.SweepInactive(time.Minute)

	assert.Same(t, sess, evicted)
	assert.Nil(t, reg.Active())
}

func Test_Registry_SweepInactive_leaves_fresh_session(t *testing.T) {
	reg := NewRegistry(func(*Session) { t.Fatal("should not evict a fresh session") })
	sess := New("sess-1", ax25.Callsign{Call: "N0CALL"})
	reg.Accept(sess)

	reg.SweepInactive(time.Minute)
	assert.Same(t, sess, reg.Active())
}

func Test_Session_state_transitions(t *testing.T) {
	sess := New("sess-1", ax25.Callsign{Call: "N0CALL"})
	assert.Equal(t, Idle, sess.CurrentState())

	sess.SetState(Connecting)
	assert.Equal(t, "CONNECTING", sess.CurrentState().String())
}
