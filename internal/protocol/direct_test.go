package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

// loopbackBackend is a minimal transport.Backend that bounces whatever is
// sent back out of ReceiveData, enough to exercise DirectProtocol's JSON
// framing without a real VARA/Reticulum link.
type loopbackBackend struct {
	sent chan string
	typ  transport.Type
}

func newLoopbackBackend() *loopbackBackend {
	return &loopbackBackend{sent: make(chan string, 8), typ: transport.TypeVARA}
}

func (l *loopbackBackend) Type() transport.Type                  { return l.typ }
func (l *loopbackBackend) Connect(ax25.Callsign) error           { return nil }
func (l *loopbackBackend) Disconnect() error                     { return nil }
func (l *loopbackBackend) IsConnected() bool                     { return true }
func (l *loopbackBackend) SendData(_ ax25.Callsign, raw string) error {
	l.sent <- raw
	return nil
}
func (l *loopbackBackend) ReceiveData(timeout time.Duration) (ax25.Callsign, string, error) {
	select {
	case raw := <-l.sent:
		return ax25.Callsign{Call: "PEER"}, raw, nil
	case <-time.After(timeout):
		return ax25.Callsign{}, "", transport.ErrTimeout
	}
}

func Test_DirectProtocol_SendRequest_ReceiveResponse_roundtrip(t *testing.T) {
	backend := newLoopbackBackend()
	p := &DirectProtocol{Backend: backend}
	sess := session.New("s1", ax25.Callsign{Call: "PEER"})

	req := Request{"type": "GET_NOTES", "count": float64(2)}
	require.NoError(t, p.SendRequest(sess, req))

	got, err := p.ReceiveResponse(sess, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "GET_NOTES", got["type"])
	assert.EqualValues(t, 2, got["count"])
}

func Test_DirectProtocol_SendControl_AwaitControl(t *testing.T) {
	backend := newLoopbackBackend()
	p := &DirectProtocol{Backend: backend}
	sess := session.New("s1", ax25.Callsign{Call: "PEER"})

	require.NoError(t, p.SendControl(sess, "DONE"))
	assert.True(t, p.AwaitControl(sess, "DONE", time.Second))
}

// blockingWaiterBackend implements TransmitWaiter to verify DirectProtocol
// consults it after every send rather than assuming completion.
type blockingWaiterBackend struct {
	*loopbackBackend
	waited bool
}

func (b *blockingWaiterBackend) WaitForTransmitComplete(time.Duration) bool {
	b.waited = true
	return true
}

func Test_DirectProtocol_waits_for_transmit_complete_when_supported(t *testing.T) {
	backend := &blockingWaiterBackend{loopbackBackend: newLoopbackBackend()}
	p := &DirectProtocol{Backend: backend}
	sess := session.New("s1", ax25.Callsign{Call: "PEER"})

	require.NoError(t, p.SendRequest(sess, Request{"type": "GET_NOTES"}))
	assert.True(t, backend.waited)
}
