package protocol

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/engine"
	"github.com/LibertyFarmer/hamstr-sub000/internal/session"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

// pairBackend is an in-memory transport.Backend pair, the same buffered-
// channel technique internal/engine's own tests use, duplicated here
// (rather than exported from internal/engine) since it's test-only
// scaffolding with no production caller.
type pairBackend struct {
	local ax25.Callsign
	inbox chan pairFrame
	peer  *pairBackend
}

type pairFrame struct {
	from ax25.Callsign
	raw  string
}

func newPacketPair(a, b ax25.Callsign) (*pairBackend, *pairBackend) {
	pa := &pairBackend{local: a, inbox: make(chan pairFrame, 256)}
	pb := &pairBackend{local: b, inbox: make(chan pairFrame, 256)}
	pa.peer, pb.peer = pb, pa
	return pa, pb
}

func (p *pairBackend) Type() transport.Type        { return transport.TypePacket }
func (p *pairBackend) Connect(ax25.Callsign) error  { return nil }
func (p *pairBackend) Disconnect() error            { return nil }
func (p *pairBackend) IsConnected() bool            { return true }
func (p *pairBackend) SendData(_ ax25.Callsign, raw string) error {
	p.peer.inbox <- pairFrame{from: p.local, raw: raw}
	return nil
}
func (p *pairBackend) ReceiveData(timeout time.Duration) (ax25.Callsign, string, error) {
	select {
	case f := <-p.inbox:
		return f.from, f.raw, nil
	case <-time.After(timeout):
		return ax25.Callsign{}, "", transport.ErrTimeout
	}
}

func fastPacketCfg() config.Config {
	cfg := config.Defaults()
	cfg.AckTimeout = 100 * time.Millisecond
	cfg.ReadyTimeout = 200 * time.Millisecond
	cfg.ConnectionTimeout = 2 * time.Second
	cfg.NoPacketTimeout = 300 * time.Millisecond
	cfg.MissingPacketsTimeout = 500 * time.Millisecond
	cfg.PacketSendDelay = 0
	cfg.SendRetries = 3
	cfg.MaxPacketSize = 64
	cfg.ConnectionStabilizationDelay = 0
	cfg.PTT.Tail = 0
	cfg.PTT.RxDelay = 0
	cfg.PTT.AckSpacing = 0
	return cfg
}

// Test_PacketProtocol_request_response_roundtrip drives a full
// DATA_REQUEST/READY handshake followed by a segmented RESPONSE transfer
// between a client and server PacketProtocol pair.
func Test_PacketProtocol_request_response_roundtrip(t *testing.T) {
	clientCall := ax25.Callsign{Call: "CLIENT"}
	serverCall := ax25.Callsign{Call: "SERVER"}
	clientTP, serverTP := newPacketPair(clientCall, serverCall)

	cfg := fastPacketCfg()
	clientProto := &PacketProtocol{Engine: engine.New(clientTP, clientCall, cfg)}
	serverProto := &PacketProtocol{Engine: engine.New(serverTP, serverCall, cfg)}

	clientSess := session.New("c", serverCall)
	serverSess := session.New("s", clientCall)

	var wg sync.WaitGroup
	wg.Add(2)

	var sendErr error
	go func() {
		defer wg.Done()
		sendErr = clientProto.SendRequest(clientSess, Request{"type": "GET_NOTES", "count": float64(2)})
	}()

	var awaitErr error
	var gotReq string
	go func() {
		defer wg.Done()
		gotReq, awaitErr = serverProto.AwaitRequest(serverSess, time.Second)
	}()
	wg.Wait()

	require.NoError(t, sendErr)
	require.NoError(t, awaitErr)
	assert.Equal(t, "GET_NOTES 2", gotReq)

	wg.Add(2)
	var respErr error
	go func() {
		defer wg.Done()
		respErr = serverProto.SendResponse(serverSess, "note one||note two||note three, a little longer than one packet to force multiple chunks")
	}()
	var recvErr error
	var got Request
	go func() {
		defer wg.Done()
		got, recvErr = clientProto.ReceiveResponse(clientSess, 2*time.Second)
	}()
	wg.Wait()

	require.NoError(t, respErr)
	require.NoError(t, recvErr)
	assert.Equal(t, "packet", got["protocol"])
	assert.Contains(t, got["data"], "note one")
}
