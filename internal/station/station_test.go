package station

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

// pairBackend is a duplex in-memory transport.Backend, the same
// buffered-channel technique internal/protocol's own tests use for a
// transport pair, duplicated here since it's test-only scaffolding.
type pairBackend struct {
	local  ax25.Callsign
	remote ax25.Callsign
	typ    transport.Type
	inbox  chan pairFrame
	peer   *pairBackend
}

type pairFrame struct {
	from ax25.Callsign
	raw  string
}

func newPair(typ transport.Type, a, b ax25.Callsign) (*pairBackend, *pairBackend) {
	pa := &pairBackend{local: a, remote: b, typ: typ, inbox: make(chan pairFrame, 256)}
	pb := &pairBackend{local: b, remote: a, typ: typ, inbox: make(chan pairFrame, 256)}
	pa.peer, pb.peer = pb, pa
	return pa, pb
}

func (p *pairBackend) Type() transport.Type             { return p.typ }
func (p *pairBackend) Connect(ax25.Callsign) error      { return nil }
func (p *pairBackend) Disconnect() error                { return nil }
func (p *pairBackend) IsConnected() bool                { return true }
func (p *pairBackend) RemoteCallsign() ax25.Callsign    { return p.remote }
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

func fastCfg() config.Config {
	cfg := config.Defaults()
	cfg.ConnectionTimeout = 2 * time.Second
	cfg.PTT.Tail = 0
	cfg.PTT.RxDelay = 0
	cfg.PTT.AckSpacing = 0
	return cfg
}

func echoHandler(d DecodedRequest) (bool, []byte, *CollaboratorError) {
	if d.Command == "NOTE" {
		return true, []byte("published"), nil
	}
	return true, []byte("note-one||note-two"), nil
}

func failHandler(d DecodedRequest) (bool, []byte, *CollaboratorError) {
	return false, nil, &CollaboratorError{Type: "relay_unreachable", Message: "no relays responded"}
}

func Test_Station_RequestNotes_over_direct_transport(t *testing.T) {
	clientCall := ax25.Callsign{Call: "CLIENT"}
	serverCall := ax25.Callsign{Call: "SERVER"}
	clientTP, serverTP := newPair(transport.TypeVARA, clientCall, serverCall)

	cfg := fastCfg()
	client := New(clientTP, clientCall, cfg)
	server := New(serverTP, serverCall, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.serveOne(ctx, echoHandler)
	}()

	data, err := client.RequestNotes(serverCall, RequestGlobal, 5, "")
	require.NoError(t, err)
	assert.Contains(t, string(data), "note-one")

	wg.Wait()
	assert.Nil(t, client.Registry.Active())
	assert.Nil(t, server.Registry.Active())
}

func Test_Station_SendNote_over_direct_transport(t *testing.T) {
	clientCall := ax25.Callsign{Call: "CLIENT"}
	serverCall := ax25.Callsign{Call: "SERVER"}
	clientTP, serverTP := newPair(transport.TypeVARA, clientCall, serverCall)

	cfg := fastCfg()
	client := New(clientTP, clientCall, cfg)
	server := New(serverTP, serverCall, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.serveOne(ctx, echoHandler)
	}()

	err := client.SendNote(serverCall, []byte(`{"kind":1,"content":"hello"}`))
	require.NoError(t, err)
	wg.Wait()
}

func Test_Station_RequestNotes_surfaces_collaborator_error(t *testing.T) {
	clientCall := ax25.Callsign{Call: "CLIENT"}
	serverCall := ax25.Callsign{Call: "SERVER"}
	clientTP, serverTP := newPair(transport.TypeVARA, clientCall, serverCall)

	cfg := fastCfg()
	client := New(clientTP, clientCall, cfg)
	server := New(serverTP, serverCall, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.serveOne(ctx, failHandler)
	}()

	_, err := client.RequestNotes(serverCall, RequestGlobal, 5, "")
	wg.Wait()

	require.Error(t, err)
	var collabErr CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, "relay_unreachable", collabErr.Type)
}

func Test_Station_acquire_rejects_concurrent_operation(t *testing.T) {
	clientCall := ax25.Callsign{Call: "CLIENT"}
	serverCall := ax25.Callsign{Call: "SERVER"}
	clientTP, _ := newPair(transport.TypeVARA, clientCall, serverCall)

	s := New(clientTP, clientCall, fastCfg())
	require.NoError(t, s.acquire())
	assert.ErrorIs(t, s.acquire(), ErrBusy)
	s.release()
	assert.NoError(t, s.acquire())
}

func Test_decodeRequest_splits_command_count_params(t *testing.T) {
	d := decodeRequest("GET_NOTES 5 5|somehashtag")
	assert.Equal(t, "GET_NOTES", d.Command)
	assert.Equal(t, 5, d.Count)
	assert.Equal(t, RequestSearchHashtag, d.ReqType)
	assert.Equal(t, "somehashtag", d.Params)
}

func Test_decodeRequest_note_command_keeps_raw_content(t *testing.T) {
	d := decodeRequest(`NOTE 0 {"kind":1,"content":"hi there"}`)
	assert.Equal(t, "NOTE", d.Command)
	assert.Equal(t, `{"kind":1,"content":"hi there"}`, d.Content)
}
