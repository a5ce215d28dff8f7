package reticulum

import (
	"encoding/hex"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func Test_LoadOrCreate_persists_identity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity")

	id1, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.Len(t, id1.Public, 32)

	id2, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, id1.Public, id2.Public)
	assert.Equal(t, id1.Private, id2.Private)
}

func Test_DestinationHash_stable_and_aspect_sensitive(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadOrCreate(filepath.Join(dir, "identity"))
	require.NoError(t, err)

	h1 := DestinationHash(id.Public, "hamstr", "server")
	h2 := DestinationHash(id.Public, "hamstr", "server")
	h3 := DestinationHash(id.Public, "hamstr", "client")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 32) // 16 bytes hex-encoded
}

func Test_Backend_Connect_handshake_and_roundtrip(t *testing.T) {
	dir := t.TempDir()
	port := freePort(t)
	listenAddr := "127.0.0.1:" + strconv.Itoa(port)

	serverCfg := Config{
		IdentityPath:   filepath.Join(dir, "server_identity"),
		AppName:        "hamstr",
		ListenAddr:     listenAddr,
		ConnectTimeout: 2 * time.Second,
	}
	server, err := New(serverCfg, true)
	require.NoError(t, err)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Connect(ax25.Callsign{Call: "CLIENT"})
	}()

	clientCfg := Config{
		IdentityPath:   filepath.Join(dir, "client_identity"),
		AppName:        "hamstr",
		PeerAddr:       listenAddr,
		ServerHash:     server.Hash(),
		ConnectTimeout: 2 * time.Second,
	}
	client, err := New(clientCfg, false)
	require.NoError(t, err)

	require.NoError(t, client.Connect(ax25.Callsign{Call: "SERVER"}))
	require.NoError(t, <-serverDone)

	assert.True(t, client.IsConnected())
	assert.True(t, server.IsConnected())

	require.NoError(t, client.SendData(ax25.Callsign{}, "hello from client"))
	_, got, err := server.ReceiveData(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello from client", got)

	require.NoError(t, server.SendData(ax25.Callsign{}, "hello from server"))
	_, got, err = client.ReceiveData(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello from server", got)

	require.NoError(t, client.Disconnect())
	require.NoError(t, server.Disconnect())
}

func Test_Backend_Connect_rejects_server_hash_mismatch(t *testing.T) {
	dir := t.TempDir()
	port := freePort(t)
	listenAddr := "127.0.0.1:" + strconv.Itoa(port)

	server, err := New(Config{
		IdentityPath:   filepath.Join(dir, "server_identity"),
		AppName:        "hamstr",
		ListenAddr:     listenAddr,
		ConnectTimeout: 2 * time.Second,
	}, true)
	require.NoError(t, err)

	go server.Connect(ax25.Callsign{Call: "CLIENT"})

	client, err := New(Config{
		IdentityPath:   filepath.Join(dir, "client_identity"),
		AppName:        "hamstr",
		PeerAddr:       listenAddr,
		ServerHash:     hex.EncodeToString([]byte("not the real hash, 16b")),
		ConnectTimeout: 2 * time.Second,
	}, false)
	require.NoError(t, err)

	err = client.Connect(ax25.Callsign{Call: "SERVER"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}
