package vara

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/kiss"
)

// fakeModem stands in for a real VARA instance: one listener for the
// command port, one for the data port, scripted just enough to answer a
// client Backend's MYCALL/BW/CHAT/CONNECT sequence with a CONNECTED
// notification and then pass bytes through the data port unmodified.
type fakeModem struct {
	cmdListener  net.Listener
	dataListener net.Listener
}

func startFakeModem(t *testing.T) (*fakeModem, int, int) {
	t.Helper()
	cmdL, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dataL, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fm := &fakeModem{cmdListener: cmdL, dataListener: dataL}

	go func() {
		conn, err := cmdL.Accept()
		if err != nil {
			return
		}
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\r')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "CONNECT ") {
				conn.Write([]byte("CONNECTED REMOTE-2\r"))
			}
		}
	}()

	return fm, cmdL.Addr().(*net.TCPAddr).Port, dataL.Addr().(*net.TCPAddr).Port
}

func (fm *fakeModem) close() {
	fm.cmdListener.Close()
	fm.dataListener.Close()
}

func Test_Backend_Connect_client_completes_handshake(t *testing.T) {
	fm, cmdPort, dataPort := startFakeModem(t)
	defer fm.close()

	var dataServerConn net.Conn
	accepted := make(chan struct{})
	go func() {
		c, err := fm.dataListener.Accept()
		if err == nil {
			dataServerConn = c
		}
		close(accepted)
	}()

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.CommandPort = cmdPort
	cfg.DataPort = dataPort
	cfg.ConnectTimeout = 2 * time.Second

	local := ax25.Callsign{Call: "CLIENT", SSID: 1}
	remote := ax25.Callsign{Call: "REMOTE", SSID: 2}
	b := New(local, false, cfg, nil)

	err := b.Connect(remote)
	require.NoError(t, err)
	assert.True(t, b.IsConnected())

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("data port was never dialed")
	}
	require.NotNil(t, dataServerConn)
}

func Test_Backend_SendData_ReceiveData_roundtrip(t *testing.T) {
	fm, cmdPort, dataPort := startFakeModem(t)
	defer fm.close()

	var dataServerConn net.Conn
	accepted := make(chan struct{})
	go func() {
		c, err := fm.dataListener.Accept()
		if err == nil {
			dataServerConn = c
		}
		close(accepted)
	}()

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.CommandPort = cmdPort
	cfg.DataPort = dataPort
	cfg.ConnectTimeout = 2 * time.Second

	local := ax25.Callsign{Call: "CLIENT"}
	remote := ax25.Callsign{Call: "REMOTE", SSID: 2}
	b := New(local, false, cfg, nil)
	require.NoError(t, b.Connect(remote))
	<-accepted
	require.NotNil(t, dataServerConn)

	require.NoError(t, b.SendData(remote, "hello over vara"))

	buf := make([]byte, 256)
	dataServerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := dataServerConn.Read(buf)
	require.NoError(t, err)

	frame, err := kiss.Unwrap(buf[:n])
	require.NoError(t, err)
	source, payload, err := ax25.ParseUIFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, local, source)
	assert.Equal(t, "hello over vara", string(payload))

	echoFrame := ax25.BuildUIFrame(remote, local, []byte("reply from modem"))
	_, err = dataServerConn.Write(kiss.Wrap(echoFrame))
	require.NoError(t, err)

	gotFrom, gotRaw, err := b.ReceiveData(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, remote, gotFrom)
	assert.Equal(t, "reply from modem", gotRaw)
}

func Test_parseConnectedCallsign(t *testing.T) {
	assert.Equal(t, ax25.Callsign{Call: "REMOTE", SSID: 2}, parseConnectedCallsign("CONNECTED REMOTE-2"))
	assert.Equal(t, ax25.Callsign{Call: "REMOTE"}, parseConnectedCallsign("CONNECTED REMOTE"))
}
