// Package vara implements transport.Backend over a VARA HF modem's command
// and data TCP ports: BW/MYCALL/CHAT/LISTEN/CONNECT commands on the command
// socket, AX.25-in-KISS payloads on the data socket, and a monitor goroutine
// keying PTT off the modem's own PTT ON/OFF notifications — spec §5's VARA
// transport, and the one this bridge treats as reliable enough for
// DirectProtocol (protocol.TransmitWaiter).
package vara

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/kiss"
	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
	"github.com/LibertyFarmer/hamstr-sub000/internal/ptt"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

var log = logx.Tagged(logx.TNC)

// Config is what a Backend needs to reach a VARA instance and identify
// itself — the subset of vara_backend.py's config.py lookups (VARA_HOST,
// *_PTT_*, bandwidth/chat mode) this bridge actually varies per role.
type Config struct {
	Host          string
	CommandPort   int
	DataPort      int
	Bandwidth     int
	ChatMode      string // "ON"/"OFF"
	ConnectTimeout time.Duration
	StallTimeout   time.Duration
}

// DefaultConfig mirrors the original's VARA_BANDWIDTH/VARA_CHAT_MODE
// defaults.
func DefaultConfig() Config {
	return Config{
		Bandwidth:      2300,
		ChatMode:       "ON",
		ConnectTimeout: 30 * time.Second,
		StallTimeout:   60 * time.Second,
	}
}

// Backend drives one VARA modem instance for one role (client or server).
// Only one remote session is ever active at a time, matching the rest of
// this bridge's single-session model even though the original's
// _active_sessions is keyed as if it supported more.
type Backend struct {
	cfg      Config
	local    ax25.Callsign
	isServer bool
	ptt      ptt.Controller

	mu       sync.Mutex
	cmdConn  net.Conn
	dataConn net.Conn
	remote   ax25.Callsign
	connected bool
	scan     kiss.Scanner

	msgMu    sync.Mutex
	messages []string

	transmitting     bool
	bufferLevel      int
	lastBufferChange time.Time

	monitorDone chan struct{}
}

var bufferPattern = regexp.MustCompile(`BUFFER (\d+)`)

// New builds a Backend for local, dialing neither socket yet — Connect does
// that, matching vara_backend.py's lazy _initialize_vara on first use.
func New(local ax25.Callsign, isServer bool, cfg Config, pttCtl ptt.Controller) *Backend {
	if pttCtl == nil {
		pttCtl = noopPTT{}
	}
	return &Backend{cfg: cfg, local: local, isServer: isServer, ptt: pttCtl}
}

func (b *Backend) Type() transport.Type { return transport.TypeVARA }

// RemoteCallsign implements transport.RemoteIdentifier: a server learns who
// connected only once the modem reports CONNECTED, not before.
func (b *Backend) RemoteCallsign() ax25.Callsign {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remote
}

// Connect brings the command and data sockets up and completes the
// CONNECT/CONNECTED exchange: for a client, it issues MYCALL/BW/CHAT/CONNECT
// and waits for the modem to report CONNECTED; for a server, it issues
// LISTEN ON and waits for an incoming CONNECTED notification instead
// (vara_backend.py::connect, minus the self-healing re-init this Backend
// handles instead by just failing Connect and letting the caller retry).
func (b *Backend) Connect(remote ax25.Callsign) error {
	cmdConn, err := net.DialTimeout("tcp", addr(b.cfg.Host, b.cfg.CommandPort), 5*time.Second)
	if err != nil {
		return fmt.Errorf("vara: dialing command port: %w", err)
	}

	if err := b.configureModem(cmdConn); err != nil {
		cmdConn.Close()
		return err
	}

	b.mu.Lock()
	b.cmdConn = cmdConn
	b.mu.Unlock()
	b.startMonitor(cmdConn)

	if b.isServer {
		if err := b.sendCommand(cmdConn, "LISTEN ON"); err != nil {
			return fmt.Errorf("vara: starting LISTEN: %w", err)
		}
		who, ok := b.waitForConnected(b.cfg.ConnectTimeout)
		if !ok {
			return fmt.Errorf("%w: no incoming VARA connection", transport.ErrTimeout)
		}
		remote = who
	} else {
		connectCmd := fmt.Sprintf("CONNECT %s %s", b.local.String(), remote.String())
		if err := b.sendCommand(cmdConn, connectCmd); err != nil {
			return fmt.Errorf("vara: sending CONNECT: %w", err)
		}
		if _, ok := b.waitForConnected(b.cfg.ConnectTimeout); !ok {
			return fmt.Errorf("%w: VARA CONNECT to %s timed out", transport.ErrTimeout, remote)
		}
	}

	dataConn, err := net.DialTimeout("tcp", addr(b.cfg.Host, b.cfg.DataPort), 10*time.Second)
	if err != nil {
		return fmt.Errorf("vara: dialing data port: %w", err)
	}

	b.mu.Lock()
	b.dataConn = dataConn
	b.remote = remote
	b.connected = true
	b.mu.Unlock()
	log.Info("VARA connected to %s", remote)
	return nil
}

func (b *Backend) configureModem(cmdConn net.Conn) error {
	if err := b.sendCommand(cmdConn, fmt.Sprintf("MYCALL %s", b.local.String())); err != nil {
		return fmt.Errorf("vara: setting MYCALL: %w", err)
	}
	if err := b.sendCommand(cmdConn, fmt.Sprintf("BW%d", b.cfg.Bandwidth)); err != nil {
		log.Warn("vara: setting bandwidth failed, proceeding anyway: %v", err)
	}
	if err := b.sendCommand(cmdConn, fmt.Sprintf("CHAT %s", b.cfg.ChatMode)); err != nil {
		log.Warn("vara: setting chat mode failed: %v", err)
	}
	return nil
}

// sendCommand writes one CR-terminated VARA command and discards its
// immediate reply — the monitor goroutine, not this call, is what surfaces
// asynchronous notifications like CONNECTED/PTT ON.
func (b *Backend) sendCommand(conn net.Conn, command string) error {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := conn.Write([]byte(command + "\r"))
	return err
}

// startMonitor launches the goroutine that reads the command socket's
// CR-delimited notification stream, tracking PTT ON/OFF (keying the
// configured ptt.Controller) and BUFFER n (for WaitForTransmitComplete's
// stall detection) — vara_backend.py::_monitor_vara_ptt.
func (b *Backend) startMonitor(conn net.Conn) {
	b.monitorDone = make(chan struct{})
	go func() {
		defer close(b.monitorDone)
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\r')
			if err != nil {
				log.Info("vara command monitor stopped: %v", err)
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			b.msgMu.Lock()
			b.messages = append(b.messages, line)
			b.msgMu.Unlock()

			if m := bufferPattern.FindStringSubmatch(line); m != nil {
				n, _ := strconv.Atoi(m[1])
				b.mu.Lock()
				if n != b.bufferLevel {
					b.bufferLevel = n
					b.lastBufferChange = time.Now()
				}
				b.mu.Unlock()
			}

			switch line {
			case "PTT ON":
				b.mu.Lock()
				b.transmitting = true
				b.mu.Unlock()
				log.Info("VARA PTT ON")
				b.ptt.Key()
			case "PTT OFF":
				b.mu.Lock()
				b.transmitting = false
				b.bufferLevel = 0
				b.lastBufferChange = time.Now()
				b.mu.Unlock()
				log.Info("VARA PTT OFF")
				b.ptt.Unkey()
			}
		}
	}()
}

// waitForConnected polls the monitor's message buffer for a line starting
// with CONNECTED, parsing the remote callsign out of it when present.
func (b *Backend) waitForConnected(timeout time.Duration) (ax25.Callsign, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b.msgMu.Lock()
		for i, msg := range b.messages {
			if strings.HasPrefix(msg, "CONNECTED") {
				b.messages = append(b.messages[:0], b.messages[i+1:]...)
				b.msgMu.Unlock()
				return parseConnectedCallsign(msg), true
			}
		}
		b.msgMu.Unlock()
		time.Sleep(100 * time.Millisecond)
	}
	return ax25.Callsign{}, false
}

func parseConnectedCallsign(msg string) ax25.Callsign {
	fields := strings.Fields(msg)
	var tok string
	if len(fields) >= 3 {
		tok = fields[2]
	} else if len(fields) >= 2 {
		tok = fields[1]
	}
	call, ssid, ok := strings.Cut(tok, "-")
	n := 0
	if ok {
		n, _ = strconv.Atoi(ssid)
	} else {
		call = tok
	}
	return ax25.Callsign{Call: call, SSID: n}
}

// hasDisconnectNotice reports whether a DISCONNECTED line is in the
// monitor's buffer. Checking does not remove it; only waitForConnected
// drops buffered lines, up to the CONNECTED line it consumes.
func (b *Backend) hasDisconnectNotice() bool {
	b.msgMu.Lock()
	defer b.msgMu.Unlock()
	for _, m := range b.messages {
		if strings.Contains(m, "DISCONNECTED") {
			return true
		}
	}
	return false
}

func addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

type noopPTT struct{}

func (noopPTT) Key() error   { return nil }
func (noopPTT) Unkey() error { return nil }
func (noopPTT) Close() error { return nil }
