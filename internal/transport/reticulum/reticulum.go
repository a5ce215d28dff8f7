package reticulum

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
)

const (
	resourceThreshold = 8192 // RESOURCE_THRESHOLD in reticulum_backend.py: above this, log like a Resource transfer.
	helloMagic        = "HAMSTR-RNS-HELLO"
	acceptMagic       = "HAMSTR-RNS-ACCEPT"
)

// Config is what a Backend needs to stand up its side of a link — the
// out-of-band equivalents of what a real RNS deployment learns through
// path discovery and announce packets (see ReticulumConfig's doc comment).
type Config struct {
	IdentityPath     string
	AppName          string
	ListenAddr       string // server only
	PeerAddr         string // client only
	ServerHash       string // client only: expected server destination hash
	ServerPubKey     string // client only: expected server public key, hex
	AnnounceInterval time.Duration
	ConnectTimeout   time.Duration
}

// Backend implements transport.Backend over a single Reticulum-style link:
// one persistent Identity, one Destination hash derived from it, and one
// Link at a time — reticulum_backend.py's ReticulumSession collapsed to
// this bridge's single-session-at-a-time model.
type Backend struct {
	cfg      Config
	identity *Identity
	hash     string
	isServer bool

	mu        sync.Mutex
	conn      net.Conn
	reader    *bufio.Reader
	remote    ax25.Callsign
	connected bool

	listener net.Listener
	announceDone chan struct{}
}

// New loads or creates the configured identity and computes this station's
// destination hash — `_load_or_create_identity` + `_create_destination`.
func New(cfg Config, isServer bool) (*Backend, error) {
	if cfg.AppName == "" {
		cfg.AppName = "hamstr"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	identity, err := LoadOrCreate(cfg.IdentityPath)
	if err != nil {
		return nil, err
	}
	aspect := "client"
	if isServer {
		aspect = "server"
	}
	hash := DestinationHash(identity.Public, cfg.AppName, aspect)
	if isServer {
		log.Info("reticulum destination ready: hash=%s pubkey=%s (publish both for clients to connect)",
			hash, hex.EncodeToString(identity.Public))
	}
	return &Backend{cfg: cfg, identity: identity, hash: hash, isServer: isServer}, nil
}

func (b *Backend) Type() transport.Type { return transport.TypeReticulum }

// RemoteCallsign implements transport.RemoteIdentifier by returning the
// callsign last passed to Connect; HELLO carries no callsign, so a server
// that accepts with an empty callsign reports an empty one.
func (b *Backend) RemoteCallsign() ax25.Callsign {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remote
}

// Hash returns this station's destination hash, for operators to publish
// out of band the way a real RNS server's announce would.
func (b *Backend) Hash() string { return b.hash }

// Connect establishes the link: a server accepts one incoming HELLO and
// answers ACCEPT (`_server_link_established`); a client dials PeerAddr,
// sends HELLO, and verifies the server's ACCEPT matches the configured
// hash/pubkey before considering the link ACTIVE (`connect`'s client path).
func (b *Backend) Connect(remote ax25.Callsign) error {
	if b.isServer {
		return b.acceptLink(remote)
	}
	return b.dialLink(remote)
}

func (b *Backend) acceptLink(remote ax25.Callsign) error {
	l, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("reticulum: listening on %s: %w", b.cfg.ListenAddr, err)
	}
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
	b.startAnnounceLoop()

	log.Info("reticulum waiting for link on %s", b.cfg.ListenAddr)
	conn, err := l.Accept()
	if err != nil {
		return fmt.Errorf("reticulum: accepting link: %w", err)
	}
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return fmt.Errorf("reticulum: reading HELLO: %w", err)
	}
	clientHash, ok := parseHello(line)
	if !ok {
		conn.Close()
		return fmt.Errorf("reticulum: malformed HELLO")
	}
	log.Info("reticulum link established from %s", clientHash)

	accept := fmt.Sprintf("%s %s %s\n", acceptMagic, hex.EncodeToString(b.identity.Public), b.hash)
	if _, err := conn.Write([]byte(accept)); err != nil {
		conn.Close()
		return fmt.Errorf("reticulum: sending ACCEPT: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.reader = reader
	b.remote = remote
	b.connected = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) dialLink(remote ax25.Callsign) error {
	conn, err := net.DialTimeout("tcp", b.cfg.PeerAddr, b.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("reticulum: dialing %s: %w", b.cfg.PeerAddr, err)
	}
	hello := fmt.Sprintf("%s %s %s\n", helloMagic, hex.EncodeToString(b.identity.Public), b.hash)
	if _, err := conn.Write([]byte(hello)); err != nil {
		conn.Close()
		return fmt.Errorf("reticulum: sending HELLO: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(b.cfg.ConnectTimeout))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: waiting for ACCEPT: %v", transport.ErrTimeout, err)
	}
	conn.SetReadDeadline(time.Time{})

	serverPubKey, serverHash, ok := parseAccept(line)
	if !ok {
		conn.Close()
		return fmt.Errorf("reticulum: malformed ACCEPT")
	}
	if b.cfg.ServerHash != "" && serverHash != b.cfg.ServerHash {
		conn.Close()
		return fmt.Errorf("reticulum: server destination hash mismatch: expected %s, got %s", b.cfg.ServerHash, serverHash)
	}
	if b.cfg.ServerPubKey != "" && serverPubKey != b.cfg.ServerPubKey {
		conn.Close()
		return fmt.Errorf("reticulum: server public key mismatch")
	}
	log.Info("reticulum link active to %s", serverHash)

	b.mu.Lock()
	b.conn = conn
	b.reader = reader
	b.remote = remote
	b.connected = true
	b.mu.Unlock()
	return nil
}

func parseHello(line string) (hash string, ok bool) {
	var magic, pub string
	n, _ := fmt.Sscanf(line, "%s %s %s", &magic, &pub, &hash)
	return hash, n == 3 && magic == helloMagic
}

func parseAccept(line string) (pub, hash string, ok bool) {
	var magic string
	n, _ := fmt.Sscanf(line, "%s %s %s", &magic, &pub, &hash)
	return pub, hash, n == 3 && magic == acceptMagic
}

// startAnnounceLoop periodically logs this destination's presence, standing
// in for RNS's actual network-wide announce packet (`_start_announcing`).
func (b *Backend) startAnnounceLoop() {
	interval := b.cfg.AnnounceInterval
	if interval <= 0 {
		return
	}
	b.announceDone = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Info("reticulum announce: %s", b.hash)
			case <-b.announceDone:
				return
			}
		}
	}()
}
