// Package config loads HAMSTR's runtime configuration: a YAML document with
// per-field defaults, overlaid by command-line flags. This replaces the
// original's settings.ini + per-role overlay file scheme with one document
// a Go station reads once at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Station identifies one end of a HAMSTR link.
type Station struct {
	Call string `yaml:"call"`
	SSID int    `yaml:"ssid"`
}

// RoleConfig carries the settings specific to running as a server or a
// client — separate TNC endpoints and callsigns, the way the original's
// client_settings.ini/server_settings.ini split them.
type RoleConfig struct {
	Callsign   Station `yaml:"callsign"`
	Peer       Station `yaml:"peer"`
	TNCHost    string  `yaml:"tnc_host"`
	TNCPort    int     `yaml:"tnc_port"`
	TNCSerial  string  `yaml:"tnc_serial_device"`
	VARAHost   string  `yaml:"vara_host"`
	VARACmdPort  int   `yaml:"vara_cmd_port"`
	VARADataPort int   `yaml:"vara_data_port"`
	PTTDevice  string  `yaml:"ptt_device"`
}

// Config is the whole of HAMSTR's configuration surface (spec §6).
type Config struct {
	Server RoleConfig `yaml:"server"`
	Client RoleConfig `yaml:"client"`

	// Session engine timing, shared by both roles.
	SendRetries                int           `yaml:"send_retries"`
	DisconnectRetry            int           `yaml:"disconnect_retry"`
	AckTimeout                 time.Duration `yaml:"ack_timeout"`
	MaxPacketSize              int           `yaml:"max_packet_size"`
	ConnectionTimeout           time.Duration `yaml:"connection_timeout"`
	KeepAliveInterval           time.Duration `yaml:"keep_alive_interval"`
	KeepAliveRetryInterval      time.Duration `yaml:"keep_alive_retry_interval"`
	KeepAliveFinalInterval      time.Duration `yaml:"keep_alive_final_interval"`
	ConnectionAttemptTimeout    time.Duration `yaml:"connection_attempt_timeout"`
	ShutdownTimeout             time.Duration `yaml:"shutdown_timeout"`
	PacketSendDelay             time.Duration `yaml:"packet_send_delay"`
	DisconnectTimeout           time.Duration `yaml:"disconnect_timeout"`
	MissingPacketsTimeout       time.Duration `yaml:"missing_packets_timeout"`
	BaudRate                    int           `yaml:"baud_rate"`
	NoAckTimeout                time.Duration `yaml:"no_ack_timeout"`
	NoPacketTimeout              time.Duration `yaml:"no_packet_timeout"`
	ReadyTimeout                time.Duration `yaml:"ready_timeout"`
	MissingPacketsThreshold     float64       `yaml:"missing_packets_threshold"`
	ConnectionStabilizationDelay time.Duration `yaml:"connection_stabilization_delay"`

	NostrRelays []string `yaml:"nostr_relays"`

	PTT PTTConfig `yaml:"ptt"`

	Reticulum ReticulumConfig `yaml:"reticulum"`

	LogPathPattern string `yaml:"log_path_pattern"`
}

// PTTConfig holds the push-to-talk keying parameters (spec §6), common to
// whichever backend (serial, GPIO, hamlib) the role's transport uses.
type PTTConfig struct {
	Method    string        `yaml:"method"` // "rts", "dtr", "both", "gpio", "hamlib", "none"
	Line      string        `yaml:"line"`   // serial device, gpio chip/line, or hamlib rig id
	TxDelay   time.Duration `yaml:"tx_delay"`
	RxDelay   time.Duration `yaml:"rx_delay"`
	Tail      time.Duration `yaml:"tail"`
	AckSpacing time.Duration `yaml:"ack_spacing"`
}

// ReticulumConfig configures the Reticulum mesh transport backend. Since
// this bridge approximates RNS over plain TCP rather than speaking real
// RNS routing, ListenAddr/PeerAddr carry the out-of-band host:port a real
// deployment would otherwise learn through RNS path discovery, and
// ServerHash/ServerPubKey carry the out-of-band destination identity a
// client would otherwise learn from the server's printed announce.
type ReticulumConfig struct {
	IdentityPath     string        `yaml:"identity_path"`
	AnnounceInterval time.Duration `yaml:"announce_interval"`
	AppName          string        `yaml:"app_name"`
	ListenAddr       string        `yaml:"listen_addr"`
	PeerAddr         string        `yaml:"peer_addr"`
	ServerHash       string        `yaml:"server_hash"`
	ServerPubKey     string        `yaml:"server_pubkey"`
}

// Defaults mirrors the original's settings.ini defaults (config.py), ported
// from seconds/floats to time.Duration.
func Defaults() Config {
	return Config{
		SendRetries:                  5,
		DisconnectRetry:              3,
		AckTimeout:                   10 * time.Second,
		MaxPacketSize:                128,
		ConnectionTimeout:            60 * time.Second,
		KeepAliveInterval:            30 * time.Second,
		KeepAliveRetryInterval:       5 * time.Second,
		KeepAliveFinalInterval:       2 * time.Second,
		ConnectionAttemptTimeout:     30 * time.Second,
		ShutdownTimeout:              5 * time.Second,
		PacketSendDelay:              250 * time.Millisecond,
		DisconnectTimeout:            10 * time.Second,
		MissingPacketsTimeout:        15 * time.Second,
		BaudRate:                     1200,
		NoAckTimeout:                 20 * time.Second,
		NoPacketTimeout:              30 * time.Second,
		ReadyTimeout:                 10 * time.Second,
		MissingPacketsThreshold:      0.5,
		ConnectionStabilizationDelay: 500 * time.Millisecond,
		PTT: PTTConfig{
			Method:     "none",
			TxDelay:    250 * time.Millisecond,
			RxDelay:    250 * time.Millisecond,
			Tail:       100 * time.Millisecond,
			AckSpacing: 500 * time.Millisecond,
		},
		Reticulum: ReticulumConfig{
			AppName:          "hamstr",
			AnnounceInterval: 10 * time.Minute,
		},
		Server: RoleConfig{TNCHost: "localhost", TNCPort: 8002},
		Client: RoleConfig{TNCHost: "localhost", TNCPort: 8001},
	}
}

// Load reads path as YAML over the defaults. A missing file is not an
// error — callers running entirely off flags and defaults are common in
// test harnesses.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers command-line flags that overlay cfg's fields, in the
// teacher's appserver.go style: pflag.StringVar et al. bound directly onto
// the struct so flag defaults are the already-loaded config values.
func BindFlags(fs *pflag.FlagSet, cfg *Config, role *RoleConfig) {
	fs.StringVar(&role.Callsign.Call, "callsign", role.Callsign.Call, "station callsign")
	fs.IntVar(&role.Callsign.SSID, "ssid", role.Callsign.SSID, "station SSID")
	fs.StringVar(&role.Peer.Call, "peer-callsign", role.Peer.Call, "peer station callsign")
	fs.IntVar(&role.Peer.SSID, "peer-ssid", role.Peer.SSID, "peer station SSID")
	fs.StringVar(&role.TNCHost, "tnc-host", role.TNCHost, "KISS TNC TCP host")
	fs.IntVar(&role.TNCPort, "tnc-port", role.TNCPort, "KISS TNC TCP port")
	fs.StringVar(&role.TNCSerial, "tnc-serial", role.TNCSerial, "KISS TNC serial device (overrides host/port)")
	fs.StringVar(&role.VARAHost, "vara-host", role.VARAHost, "VARA modem host")
	fs.IntVar(&role.VARACmdPort, "vara-cmd-port", role.VARACmdPort, "VARA command port")
	fs.IntVar(&role.VARADataPort, "vara-data-port", role.VARADataPort, "VARA data port")
	fs.StringVar(&role.PTTDevice, "ptt-device", role.PTTDevice, "PTT control device")
	fs.StringVar(&cfg.LogPathPattern, "log-path", cfg.LogPathPattern, "strftime log file pattern, empty disables file logging")
}
