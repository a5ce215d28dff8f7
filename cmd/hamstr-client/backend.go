package main

import (
	"fmt"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/ptt"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport/packetbackend"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport/reticulum"
	"github.com/LibertyFarmer/hamstr-sub000/internal/transport/vara"
)

// buildBackend constructs the transport named by name for role, the way
// the original's PROTOCOL_MAP/config.py TRANSPORT setting selects a backend
// module at startup.
func buildBackend(name string, cfg config.Config, role config.RoleConfig, local ax25.Callsign, isServer bool) (transport.Backend, error) {
	switch name {
	case "packet":
		if role.TNCSerial != "" {
			return packetbackend.OpenSerial(local, role.TNCSerial, cfg.BaudRate)
		}
		return packetbackend.DialTCP(local, role.TNCHost, role.TNCPort)

	case "vara":
		pttCtl, err := ptt.Open(cfg.PTT)
		if err != nil {
			return nil, fmt.Errorf("opening PTT controller: %w", err)
		}
		vcfg := vara.DefaultConfig()
		vcfg.Host = role.VARAHost
		vcfg.CommandPort = role.VARACmdPort
		vcfg.DataPort = role.VARADataPort
		return vara.New(local, isServer, vcfg, pttCtl), nil

	case "reticulum":
		rcfg := reticulum.Config{
			IdentityPath:     cfg.Reticulum.IdentityPath,
			AppName:          cfg.Reticulum.AppName,
			ListenAddr:       cfg.Reticulum.ListenAddr,
			PeerAddr:         cfg.Reticulum.PeerAddr,
			ServerHash:       cfg.Reticulum.ServerHash,
			ServerPubKey:     cfg.Reticulum.ServerPubKey,
			AnnounceInterval: cfg.Reticulum.AnnounceInterval,
		}
		return reticulum.New(rcfg, isServer)

	default:
		return nil, fmt.Errorf("unknown transport %q (want packet, vara, or reticulum)", name)
	}
}
