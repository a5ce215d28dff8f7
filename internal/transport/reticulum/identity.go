// Package reticulum is a self-contained Go approximation of HAMSTR's
// Reticulum mesh transport. No Go port of the Reticulum Network Stack
// exists in this module's dependency pool, so this package reproduces the
// pieces spec §5 and reticulum_backend.py actually exercise — a persistent
// keypair identity, a destination hash derived from it, a Link-style
// connect handshake, and size-based packet/resource framing — over a plain
// TCP transport instead of RNS's own multi-hop routing. See DESIGN.md for
// why this is a deliberate approximation rather than a gap.
package reticulum

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
)

var log = logx.Tagged(logx.System)

// Identity is the long-lived keypair a station announces itself with,
// mirroring RNS.Identity closely enough to serve the same role: a stable
// address (the destination hash derived from Public) independent of IP,
// persisted across restarts.
type Identity struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// LoadOrCreate reads an identity from path, or generates and persists a new
// one if path doesn't exist yet — `_load_or_create_identity`'s behavior,
// ported from RNS's own identity file format to a bare 64-byte ed25519
// private key file
// since this package doesn't speak RNS's on-disk format.
func LoadOrCreate(path string) (*Identity, error) {
	if data, err := os.ReadFile(path); err == nil {
		if len(data) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("reticulum: identity file %s has wrong size (%d bytes)", path, len(data))
		}
		priv := ed25519.PrivateKey(data)
		log.Info("loaded existing identity from %s", path)
		return &Identity{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reticulum: reading identity %s: %w", path, err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("reticulum: generating identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("reticulum: creating identity directory: %w", err)
	}
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		return nil, fmt.Errorf("reticulum: writing identity %s: %w", path, err)
	}
	log.Info("created new identity at %s", path)
	return &Identity{Public: pub, Private: priv}, nil
}
