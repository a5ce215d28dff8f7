package reticulum

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
)

// DestinationHash derives a stable address from a public key plus app/aspect
// names, the same role RNS.Destination.hash plays: a client reconstructing
// a server's destination from its published hash+pubkey must compute the
// same value the server did. RNS truncates to 16 bytes; this does the same
// over a plain SHA-256 rather than RNS's own name-hash construction.
func DestinationHash(pub ed25519.PublicKey, appName, aspect string) string {
	h := sha256.New()
	h.Write([]byte(appName))
	h.Write([]byte{0})
	h.Write([]byte(aspect))
	h.Write([]byte{0})
	h.Write(pub)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
