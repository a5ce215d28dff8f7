// Package ax25 encodes and decodes the AX.25 address fields and UI frame
// envelope that carry HAMSTR's packets over the air.
package ax25

import (
	"fmt"
	"strings"
)

// SSIDLastMask is set on the SSID byte of the final address field in a
// frame (always the source address here — HAMSTR never digipeats).
const SSIDLastMask = 0x01

// Callsign is a station identity: up to six alphanumeric characters plus a
// secondary station ID in 0..15.
type Callsign struct {
	Call string
	SSID int
}

func (c Callsign) String() string {
	if c.SSID == 0 {
		return c.Call
	}
	return fmt.Sprintf("%s-%d", c.Call, c.SSID)
}

// ParseCallsign accepts "CALL" or "CALL-SSID".
func ParseCallsign(s string) (Callsign, error) {
	s = strings.TrimSpace(s)
	call, ssidStr, hasSSID := strings.Cut(s, "-")
	call = strings.ToUpper(strings.TrimSpace(call))
	if call == "" || len(call) > 6 {
		return Callsign{}, fmt.Errorf("ax25: callsign %q must be 1-6 characters", s)
	}
	for _, r := range call {
		if !isCallsignRune(r) {
			return Callsign{}, fmt.Errorf("ax25: callsign %q has invalid character %q", s, r)
		}
	}
	ssid := 0
	if hasSSID {
		n, err := parseSSID(ssidStr)
		if err != nil {
			return Callsign{}, err
		}
		ssid = n
	}
	return Callsign{Call: call, SSID: ssid}, nil
}

func parseSSID(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("ax25: malformed ssid %q", s)
	}
	if n < 0 || n > 15 {
		return 0, fmt.Errorf("ax25: ssid %d out of range 0..15", n)
	}
	return n, nil
}

func isCallsignRune(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// EncodeAddress builds the 7-byte AX.25 address field for call/ssid. Each
// callsign byte is left-shifted one bit and padded to six characters with
// spaces; the seventh byte carries the SSID and, on the final address of
// the frame, the last-address flag.
func EncodeAddress(c Callsign, last bool) [7]byte {
	var out [7]byte
	padded := c.Call + strings.Repeat(" ", 6-len(c.Call))
	for i := 0; i < 6; i++ {
		out[i] = byte(padded[i]) << 1
	}
	ssidByte := byte(c.SSID&0x0F) << 1
	if last {
		ssidByte |= SSIDLastMask
	}
	out[6] = ssidByte
	return out
}

// DecodeAddress parses a 7-byte AX.25 address field back into a callsign,
// the last-address flag, and reports whether last was set.
func DecodeAddress(field [7]byte) (Callsign, bool) {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(field[i] >> 1)
	}
	call := strings.TrimRight(b.String(), " ")
	ssid := int((field[6] >> 1) & 0x0F)
	last := field[6]&SSIDLastMask != 0
	return Callsign{Call: call, SSID: ssid}, last
}
