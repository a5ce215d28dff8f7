package ax25

import "fmt"

// Control and PID bytes used by every HAMSTR UI frame. UI (unnumbered
// information) is the only AX.25 frame type this bridge ever sends — there
// is no connected-mode AX.25 here, the session layer above does its own
// reliability.
const (
	ControlUI byte = 0x03
	PIDNoL3   byte = 0xF0
)

// addressFieldLen is the fixed size of one AX.25 address field.
const addressFieldLen = 7

// headerLen is destination + source address fields, control, and PID.
const headerLen = addressFieldLen*2 + 2

// BuildUIFrame assembles a destination/source UI frame: dest addr, source
// addr (last-address flag set), control 0x03, PID 0xF0, then payload.
func BuildUIFrame(source, dest Callsign, payload []byte) []byte {
	frame := make([]byte, 0, headerLen+len(payload))
	destAddr := EncodeAddress(dest, false)
	srcAddr := EncodeAddress(source, true)
	frame = append(frame, destAddr[:]...)
	frame = append(frame, srcAddr[:]...)
	frame = append(frame, ControlUI, PIDNoL3)
	frame = append(frame, payload...)
	return frame
}

// ParseUIFrame splits a UI frame back into its source callsign and payload.
// It does not validate the destination callsign — HAMSTR stations only
// ever talk to the one peer they dialed or accepted.
func ParseUIFrame(frame []byte) (source Callsign, payload []byte, err error) {
	if len(frame) < headerLen {
		return Callsign{}, nil, fmt.Errorf("ax25: frame too short (%d bytes) to hold a header", len(frame))
	}
	var srcField [7]byte
	copy(srcField[:], frame[addressFieldLen:addressFieldLen*2])
	source, _ = DecodeAddress(srcField)
	if frame[addressFieldLen*2] != ControlUI {
		return Callsign{}, nil, fmt.Errorf("ax25: unexpected control byte 0x%02x, want UI (0x03)", frame[addressFieldLen*2])
	}
	payload = frame[headerLen:]
	return source, payload, nil
}
