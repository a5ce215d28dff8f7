package wire

// MessageType is the closed vocabulary encoded as a small integer on the
// wire (spec §3). The session engine only ever switches on the session
// control subset; everything else (collaborator-opaque NOSTR/NWC/zap
// variants) passes through untouched, per spec §9's open question about
// MessageType's scope.
type MessageType int

const (
	DataRequest MessageType = iota + 1
	Response
	Ack
	Connect
	ConnectAck
	Disconnect
	KeepAlive
	ConnectionExpired
	Notification
	Ready
	Done
	DoneAck
	Retry
	PktMissing
	Note
	ZapRequest
	ZapResponse
)

var names = map[MessageType]string{
	DataRequest:       "DATA_REQUEST",
	Response:          "RESPONSE",
	Ack:               "ACK",
	Connect:           "CONNECT",
	ConnectAck:        "CONNECT_ACK",
	Disconnect:        "DISCONNECT",
	KeepAlive:         "KEEP_ALIVE",
	ConnectionExpired: "CONNECTION_EXPIRED",
	Notification:      "NOTIFICATION",
	Ready:             "READY",
	Done:              "DONE",
	DoneAck:           "DONE_ACK",
	Retry:             "RETRY",
	PktMissing:        "PKT_MISSING",
	Note:              "NOTE",
	ZapRequest:        "ZAP_REQUEST",
	ZapResponse:       "ZAP_RESPONSE",
}

func (m MessageType) String() string {
	if n, ok := names[m]; ok {
		return n
	}
	return "UNKNOWN"
}

// controlTypes never carry sequence numbers or a CRC — spec §3's "Control"
// packet shape.
var controlTypes = map[MessageType]bool{
	Ack:           true,
	Connect:       true,
	ConnectAck:    true,
	Disconnect:    true,
	DataRequest:   true,
	Done:          true,
	DoneAck:       true,
	Retry:         true,
	Ready:         true,
	PktMissing:    true,
	KeepAlive:     true,
}

// IsControl reports whether m is sent as a control packet (no seq/total/CRC)
// rather than a data packet.
func IsControl(m MessageType) bool {
	return controlTypes[m]
}
