package station

import "fmt"

// NoteRequestType is the compact integer a client sends instead of a verbose
// request string, ported from models.py::NoteRequestType.
type NoteRequestType int

const (
	RequestFollowing     NoteRequestType = 1
	RequestSpecificUser  NoteRequestType = 2
	RequestGlobal        NoteRequestType = 3
	RequestSearchText    NoteRequestType = 4
	RequestSearchHashtag NoteRequestType = 5
	RequestSearchUser    NoteRequestType = 6
	RequestTestError     NoteRequestType = 99
)

// NWCResponseCode mirrors models.py::NWCResponseCode — a Lightning
// collaborator's closed vocabulary of payment outcomes, opaque to the
// session engine per spec §9's "collaborator-opaque" note.
type NWCResponseCode int

const (
	NWCSuccess             NWCResponseCode = 0
	NWCInsufficientBalance NWCResponseCode = 1
	NWCRecipientNotFound   NWCResponseCode = 2
	NWCInvoiceExpired      NWCResponseCode = 3
	NWCPaymentTimeout      NWCResponseCode = 4
	NWCWalletOffline       NWCResponseCode = 5
	NWCAmountTooLow        NWCResponseCode = 6
	NWCAmountTooHigh       NWCResponseCode = 7
	NWCRateLimited         NWCResponseCode = 8
	NWCInvalidRecipient    NWCResponseCode = 9
	NWCNetworkError        NWCResponseCode = 10
	NWCUnknownError        NWCResponseCode = 99
)

// CollaboratorError is spec §7's "collaborator errors are data, not
// exceptions" rule: a NOSTR relay or Lightning failure is encoded into the
// reply payload and transmitted normally rather than failing the session.
type CollaboratorError struct {
	Type    string `json:"error_type"`
	Message string `json:"message"`
}

func (e CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NostrCollaborator fetches and publishes NOSTR events on the server's
// behalf. Modeled as blocking functions per spec §9's "coroutine/async in
// NOSTR collaborator calls" note — any async runtime underneath is the
// collaborator's own concern, never the session layer's.
type NostrCollaborator interface {
	// FetchEvents returns compressed JSON for the given request type, count,
	// and optional parameter (an npub, search text, or hashtag depending on
	// reqType) — the server-side half of server.py's GET_NOTES handling.
	FetchEvents(reqType NoteRequestType, count int, params string) ([]byte, error)
	// PublishNote submits a signed NOSTR event (already JSON-encoded by the
	// client) to configured relays.
	PublishNote(event []byte) error
}

// LightningCollaborator resolves Lightning zaps a client requests over the
// air: invoice generation for a kind-9734 zap request, and (once the client
// round-trips the invoice) payment confirmation via NWC.
type LightningCollaborator interface {
	// RequestInvoice asks a Lightning address for an invoice of amountSats,
	// returning the BOLT11 string or a CollaboratorError.
	RequestInvoice(lnAddr string, amountSats int64, zapEvent []byte) (invoice string, err error)
}
