package main

import (
	"encoding/json"

	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/station"
)

// unconfiguredCollaborator satisfies station.NostrCollaborator and
// station.LightningCollaborator without actually speaking to a relay or a
// Lightning wallet: no websocket NOSTR client exists anywhere in this
// module's dependency pool to ground a real one on, so a deployment wires
// its own implementation (over whatever relay library it chooses) in place
// of this placeholder. The command still exercises the full station/
// protocol/transport/session stack end to end.
type unconfiguredCollaborator struct {
	relays []string
}

func (c unconfiguredCollaborator) FetchEvents(reqType station.NoteRequestType, count int, params string) ([]byte, error) {
	return nil, station.CollaboratorError{
		Type:    "not_configured",
		Message: "no NOSTR relay collaborator wired into this build",
	}
}

func (c unconfiguredCollaborator) PublishNote(event []byte) error {
	return station.CollaboratorError{
		Type:    "not_configured",
		Message: "no NOSTR relay collaborator wired into this build",
	}
}

func (c unconfiguredCollaborator) RequestInvoice(lnAddr string, amountSats int64, zapEvent []byte) (string, error) {
	return "", station.CollaboratorError{
		Type:    "not_configured",
		Message: "no Lightning collaborator wired into this build",
	}
}

// newCollaboratorHandler builds the station.RequestHandler that dispatches
// GET_NOTES to FetchEvents and NOTE to PublishNote, the Go shape of
// server.py's process_request dispatch table.
func newCollaboratorHandler(cfg config.Config) station.RequestHandler {
	var nostr station.NostrCollaborator = unconfiguredCollaborator{relays: cfg.NostrRelays}
	var lightning station.LightningCollaborator = unconfiguredCollaborator{}
	_ = lightning // the handler below routes no command to RequestInvoice

	return func(req station.DecodedRequest) (bool, []byte, *station.CollaboratorError) {
		switch req.Command {
		case "NOTE":
			if err := nostr.PublishNote([]byte(req.Content)); err != nil {
				return toCollaboratorError(err)
			}
			return true, []byte("published"), nil

		default: // GET_NOTES and its synonyms
			data, err := nostr.FetchEvents(req.ReqType, req.Count, req.Params)
			if err != nil {
				return toCollaboratorError(err)
			}
			return true, data, nil
		}
	}
}

func toCollaboratorError(err error) (bool, []byte, *station.CollaboratorError) {
	if ce, ok := err.(station.CollaboratorError); ok {
		return false, nil, &ce
	}
	body, _ := json.Marshal(map[string]string{"message": err.Error()})
	return false, nil, &station.CollaboratorError{Type: "internal_error", Message: string(body)}
}
