// Command hamstr-client connects to a HAMSTR server over one configured
// transport, requests NOSTR notes or publishes a signed event, and prints
// whatever comes back — the Go shape of client.py's connect_and_send_request/
// connect_and_send_note.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
	"github.com/LibertyFarmer/hamstr-sub000/internal/station"
)

func main() {
	// First pass: pull out --config-file/--transport so the YAML they name
	// can supply the remaining flags' defaults, tolerating the flags that
	// get properly registered in the second pass below.
	pre := pflag.NewFlagSet("hamstr-client", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	configFile := pre.StringP("config-file", "c", "", "YAML configuration file (defaults used for anything unset)")
	transportName := pre.StringP("transport", "T", "packet", "transport backend: packet, vara, or reticulum")
	pre.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		fatal(err)
	}

	fs := pflag.NewFlagSet("hamstr-client", pflag.ExitOnError)
	configFile = fs.StringP("config-file", "c", *configFile, "YAML configuration file (defaults used for anything unset)")
	transportName = fs.StringP("transport", "T", *transportName, "transport backend: packet, vara, or reticulum")
	reqType := fs.IntP("request-type", "r", int(station.RequestGlobal), "note request type (1=following 2=user 3=global 4=text 5=hashtag 6=search-user)")
	count := fs.IntP("count", "n", 5, "number of notes to request")
	params := fs.StringP("params", "p", "", "request parameter: npub, search text, or hashtag, depending on --request-type")
	notePath := fs.StringP("publish", "f", "", "path to a signed NOSTR event (JSON) to publish instead of requesting notes")
	discover := fs.Bool("discover", false, "list serial TNCs and LAN KISS/VARA endpoints, then exit")
	config.BindFlags(fs, &cfg, &cfg.Client)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "hamstr-client - fetch or publish NOSTR notes over an amateur radio link.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: hamstr-client [options]\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if runDiscover(*discover) {
		return
	}

	if err := logx.Configure("", cfg.LogPathPattern); err != nil {
		fatal(err)
	}

	local, err := ax25.ParseCallsign(fmt.Sprintf("%s-%d", cfg.Client.Callsign.Call, cfg.Client.Callsign.SSID))
	if err != nil {
		fatal(err)
	}
	peer, err := ax25.ParseCallsign(fmt.Sprintf("%s-%d", cfg.Client.Peer.Call, cfg.Client.Peer.SSID))
	if err != nil {
		fatal(err)
	}

	backend, err := buildBackend(*transportName, cfg, cfg.Client, local, false)
	if err != nil {
		fatal(err)
	}
	st := station.New(backend, local, cfg)

	if *notePath != "" {
		event, err := os.ReadFile(*notePath)
		if err != nil {
			fatal(err)
		}
		if err := st.SendNote(peer, event); err != nil {
			fatal(err)
		}
		fmt.Println("note published")
		return
	}

	data, err := st.RequestNotes(peer, station.NoteRequestType(*reqType), *count, *params)
	if err != nil {
		fatal(err)
	}
	os.Stdout.Write(data)
	fmt.Println()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
