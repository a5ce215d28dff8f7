// Command hamstr-server runs the receiving end of a HAMSTR bridge: it waits
// for incoming links on one configured transport, answers GET_NOTES/NOTE
// requests against a NOSTR collaborator, and resets for the next peer after
// every session (spec §4.4).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/LibertyFarmer/hamstr-sub000/internal/ax25"
	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
	"github.com/LibertyFarmer/hamstr-sub000/internal/station"
)

var log = logx.Tagged(logx.System)

func main() {
	// First pass: pull out --config-file/--transport so the YAML they name
	// can supply the remaining flags' defaults, tolerating the flags that
	// get properly registered in the second pass below.
	pre := pflag.NewFlagSet("hamstr-server", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	configFile := pre.StringP("config-file", "c", "", "YAML configuration file (defaults used for anything unset)")
	transportName := pre.StringP("transport", "T", "packet", "transport backend: packet, vara, or reticulum")
	pre.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fs := pflag.NewFlagSet("hamstr-server", pflag.ExitOnError)
	configFile = fs.StringP("config-file", "c", *configFile, "YAML configuration file (defaults used for anything unset)")
	transportName = fs.StringP("transport", "T", *transportName, "transport backend: packet, vara, or reticulum")
	discover := fs.Bool("discover", false, "list serial TNCs and LAN KISS/VARA endpoints, then exit")
	config.BindFlags(fs, &cfg, &cfg.Server)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "hamstr-server - answer NOSTR/Lightning requests over an amateur radio link.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: hamstr-server [options]\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if runDiscover(*discover) {
		return
	}

	if err := logx.Configure("", cfg.LogPathPattern); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	local, err := ax25.ParseCallsign(fmt.Sprintf("%s-%d", cfg.Server.Callsign.Call, cfg.Server.Callsign.SSID))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	backend, err := buildBackend(*transportName, cfg, cfg.Server, local, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	st := station.New(backend, local, cfg)
	handler := newCollaboratorHandler(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("hamstr-server listening as %s over %s", local, *transportName)
	if err := st.Serve(ctx, handler); err != nil && ctx.Err() == nil {
		log.Error("serve: %v", err)
		os.Exit(1)
	}
	log.Info("hamstr-server shutting down")
}
