package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/brutella/dnssd"
)

// Service names mirror the teacher's own DNS_SD_SERVICE constant for KISS
// TNCs; _vara-modem._tcp is the name this bridge browses for VARA modems.
// This package only browses: nothing in this module announces either
// service.
const (
	ServiceKISSTCP = "_kiss-tnc._tcp"
	ServiceVARA    = "_vara-modem._tcp"
)

// LANEndpoint is one announced TNC or modem found on the local network.
type LANEndpoint struct {
	Name string
	Host string
	Port int
	IPs  []net.IP
}

// BrowseLAN listens for DNS-SD announcements of serviceType (ServiceKISSTCP
// or ServiceVARA) for timeout and returns whatever answered, deduplicated
// by name. The teacher only ever announces (dns_sd.go's dns_sd_announce);
// this is the client-side half dnssd also provides, used here for the
// config helper rather than the session path.
func BrowseLAN(serviceType string, timeout time.Duration) ([]LANEndpoint, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	found := map[string]LANEndpoint{}
	add := func(e dnssd.BrowseEntry) {
		found[e.Name] = LANEndpoint{
			Name: e.Name,
			Host: e.Host,
			Port: e.Port,
			IPs:  e.IPs,
		}
	}
	remove := func(e dnssd.BrowseEntry) {
		delete(found, e.Name)
	}

	if err := dnssd.LookupType(ctx, serviceType, add, remove); err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("discovery: browsing %s: %w", serviceType, err)
	}

	endpoints := make([]LANEndpoint, 0, len(found))
	for _, e := range found {
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}
