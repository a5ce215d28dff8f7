package main

import (
	"fmt"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/transport/discovery"
)

// runDiscover prints whatever serial TNCs and LAN KISS/VARA endpoints
// discovery can find and returns true if it ran (i.e. --discover was set),
// so main can exit before touching any configured transport.
func runDiscover(enabled bool) bool {
	if !enabled {
		return false
	}

	serial, err := discovery.FindSerialTNCs()
	if err != nil {
		fmt.Printf("serial TNC discovery: %v\n", err)
	}
	for _, s := range serial {
		fmt.Printf("serial: %s  (%s %s, serial %s)\n", s.Device, s.Vendor, s.Product, s.Serial)
	}
	if len(serial) == 0 {
		fmt.Println("serial: no USB TNCs found")
	}

	for _, svc := range []string{discovery.ServiceKISSTCP, discovery.ServiceVARA} {
		lan, err := discovery.BrowseLAN(svc, 3*time.Second)
		if err != nil {
			fmt.Printf("%s discovery: %v\n", svc, err)
			continue
		}
		if len(lan) == 0 {
			fmt.Printf("%s: none found\n", svc)
			continue
		}
		for _, e := range lan {
			fmt.Printf("%s: %s at %s:%d\n", svc, e.Name, e.Host, e.Port)
		}
	}
	return true
}
