// Package discovery finds TNCs and VARA modems a station hasn't been told
// about explicitly: serial KISS TNCs enumerated through udev, and LAN KISS/
// VARA endpoints announced over mDNS/DNS-SD. Both are opt-in helpers for
// config/flag setup — nothing in internal/station or internal/transport
// depends on this package.
package discovery

import (
	"fmt"

	"github.com/jochenvg/go-udev"

	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
)

var log = logx.Tagged(logx.TNC)

// SerialTNC describes one candidate serial device found on the tty
// subsystem: a USB-attached TNC, software modem's virtual serial port, or
// similar.
type SerialTNC struct {
	Device  string // e.g. /dev/ttyUSB0
	Vendor  string
	Product string
	Serial  string
}

// FindSerialTNCs enumerates tty devices backed by a USB device node, the Go
// equivalent of the teacher's cm108_inventory USB enumeration but over the
// tty subsystem instead of sound/hidraw, and through the pure-Go go-udev
// binding instead of cgo libudev calls.
func FindSerialTNCs() ([]SerialTNC, error) {
	u := udev.Udev{}
	e := u.NewEnumerateFromUdev()
	if err := e.AddMatchSubsystem("tty"); err != nil {
		return nil, fmt.Errorf("discovery: matching tty subsystem: %w", err)
	}
	if err := e.AddMatchProperty("ID_BUS", "usb"); err != nil {
		return nil, fmt.Errorf("discovery: matching usb bus: %w", err)
	}

	devices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("discovery: enumerating tty devices: %w", err)
	}

	var found []SerialTNC
	for _, d := range devices {
		node := d.Devnode()
		if node == "" {
			continue
		}
		found = append(found, SerialTNC{
			Device:  node,
			Vendor:  d.PropertyValue("ID_VENDOR"),
			Product: d.PropertyValue("ID_MODEL"),
			Serial:  d.PropertyValue("ID_SERIAL_SHORT"),
		})
		log.Debug("discovery: found serial TNC candidate %s (%s %s)", node, d.PropertyValue("ID_VENDOR"), d.PropertyValue("ID_MODEL"))
	}
	return found, nil
}
