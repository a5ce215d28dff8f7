package ptt

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	gpiocdev "github.com/warthog618/go-gpiocdev"

	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
)

// gpioController keys a radio through a Linux GPIO line — the repeater-
// controller style PTT hookup common on Raspberry Pi stations, absent from
// the original's serial-only PTTController but named in spec §5's transport
// list of PTT mechanisms.
type gpioController struct {
	mu   sync.Mutex
	line *gpiocdev.Line
	key, unkey func() error
}

// newGPIOController expects cfg.Line as "chip:offset", e.g. "gpiochip0:17".
func newGPIOController(cfg config.PTTConfig) (Controller, error) {
	chip, offsetStr, ok := strings.Cut(cfg.Line, ":")
	if !ok {
		return nil, fmt.Errorf("ptt: gpio line %q must be \"chip:offset\"", cfg.Line)
	}
	offset, err := strconv.Atoi(offsetStr)
	if err != nil {
		return nil, fmt.Errorf("ptt: gpio offset %q: %w", offsetStr, err)
	}
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("ptt: requesting gpio line %s: %w", cfg.Line, err)
	}

	gc := &gpioController{line: line}
	gc.key, gc.unkey = withDelays(cfg.TxDelay, cfg.RxDelay,
		func() error { return gc.line.SetValue(1) },
		func() error { return gc.line.SetValue(0) },
	)

	log.Info("Initializing GPIO PTT controller on %s", cfg.Line)
	return gc, nil
}

func (gc *gpioController) Key() error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if err := gc.key(); err != nil {
		return err
	}
	log.Debug("radio keyed via gpio")
	return nil
}

func (gc *gpioController) Unkey() error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if err := gc.unkey(); err != nil {
		return err
	}
	log.Debug("radio unkeyed via gpio")
	return nil
}

func (gc *gpioController) Close() error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.line.SetValue(0)
	return gc.line.Close()
}
