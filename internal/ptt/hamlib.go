package ptt

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	hamlib "github.com/xylo04/goHamlib"

	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
)

// hamlibController keys a radio over CAT control via Hamlib, for stations
// whose rig takes PTT commands on the same serial link used for frequency
// control rather than a dedicated PTT line.
type hamlibController struct {
	mu         sync.Mutex
	rig        *hamlib.Rig
	key, unkey func() error
}

// newHamlibController expects cfg.Line as "model:device", e.g. "1035:/dev/ttyUSB0"
// (model is Hamlib's numeric rig model id).
func newHamlibController(cfg config.PTTConfig) (Controller, error) {
	modelStr, device, ok := strings.Cut(cfg.Line, ":")
	if !ok {
		return nil, fmt.Errorf("ptt: hamlib line %q must be \"model:device\"", cfg.Line)
	}
	model, err := strconv.Atoi(modelStr)
	if err != nil {
		return nil, fmt.Errorf("ptt: hamlib model %q: %w", modelStr, err)
	}

	rig := hamlib.RigOpen(model, device)
	if rig == nil {
		return nil, fmt.Errorf("ptt: opening hamlib rig model %d on %s", model, device)
	}

	hc := &hamlibController{rig: rig}
	hc.key, hc.unkey = withDelays(cfg.TxDelay, cfg.RxDelay,
		func() error { return hc.rig.SetPTT(true) },
		func() error { return hc.rig.SetPTT(false) },
	)

	log.Info("Initializing hamlib PTT controller, model %d on %s", model, device)
	return hc, nil
}

func (hc *hamlibController) Key() error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if err := hc.key(); err != nil {
		return err
	}
	log.Debug("radio keyed via hamlib")
	return nil
}

func (hc *hamlibController) Unkey() error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if err := hc.unkey(); err != nil {
		return err
	}
	log.Debug("radio unkeyed via hamlib")
	return nil
}

func (hc *hamlibController) Close() error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.rig.SetPTT(false)
	return hc.rig.Close()
}
