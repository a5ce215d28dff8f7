// Package ptt drives push-to-talk keying for transports (principally VARA
// HF, spec §5) that expect the host application to control the radio
// directly rather than keying itself off a data carrier.
package ptt

import (
	"fmt"
	"time"

	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
	"github.com/LibertyFarmer/hamstr-sub000/internal/logx"
)

// Controller keys and unkeys a radio, honoring the pre/post delays a
// config.PTTConfig specifies.
type Controller interface {
	Key() error
	Unkey() error
	Close() error
}

// log is shared by every backend under the CONTROL tag, matching the
// original's "[PTT] ..." log lines.
var log = logx.Tagged(logx.Control)

// Open constructs the Controller named by cfg.Method: "rts", "dtr", "both"
// (serial), "gpio", "hamlib", or "none" (a no-op, for backends that key
// themselves off carrier detect).
func Open(cfg config.PTTConfig) (Controller, error) {
	switch cfg.Method {
	case "", "none":
		return noopController{}, nil
	case "rts", "dtr", "both":
		return newSerialController(cfg)
	case "gpio":
		return newGPIOController(cfg)
	case "hamlib":
		return newHamlibController(cfg)
	default:
		return nil, fmt.Errorf("ptt: unknown method %q", cfg.Method)
	}
}

type noopController struct{}

func (noopController) Key() error   { return nil }
func (noopController) Unkey() error { return nil }
func (noopController) Close() error { return nil }

// withDelays wraps a bare key/unkey pair with the pre-transmit stabilization
// delay and the post-transmit tail delay, the way ptt_controller.py's
// key()/unkey() sleep around the pin assert/deassert.
func withDelays(pre, post time.Duration, keyFn, unkeyFn func() error) (key, unkey func() error) {
	key = func() error {
		if err := keyFn(); err != nil {
			return err
		}
		if pre > 0 {
			time.Sleep(pre)
		}
		return nil
	}
	unkey = func() error {
		if post > 0 {
			time.Sleep(post)
		}
		return unkeyFn()
	}
	return key, unkey
}
