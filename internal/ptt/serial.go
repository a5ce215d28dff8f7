package ptt

import (
	"fmt"
	"sync"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"

	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
)

// serialController keys a radio by asserting RTS and/or DTR on a serial
// port, per ptt_controller.py's PTTController. Baud rate is nominal here —
// PTT lines don't carry data — but the teacher's serial_port_open always
// sets a speed before using a port, so this does too.
type serialController struct {
	mu       sync.Mutex
	t        *term.Term
	useRTS   bool
	useDTR   bool
	key      func() error
	unkey    func() error
	isKeyed  bool
}

func newSerialController(cfg config.PTTConfig) (Controller, error) {
	if cfg.Line == "" {
		return nil, fmt.Errorf("ptt: serial method %q requires a line (device path)", cfg.Method)
	}
	t, err := term.Open(cfg.Line, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("ptt: opening serial PTT device %s: %w", cfg.Line, err)
	}
	t.SetSpeed(9600)

	sc := &serialController{
		t:      t,
		useRTS: cfg.Method == "rts" || cfg.Method == "both",
		useDTR: cfg.Method == "dtr" || cfg.Method == "both",
	}
	sc.key, sc.unkey = withDelays(cfg.TxDelay, cfg.RxDelay, sc.assert, sc.deassert)

	log.Info("Initializing PTT controller on %s using %s", cfg.Line, cfg.Method)
	sc.unkey() // start unkeyed
	return sc, nil
}

func (sc *serialController) assert() error   { return sc.setLines(true) }
func (sc *serialController) deassert() error { return sc.setLines(false) }

func (sc *serialController) setLines(on bool) error {
	fd := int(sc.t.Fd())
	if sc.useRTS {
		if err := setModemBit(fd, unix.TIOCM_RTS, on); err != nil {
			return fmt.Errorf("ptt: setting RTS: %w", err)
		}
	}
	if sc.useDTR {
		if err := setModemBit(fd, unix.TIOCM_DTR, on); err != nil {
			return fmt.Errorf("ptt: setting DTR: %w", err)
		}
	}
	return nil
}

// setModemBit asserts or clears one modem control line via the
// TIOCMBIS/TIOCMBIC ioctls — the Linux equivalent of pyserial's
// setRTS/setDTR that the original's PTTController calls directly.
func setModemBit(fd, bit int, on bool) error {
	req := uint(unix.TIOCMBIC)
	if on {
		req = uint(unix.TIOCMBIS)
	}
	return unix.IoctlSetInt(fd, req, bit)
}

func (sc *serialController) Key() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.key(); err != nil {
		return err
	}
	sc.isKeyed = true
	log.Debug("radio keyed")
	return nil
}

func (sc *serialController) Unkey() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.unkey(); err != nil {
		return err
	}
	sc.isKeyed = false
	log.Debug("radio unkeyed")
	return nil
}

func (sc *serialController) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.deassert()
	return sc.t.Close()
}
