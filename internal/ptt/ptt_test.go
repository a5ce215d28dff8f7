package ptt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibertyFarmer/hamstr-sub000/internal/config"
)

func Test_Open_none_method_is_noop(t *testing.T) {
	c, err := Open(config.PTTConfig{Method: "none"})
	require.NoError(t, err)
	assert.NoError(t, c.Key())
	assert.NoError(t, c.Unkey())
	assert.NoError(t, c.Close())
}

func Test_Open_rejects_unknown_method(t *testing.T) {
	_, err := Open(config.PTTConfig{Method: "carrier-pigeon"})
	assert.Error(t, err)
}

func Test_Open_serial_requires_line(t *testing.T) {
	_, err := Open(config.PTTConfig{Method: "rts"})
	assert.Error(t, err)
}

func Test_Open_gpio_requires_chip_colon_offset(t *testing.T) {
	_, err := Open(config.PTTConfig{Method: "gpio", Line: "gpiochip0"})
	assert.Error(t, err)
}

func Test_Open_hamlib_requires_model_colon_device(t *testing.T) {
	_, err := Open(config.PTTConfig{Method: "hamlib", Line: "/dev/ttyUSB0"})
	assert.Error(t, err)
}
