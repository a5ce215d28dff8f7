package ax25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_ParseCallsign_roundtrips_with_String(t *testing.T) {
	c, err := ParseCallsign("N0CALL-7")
	require.NoError(t, err)
	assert.Equal(t, "N0CALL", c.Call)
	assert.Equal(t, 7, c.SSID)
	assert.Equal(t, "N0CALL-7", c.String())
}

func Test_ParseCallsign_bare_callsign_defaults_ssid_zero(t *testing.T) {
	c, err := ParseCallsign("TEST")
	require.NoError(t, err)
	assert.Equal(t, 0, c.SSID)
	assert.Equal(t, "TEST", c.String())
}

func Test_ParseCallsign_rejects_bad_ssid(t *testing.T) {
	_, err := ParseCallsign("TEST-16")
	assert.Error(t, err)
}

func Test_EncodeDecodeAddress_roundtrip_example(t *testing.T) {
	c := Callsign{Call: "TEST", SSID: 1}
	field := EncodeAddress(c, true)
	decoded, last := DecodeAddress(field)
	assert.Equal(t, c, decoded)
	assert.True(t, last)
}

// Invariant 2 from spec §8: decode_ax25_callsign(ax25_encode(call, ssid,
// last)) = (call, ssid) for all valid calls, ssids, and last flags.
func Test_EncodeDecodeAddress_roundtrip_property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		call := rapid.StringMatching(`[A-Z0-9]{1,6}`).Draw(t, "call")
		ssid := rapid.IntRange(0, 15).Draw(t, "ssid")
		last := rapid.Bool().Draw(t, "last")

		c := Callsign{Call: call, SSID: ssid}
		field := EncodeAddress(c, last)
		decoded, decodedLast := DecodeAddress(field)

		assert.Equal(t, c, decoded)
		assert.Equal(t, last, decodedLast)
	})
}

func Test_BuildUIFrame_ParseUIFrame_roundtrip(t *testing.T) {
	src := Callsign{Call: "CLIENT", SSID: 1}
	dst := Callsign{Call: "SERVER", SSID: 0}
	payload := []byte("0001|0001|1:GET_NOTES 1|2|deadbeef")

	frame := BuildUIFrame(src, dst, payload)
	gotSrc, gotPayload, err := ParseUIFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, src, gotSrc)
	assert.Equal(t, payload, gotPayload)
}

func Test_ParseUIFrame_rejects_short_frame(t *testing.T) {
	_, _, err := ParseUIFrame([]byte{0x01, 0x02})
	assert.Error(t, err)
}
