package kiss

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Scenario E from spec §8.
func Test_Wrap_escape_example_from_spec(t *testing.T) {
	in := []byte{0x01, 0xC0, 0x02, 0xDB, 0x03}
	want := []byte{0xC0, 0x00, 0x01, 0xDB, 0xDC, 0x02, 0xDB, 0xDD, 0x03, 0xC0}

	got := Wrap(in)
	assert.Equal(t, want, got)

	unwrapped, err := Unwrap(got)
	require.NoError(t, err)
	assert.Equal(t, in, unwrapped)
}

// Invariant 1 from spec §8: kiss_unwrap(kiss_wrap(x)) = x for all byte strings x.
func Test_WrapUnwrap_roundtrip_property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOf(rapid.Byte()).Draw(t, "in")
		out, err := Unwrap(Wrap(in))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(in, out))
	})
}

func Test_Unwrap_rejects_missing_delimiters(t *testing.T) {
	_, err := Unwrap([]byte{0x00, 0x01})
	assert.Error(t, err)
}

func Test_Scanner_extracts_frames_fed_in_pieces(t *testing.T) {
	var s Scanner
	frame1 := Wrap([]byte("hello"))
	frame2 := Wrap([]byte("world"))

	s.Feed(frame1[:3])
	_, ok := s.Next()
	assert.False(t, ok)

	s.Feed(frame1[3:])
	s.Feed(frame2)

	got1, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, frame1, got1)

	got2, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, frame2, got2)

	_, ok = s.Next()
	assert.False(t, ok)
}
