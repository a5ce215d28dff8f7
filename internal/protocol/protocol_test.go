package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_formatRequestString(t *testing.T) {
	cases := []struct {
		req  Request
		want string
	}{
		{Request{"type": "GET_NOTES", "count": 2}, "GET_NOTES 2"},
		{Request{"type": "GET_NOTES", "count": float64(5), "params": "npub1xyz"}, "GET_NOTES 5 npub1xyz"},
		{Request{}, "GET_NOTES 2"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatRequestString(c.req))
	}
}
