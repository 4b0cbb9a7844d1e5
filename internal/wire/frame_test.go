package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	frame, err := EncodeFrame(TagAudio, []byte{1, 2, 3})
	require.NoError(t, err)

	tag, payload, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, TagAudio, tag)
	assert.Equal(t, []byte{1, 2, 3}, payload)
}

func TestEncodeFrameRejectsBadTags(t *testing.T) {
	_, err := EncodeFrame("", nil)
	assert.ErrorIs(t, err, ErrBadTag)

	_, err = EncodeFrame(strings.Repeat("x", 256), nil)
	assert.ErrorIs(t, err, ErrBadTag)
}

func TestDecodeFrameMalformed(t *testing.T) {
	_, _, err := DecodeFrame(nil)
	assert.ErrorIs(t, err, ErrShortPayload)

	// Tag length byte claims more bytes than present.
	_, _, err = DecodeFrame([]byte{10, 'a', 'b'})
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestDecodeFrameEmptyPayload(t *testing.T) {
	frame, err := EncodeFrame("ping", nil)
	require.NoError(t, err)

	tag, payload, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, "ping", tag)
	assert.Empty(t, payload)
}
