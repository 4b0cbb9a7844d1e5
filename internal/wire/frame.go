package wire

import (
	"errors"
	"fmt"
)

// ErrBadTag is returned for tags that cannot be framed.
var ErrBadTag = errors.New("wire: bad tag")

// EncodeFrame wraps a payload with its routing tag:
// [uint8 tagLen][tag][payload]. Tags are short ASCII labels; one byte of
// length is plenty.
func EncodeFrame(tag string, payload []byte) ([]byte, error) {
	if len(tag) == 0 || len(tag) > 255 {
		return nil, fmt.Errorf("%w: %q", ErrBadTag, tag)
	}
	buf := make([]byte, 0, 1+len(tag)+len(payload))
	buf = append(buf, byte(len(tag)))
	buf = append(buf, tag...)
	buf = append(buf, payload...)
	return buf, nil
}

// DecodeFrame splits a frame into tag and payload. The payload slice
// aliases the input.
func DecodeFrame(frame []byte) (tag string, payload []byte, err error) {
	if len(frame) < 1 {
		return "", nil, fmt.Errorf("%w: empty frame", ErrShortPayload)
	}
	n := int(frame[0])
	if len(frame) < 1+n {
		return "", nil, fmt.Errorf("%w: tag length %d exceeds frame", ErrShortPayload, n)
	}
	return string(frame[1 : 1+n]), frame[1+n:], nil
}
