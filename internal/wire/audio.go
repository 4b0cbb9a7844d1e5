// Package wire implements the binary framing for tagged payloads that
// travel over the transport's best-effort channels. Frames must survive
// an unordered, lossy channel and reconstruct byte-exact on the other
// end, so everything here is deterministic and self-describing.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"parlor/internal/core/domain"
)

// TagAudio labels audio segment payloads on the shared packet channel.
const TagAudio = "audio"

// audioHeaderSize covers sequence, sample rate, channel count and the
// sample count prefix, 4 bytes each.
const audioHeaderSize = 16

var (
	ErrShortPayload = errors.New("wire: payload too short")
	ErrSampleCount  = errors.New("wire: bad sample count")
)

// EncodeAudioSegment serializes a segment as
// [int32 seq][int32 rate][int32 channels][int32 n][float32 × n],
// all little-endian, floats as IEEE-754 single precision bits.
func EncodeAudioSegment(seg domain.AudioSegment) []byte {
	buf := make([]byte, audioHeaderSize+4*len(seg.Samples))
	binary.LittleEndian.PutUint32(buf[0:], uint32(seg.Sequence))
	binary.LittleEndian.PutUint32(buf[4:], uint32(seg.SampleRate))
	binary.LittleEndian.PutUint32(buf[8:], uint32(seg.Channels))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(seg.Samples)))
	for i, s := range seg.Samples {
		binary.LittleEndian.PutUint32(buf[audioHeaderSize+4*i:], math.Float32bits(s))
	}
	return buf
}

// DecodeAudioSegment parses an encoded segment. The sample count is
// validated against the remaining buffer before any allocation, so a
// corrupt frame costs nothing. Trailing bytes beyond the declared sample
// array are ignored.
func DecodeAudioSegment(payload []byte) (domain.AudioSegment, error) {
	if len(payload) < audioHeaderSize {
		return domain.AudioSegment{}, fmt.Errorf("%w: %d bytes, need %d", ErrShortPayload, len(payload), audioHeaderSize)
	}

	seg := domain.AudioSegment{
		Sequence:   int32(binary.LittleEndian.Uint32(payload[0:])),
		SampleRate: int32(binary.LittleEndian.Uint32(payload[4:])),
		Channels:   int32(binary.LittleEndian.Uint32(payload[8:])),
	}

	n := int32(binary.LittleEndian.Uint32(payload[12:]))
	if n < 0 {
		return domain.AudioSegment{}, fmt.Errorf("%w: %d", ErrSampleCount, n)
	}
	body := payload[audioHeaderSize:]
	if int64(len(body)) < 4*int64(n) {
		return domain.AudioSegment{}, fmt.Errorf("%w: declared %d samples, %d bytes left", ErrSampleCount, n, len(body))
	}

	seg.Samples = make([]float32, n)
	for i := range seg.Samples {
		seg.Samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[4*i:]))
	}
	return seg, nil
}
