package streaming

import (
	"time"

	"parlor/internal/core/domain"

	"go.uber.org/zap"
)

// Segmenter chops a continuous PCM feed into fixed-duration segments
// ready for the wire. Sequence numbers increase by one per emitted
// segment.
//
// Not safe for concurrent use; feed it from one goroutine.
type Segmenter struct {
	sampleRate int32
	channels   int32
	frameSize  int // samples per segment, all channels interleaved

	pending  []float32
	sequence int32

	logger *zap.SugaredLogger
}

// NewSegmenter builds segments of the given duration. Typical voice
// pipelines use 20 ms at 48 kHz.
func NewSegmenter(sampleRate, channels int32, segmentDuration time.Duration, logger *zap.SugaredLogger) *Segmenter {
	perChannel := int(int64(sampleRate) * segmentDuration.Nanoseconds() / int64(time.Second))
	if perChannel < 1 {
		perChannel = 1
	}
	return &Segmenter{
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  perChannel * int(channels),
		pending:    make([]float32, 0, perChannel*int(channels)),
		logger:     logger,
	}
}

// Push appends interleaved samples and returns every full segment they
// complete. Leftover samples wait for the next call.
func (s *Segmenter) Push(samples []float32) []domain.AudioSegment {
	s.pending = append(s.pending, samples...)

	var out []domain.AudioSegment
	for len(s.pending) >= s.frameSize {
		seg := domain.AudioSegment{
			Sequence:   s.sequence,
			SampleRate: s.sampleRate,
			Channels:   s.channels,
			Samples:    append([]float32(nil), s.pending[:s.frameSize]...),
		}
		out = append(out, seg)
		s.pending = s.pending[s.frameSize:]
		s.sequence++
	}

	// Reclaim the backing array once the pending window has drained.
	if len(s.pending) == 0 && cap(s.pending) > 4*s.frameSize {
		s.pending = make([]float32, 0, s.frameSize)
	}
	return out
}

// Flush emits whatever is buffered as a final short segment.
func (s *Segmenter) Flush() (domain.AudioSegment, bool) {
	if len(s.pending) == 0 {
		return domain.AudioSegment{}, false
	}
	seg := domain.AudioSegment{
		Sequence:   s.sequence,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		Samples:    append([]float32(nil), s.pending...),
	}
	s.sequence++
	s.pending = s.pending[:0]
	s.logger.Debugw("flushed trailing segment", "sequence", seg.Sequence, "samples", len(seg.Samples))
	return seg, true
}

// Sequence returns the sequence number the next segment will carry.
func (s *Segmenter) Sequence() int32 {
	return s.sequence
}
