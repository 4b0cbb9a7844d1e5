package domain

// AudioSegment is one chunk of decoded PCM audio travelling between two
// peers. Samples are interleaved by channel when Channels > 1. Sequence
// is assigned by the sender and only interpreted by consumers (reorder
// and loss detection); the codec carries it verbatim.
//
// SampleRate > 0 and Channels > 0 are caller contracts, as is keeping
// len(Samples) a multiple of Channels.
type AudioSegment struct {
	Sequence   int32
	SampleRate int32
	Channels   int32
	Samples    []float32
}
