package webrtc

import (
	"fmt"
	"sync"

	"parlor/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

const (
	labelReliable   = "reliable"
	labelUnreliable = "unreliable"
)

// peerLink is one mesh edge: a peer connection plus its two data
// channels. The joining side opens the channels before offering; the
// other side picks them up by label in OnDataChannel.
type peerLink struct {
	id domain.PeerID
	pc *webrtc.PeerConnection

	mu         sync.RWMutex
	reliable   *webrtc.DataChannel
	unreliable *webrtc.DataChannel
}

// openChannels creates both data channels on the initiating side. The
// unreliable channel trades delivery and ordering guarantees for
// latency.
func (l *peerLink) openChannels() error {
	reliable, err := l.pc.CreateDataChannel(labelReliable, nil)
	if err != nil {
		return fmt.Errorf("creating reliable channel: %w", err)
	}

	ordered := false
	var maxRetransmits uint16 = 0
	unreliable, err := l.pc.CreateDataChannel(labelUnreliable, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		return fmt.Errorf("creating unreliable channel: %w", err)
	}

	l.mu.Lock()
	l.reliable = reliable
	l.unreliable = unreliable
	l.mu.Unlock()
	return nil
}

// adoptChannel registers a remotely created data channel by label.
// Channels with unknown labels are ignored.
func (l *peerLink) adoptChannel(dc *webrtc.DataChannel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch dc.Label() {
	case labelReliable:
		l.reliable = dc
	case labelUnreliable:
		l.unreliable = dc
	default:
		return false
	}
	return true
}

// channels returns both data channels for handler wiring.
func (l *peerLink) channels() (reliable, unreliable *webrtc.DataChannel) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reliable, l.unreliable
}

func (l *peerLink) send(frame []byte, reliable bool) error {
	l.mu.RLock()
	dc := l.reliable
	if !reliable {
		dc = l.unreliable
	}
	l.mu.RUnlock()

	if dc == nil {
		return fmt.Errorf("peer %d: channel not established", l.id)
	}
	if dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("peer %d: channel %s not open", l.id, dc.Label())
	}
	return dc.Send(frame)
}

func (l *peerLink) close() {
	l.pc.Close()
}
