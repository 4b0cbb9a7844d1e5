package ports

import "parlor/internal/core/domain"

// RoomListener receives chatroom lifecycle and audio events, already
// gated on confirmed room membership. Consumers (voice pipelines, UIs)
// implement this.
//
// Known gap, kept deliberately: OnPeerJoined(domain.PeerHost) is
// synthesized on every guest confirmation without checking whether the
// transport already reported peer 0, so a transport that announces the
// host twice would make consumers double-count it.
type RoomListener interface {
	OnRoomCreated()
	OnRoomCreateFailed(err error)
	OnRoomClosed()

	OnRoomJoined(own domain.PeerID)
	OnRoomJoinFailed(err error)
	OnRoomLeft()

	OnPeerJoined(id domain.PeerID)
	OnPeerLeft(id domain.PeerID)

	OnAudioReceived(from domain.PeerID, seg domain.AudioSegment)
	// OnAudioSent fires when a segment was handed to the transport. It is
	// an acknowledgment of intent, not of delivery.
	OnAudioSent(to domain.PeerID, seg domain.AudioSegment)
}
