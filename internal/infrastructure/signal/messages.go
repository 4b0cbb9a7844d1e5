package signal

import (
	"encoding/json"

	"parlor/internal/core/domain"
)

// Client-to-server message types.
const (
	MsgHost   = "host"
	MsgJoin   = "join"
	MsgLeave  = "leave"
	MsgSignal = "signal"
)

// Server-to-client message types.
const (
	MsgHostOK     = "host-ok"
	MsgHostError  = "host-error"
	MsgJoined     = "joined"
	MsgJoinError  = "join-error"
	MsgPeerJoined = "peer-joined"
	MsgPeerLeft   = "peer-left"
	MsgRoomClosed = "room-closed"
)

// Message is the signaling envelope. Which fields are meaningful depends
// on Type; Payload stays opaque to the server (SDP offers/answers and
// ICE candidates are relayed verbatim between peers).
type Message struct {
	Type        string          `json:"type"`
	Room        string          `json:"room,omitempty"`
	Token       string          `json:"token,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	// Identifier fields carry no omitempty: 0 is the host and must
	// survive the round trip.
	PeerID      domain.PeerID   `json:"peer_id"`
	Target      domain.PeerID   `json:"target"`
	Sender      domain.PeerID   `json:"sender"`
	Peers       []domain.PeerID `json:"peers,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Error       string          `json:"error,omitempty"`
}
