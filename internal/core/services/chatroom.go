package services

import (
	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
	"parlor/internal/wire"

	"go.uber.org/zap"
)

type gateState uint8

const (
	gateDisconnected gateState = iota
	gateHosting
	gateConfirmed
)

// Chatroom sits between the raw transport's events and the room's
// public lifecycle. The transport reports a live link before the room
// has confirmed this party's identifier; until that confirmation the
// chatroom reports an unassigned ID and an empty peer set, so consumers
// never observe a half-joined room.
//
// All event handling runs on the transport's single event goroutine, so
// the state below needs no locking. Commands only forward to the
// transport; lifecycle events fire asynchronously from its callbacks.
type Chatroom struct {
	transport ports.Transport
	listener  ports.RoomListener
	state     gateState

	logger *zap.SugaredLogger
}

var _ ports.TransportListener = (*Chatroom)(nil)

// NewChatroom wires a chatroom onto the transport and registers it as
// the transport's event listener.
func NewChatroom(transport ports.Transport, listener ports.RoomListener, logger *zap.SugaredLogger) *Chatroom {
	c := &Chatroom{
		transport: transport,
		listener:  listener,
		logger:    logger,
	}
	transport.SetListener(c)
	return c
}

// OwnID is a projection of the transport's live identifier, never a
// cached copy. It stays domain.PeerUnassigned until the room confirms
// membership.
func (c *Chatroom) OwnID() domain.PeerID {
	return c.transport.OwnID()
}

// PeerIDs returns the current peer set, or nil while the own identifier
// is unconfirmed. Before confirmation no peers are observable, even if
// the transport already knows about some.
func (c *Chatroom) PeerIDs() []domain.PeerID {
	if !c.OwnID().Assigned() {
		return nil
	}
	return c.transport.PeerIDs()
}

// RoomName returns the current room's name; ok is false before
// membership is confirmed.
func (c *Chatroom) RoomName() (name string, ok bool) {
	if !c.OwnID().Assigned() {
		return "", false
	}
	return c.transport.RoomName(), true
}

func (c *Chatroom) HostRoom(name string)  { c.transport.StartHost(name) }
func (c *Chatroom) CloseRoom()            { c.transport.StopHost() }
func (c *Chatroom) JoinRoom(name string)  { c.transport.Connect(name) }
func (c *Chatroom) LeaveRoom()            { c.transport.Disconnect() }
func (c *Chatroom) Dispose()              { c.transport.Dispose() }

// SendAudio encodes a segment and hands it to the transport for
// unreliable delivery. Sending before the room has confirmed membership
// is meaningless and silently suppressed. OnAudioSent fires as soon as
// the segment is handed off, regardless of the asynchronous outcome.
func (c *Chatroom) SendAudio(peer domain.PeerID, seg domain.AudioSegment) {
	if !c.OwnID().Assigned() {
		c.logger.Debugw("suppressing audio send before room confirmation", "peer", peer)
		return
	}

	if err := c.transport.Send(peer, wire.TagAudio, wire.EncodeAudioSegment(seg), false); err != nil {
		c.logger.Warnw("audio send failed", "peer", peer, "error", err)
	}
	c.listener.OnAudioSent(peer, seg)
}

func (c *Chatroom) OnHostStarted() {
	c.state = gateHosting
	c.listener.OnRoomCreated()
}

func (c *Chatroom) OnHostStartFailed(err error) {
	c.state = gateDisconnected
	c.listener.OnRoomCreateFailed(err)
}

func (c *Chatroom) OnHostStopped() {
	if c.state == gateDisconnected {
		return
	}
	c.state = gateDisconnected
	c.listener.OnRoomClosed()
}

func (c *Chatroom) OnConnectFailed(err error) {
	c.state = gateDisconnected
	c.listener.OnRoomJoinFailed(err)
}

// OnIDReceived confirms this party's room identifier. Guests get a
// room-joined event followed by a synthesized peer-joined for the host,
// who is implicitly present the moment a guest is confirmed and is never
// separately announced by the transport. A host receiving its own 0 gets
// neither: it already knows from room-created.
func (c *Chatroom) OnIDReceived(id domain.PeerID) {
	c.state = gateConfirmed
	if id == domain.PeerHost {
		return
	}
	c.listener.OnRoomJoined(id)
	c.listener.OnPeerJoined(domain.PeerHost)
}

func (c *Chatroom) OnDisconnected()     { c.leaveOnce() }
func (c *Chatroom) OnRemoteHostClosed() { c.leaveOnce() }

// leaveOnce collapses the transport's two disconnect signals into exactly
// one room-left event per session.
func (c *Chatroom) leaveOnce() {
	if c.state == gateDisconnected {
		return
	}
	c.state = gateDisconnected
	c.listener.OnRoomLeft()
}

// Peer membership changes pass through unchanged in any state; the
// transport owns membership consistency and the gate does not
// de-duplicate or validate peer history.
func (c *Chatroom) OnPeerJoined(id domain.PeerID) { c.listener.OnPeerJoined(id) }
func (c *Chatroom) OnPeerLeft(id domain.PeerID)   { c.listener.OnPeerLeft(id) }

// OnPacketReceived routes tagged payloads. Anything that is not audio
// belongs to another message family and is ignored here. A corrupt audio
// frame is dropped; it must never end the session.
func (c *Chatroom) OnPacketReceived(sender domain.PeerID, tag string, payload []byte) {
	if tag != wire.TagAudio {
		return
	}

	seg, err := wire.DecodeAudioSegment(payload)
	if err != nil {
		c.logger.Debugw("dropping malformed audio frame", "sender", sender, "error", err)
		return
	}
	c.listener.OnAudioReceived(sender, seg)
}
