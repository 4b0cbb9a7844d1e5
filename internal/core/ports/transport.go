package ports

import "parlor/internal/core/domain"

// Transport is the underlying peer-to-peer layer a chatroom sits on. It
// manages connections, assigns peer identifiers within a room session,
// and delivers tagged byte payloads over reliable and unreliable
// channels. Implementations own all connection mechanics; the chatroom
// only issues commands and reads the live state below.
type Transport interface {
	// StartHost registers and hosts the named room. Outcome arrives via
	// OnHostStarted or OnHostStartFailed.
	StartHost(name string)
	// StopHost closes a hosted room. Outcome arrives via OnHostStopped.
	StopHost()
	// Connect joins the named room as a guest. The assigned identifier
	// arrives via OnIDReceived; failures via OnConnectFailed.
	Connect(name string)
	// Disconnect leaves the current room. Observed via OnDisconnected.
	Disconnect()
	// Dispose releases all transport resources. No events fire after it.
	Dispose()

	// Send delivers a tagged payload to one peer. Unreliable sends may be
	// dropped or reordered; the error covers local submission only.
	Send(peer domain.PeerID, tag string, payload []byte, reliable bool) error

	// OwnID returns the identifier the room assigned to this party, or
	// domain.PeerUnassigned before confirmation.
	OwnID() domain.PeerID
	// PeerIDs returns the identifiers of all other known room members.
	PeerIDs() []domain.PeerID
	// RoomName returns the name of the current room, or "" when none.
	RoomName() string

	// SetListener registers the single event listener. Events are
	// delivered serially, in order, from one goroutine.
	SetListener(l TransportListener)
}

// TransportListener receives the transport's push events. Delivery is
// strictly serial; implementations need no locking of their own state
// as long as they confine it to the event path.
type TransportListener interface {
	OnHostStarted()
	OnHostStartFailed(err error)
	OnHostStopped()

	OnConnectFailed(err error)
	OnIDReceived(id domain.PeerID)
	OnDisconnected()
	OnRemoteHostClosed()

	OnPeerJoined(id domain.PeerID)
	OnPeerLeft(id domain.PeerID)
	OnPacketReceived(sender domain.PeerID, tag string, payload []byte)
}
