package services

import (
	"encoding/binary"
	"testing"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
	"parlor/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sendCall struct {
	peer     domain.PeerID
	tag      string
	payload  []byte
	reliable bool
}

// fakeTransport lets tests drive the transport event path directly and
// records every command the chatroom issues.
type fakeTransport struct {
	listener ports.TransportListener

	ownID    domain.PeerID
	peers    []domain.PeerID
	roomName string

	sends       []sendCall
	sendErr     error
	hosted      []string
	connected   []string
	hostStops   int
	disconnects int
	disposed    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ownID: domain.PeerUnassigned}
}

func (f *fakeTransport) StartHost(name string) { f.hosted = append(f.hosted, name) }
func (f *fakeTransport) StopHost()             { f.hostStops++ }
func (f *fakeTransport) Connect(name string)   { f.connected = append(f.connected, name) }
func (f *fakeTransport) Disconnect()           { f.disconnects++ }
func (f *fakeTransport) Dispose()              { f.disposed++ }

func (f *fakeTransport) Send(peer domain.PeerID, tag string, payload []byte, reliable bool) error {
	f.sends = append(f.sends, sendCall{peer: peer, tag: tag, payload: payload, reliable: reliable})
	return f.sendErr
}

func (f *fakeTransport) OwnID() domain.PeerID              { return f.ownID }
func (f *fakeTransport) PeerIDs() []domain.PeerID          { return f.peers }
func (f *fakeTransport) RoomName() string                  { return f.roomName }
func (f *fakeTransport) SetListener(l ports.TransportListener) { f.listener = l }

type audioEvent struct {
	peer domain.PeerID
	seg  domain.AudioSegment
}

// recorder captures chatroom events in arrival order.
type recorder struct {
	events   []string
	joinedAs []domain.PeerID
	peers    []domain.PeerID
	errs     []error
	received []audioEvent
	sent     []audioEvent
}

func (r *recorder) OnRoomCreated() { r.events = append(r.events, "room-created") }
func (r *recorder) OnRoomCreateFailed(err error) {
	r.events = append(r.events, "room-create-failed")
	r.errs = append(r.errs, err)
}
func (r *recorder) OnRoomClosed() { r.events = append(r.events, "room-closed") }
func (r *recorder) OnRoomJoined(own domain.PeerID) {
	r.events = append(r.events, "room-joined")
	r.joinedAs = append(r.joinedAs, own)
}
func (r *recorder) OnRoomJoinFailed(err error) {
	r.events = append(r.events, "room-join-failed")
	r.errs = append(r.errs, err)
}
func (r *recorder) OnRoomLeft() { r.events = append(r.events, "room-left") }
func (r *recorder) OnPeerJoined(id domain.PeerID) {
	r.events = append(r.events, "peer-joined")
	r.peers = append(r.peers, id)
}
func (r *recorder) OnPeerLeft(id domain.PeerID) {
	r.events = append(r.events, "peer-left")
	r.peers = append(r.peers, id)
}
func (r *recorder) OnAudioReceived(from domain.PeerID, seg domain.AudioSegment) {
	r.events = append(r.events, "audio-received")
	r.received = append(r.received, audioEvent{peer: from, seg: seg})
}
func (r *recorder) OnAudioSent(to domain.PeerID, seg domain.AudioSegment) {
	r.events = append(r.events, "audio-sent")
	r.sent = append(r.sent, audioEvent{peer: to, seg: seg})
}

func newTestChatroom(t *testing.T) (*Chatroom, *fakeTransport, *recorder) {
	t.Helper()
	ft := newFakeTransport()
	rec := &recorder{}
	room := NewChatroom(ft, rec, zaptest.NewLogger(t).Sugar())
	require.NotNil(t, ft.listener)
	return room, ft, rec
}

func TestPeerIDsMaskedUntilConfirmed(t *testing.T) {
	room, ft, _ := newTestChatroom(t)

	// The transport already knows about peers, but membership is not
	// confirmed yet: nothing may be observable.
	ft.peers = []domain.PeerID{0, 2, 3}
	ft.listener.OnPeerJoined(2)
	ft.listener.OnPeerJoined(3)

	assert.Equal(t, domain.PeerUnassigned, room.OwnID())
	assert.Empty(t, room.PeerIDs())

	ft.ownID = 4
	assert.Equal(t, []domain.PeerID{0, 2, 3}, room.PeerIDs())
}

func TestGuestConfirmationSynthesizesHostJoin(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	ft.ownID = 5
	ft.listener.OnIDReceived(5)

	assert.Equal(t, []string{"room-joined", "peer-joined"}, rec.events)
	assert.Equal(t, []domain.PeerID{5}, rec.joinedAs)
	assert.Equal(t, []domain.PeerID{domain.PeerHost}, rec.peers)
}

func TestHostConfirmationFiresNoSelfJoin(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	ft.ownID = domain.PeerHost
	ft.listener.OnHostStarted()
	ft.listener.OnIDReceived(domain.PeerHost)

	assert.Equal(t, []string{"room-created"}, rec.events)
}

func TestRoomLeftFiresExactlyOnce(t *testing.T) {
	tests := []struct {
		name    string
		signals []func(l ports.TransportListener)
	}{
		{
			name: "disconnected then remote host closed",
			signals: []func(l ports.TransportListener){
				func(l ports.TransportListener) { l.OnDisconnected() },
				func(l ports.TransportListener) { l.OnRemoteHostClosed() },
			},
		},
		{
			name: "remote host closed then disconnected",
			signals: []func(l ports.TransportListener){
				func(l ports.TransportListener) { l.OnRemoteHostClosed() },
				func(l ports.TransportListener) { l.OnDisconnected() },
			},
		},
		{
			name: "disconnected twice",
			signals: []func(l ports.TransportListener){
				func(l ports.TransportListener) { l.OnDisconnected() },
				func(l ports.TransportListener) { l.OnDisconnected() },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ft, rec := newTestChatroom(t)
			ft.ownID = 2
			ft.listener.OnIDReceived(2)

			for _, fire := range tt.signals {
				fire(ft.listener)
			}

			left := 0
			for _, ev := range rec.events {
				if ev == "room-left" {
					left++
				}
			}
			assert.Equal(t, 1, left)
		})
	}
}

func TestRedundantDisconnectWhileIdleIsNoop(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	ft.listener.OnDisconnected()
	ft.listener.OnRemoteHostClosed()

	assert.Empty(t, rec.events)
}

func TestHostFailureSurfacedVerbatim(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	ft.listener.OnHostStartFailed(domain.ErrRoomExists)
	ft.listener.OnConnectFailed(domain.ErrRoomNotFound)

	assert.Equal(t, []string{"room-create-failed", "room-join-failed"}, rec.events)
	require.Len(t, rec.errs, 2)
	assert.ErrorIs(t, rec.errs[0], domain.ErrRoomExists)
	assert.ErrorIs(t, rec.errs[1], domain.ErrRoomNotFound)
}

func TestHostStoppedClosesRoomOnce(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	ft.listener.OnHostStarted()
	ft.listener.OnHostStopped()
	ft.listener.OnHostStopped()

	assert.Equal(t, []string{"room-created", "room-closed"}, rec.events)
}

func TestPeerEventsPassThroughUnvalidated(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	// A peer-left with no prior peer-joined is forwarded as-is; membership
	// consistency is the transport's responsibility.
	ft.listener.OnPeerLeft(9)

	assert.Equal(t, []string{"peer-left"}, rec.events)
	assert.Equal(t, []domain.PeerID{9}, rec.peers)
}

func TestSendAudioSuppressedUntilConfirmed(t *testing.T) {
	room, ft, rec := newTestChatroom(t)

	room.SendAudio(2, domain.AudioSegment{SampleRate: 48000, Channels: 1, Samples: []float32{0.5}})

	assert.Empty(t, ft.sends)
	assert.Empty(t, rec.events)
}

func TestSendAudioUnreliableTaggedAndAcknowledged(t *testing.T) {
	room, ft, rec := newTestChatroom(t)
	ft.ownID = 3

	seg := domain.AudioSegment{Sequence: 7, SampleRate: 48000, Channels: 2, Samples: []float32{0.1, -0.2, 0.3, -0.4}}
	room.SendAudio(1, seg)

	require.Len(t, ft.sends, 1)
	call := ft.sends[0]
	assert.Equal(t, domain.PeerID(1), call.peer)
	assert.Equal(t, wire.TagAudio, call.tag)
	assert.False(t, call.reliable)

	decoded, err := wire.DecodeAudioSegment(call.payload)
	require.NoError(t, err)
	assert.Equal(t, seg, decoded)

	assert.Equal(t, []string{"audio-sent"}, rec.events)
	assert.Equal(t, []audioEvent{{peer: 1, seg: seg}}, rec.sent)
}

func TestSendAudioAcknowledgedEvenIfTransportErrs(t *testing.T) {
	room, ft, rec := newTestChatroom(t)
	ft.ownID = 3
	ft.sendErr = domain.ErrPeerNotFound

	room.SendAudio(1, domain.AudioSegment{SampleRate: 8000, Channels: 1})

	// Optimistic fire-and-forget: the notification records intent, not
	// delivery.
	assert.Equal(t, []string{"audio-sent"}, rec.events)
}

func TestAudioReceivedRoundTrip(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	seg := domain.AudioSegment{Sequence: 11, SampleRate: 16000, Channels: 1, Samples: []float32{1, -1}}
	ft.listener.OnPacketReceived(6, wire.TagAudio, wire.EncodeAudioSegment(seg))

	require.Equal(t, []string{"audio-received"}, rec.events)
	assert.Equal(t, []audioEvent{{peer: 6, seg: seg}}, rec.received)
}

func TestNonAudioTagsIgnored(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	ft.listener.OnPacketReceived(6, "chat", []byte("hello"))
	ft.listener.OnPacketReceived(6, "", nil)

	assert.Empty(t, rec.events)
}

func TestMalformedAudioFrameDropped(t *testing.T) {
	_, ft, rec := newTestChatroom(t)

	// Declared sample count far beyond the remaining bytes.
	payload := wire.EncodeAudioSegment(domain.AudioSegment{SampleRate: 48000, Channels: 2, Samples: []float32{0.5}})
	binary.LittleEndian.PutUint32(payload[12:], 1<<20)

	ft.listener.OnPacketReceived(6, wire.TagAudio, payload)
	ft.listener.OnPacketReceived(6, wire.TagAudio, []byte{1, 2})

	assert.Empty(t, rec.events)
}

func TestRoomNameHiddenUntilConfirmed(t *testing.T) {
	room, ft, _ := newTestChatroom(t)
	ft.roomName = "lobby"

	name, ok := room.RoomName()
	assert.False(t, ok)
	assert.Empty(t, name)

	ft.ownID = 1
	name, ok = room.RoomName()
	assert.True(t, ok)
	assert.Equal(t, "lobby", name)
}

func TestCommandsForwardToTransport(t *testing.T) {
	room, ft, rec := newTestChatroom(t)

	room.HostRoom("den")
	room.CloseRoom()
	room.JoinRoom("den")
	room.LeaveRoom()
	room.Dispose()

	assert.Equal(t, []string{"den"}, ft.hosted)
	assert.Equal(t, []string{"den"}, ft.connected)
	assert.Equal(t, 1, ft.hostStops)
	assert.Equal(t, 1, ft.disconnects)
	assert.Equal(t, 1, ft.disposed)
	// Commands never raise lifecycle events themselves.
	assert.Empty(t, rec.events)
}
