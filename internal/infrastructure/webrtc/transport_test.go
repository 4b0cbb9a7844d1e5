package webrtc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parlor/internal/core/domain"
	"parlor/internal/core/services"
	"parlor/internal/infrastructure/monitoring"
	"parlor/internal/infrastructure/repositories/memory"
	"parlor/internal/infrastructure/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// transportEvent is one recorded listener callback.
type transportEvent struct {
	name string
	id   domain.PeerID
	err  error
}

// recordingListener funnels every callback into a channel so tests can
// assert on ordering with timeouts instead of sleeps.
type recordingListener struct {
	events chan transportEvent
}

func newRecordingListener() *recordingListener {
	return &recordingListener{events: make(chan transportEvent, 32)}
}

func (r *recordingListener) OnHostStarted()            { r.events <- transportEvent{name: "host-started"} }
func (r *recordingListener) OnHostStartFailed(e error) {
	r.events <- transportEvent{name: "host-start-failed", err: e}
}
func (r *recordingListener) OnHostStopped() { r.events <- transportEvent{name: "host-stopped"} }
func (r *recordingListener) OnConnectFailed(e error) {
	r.events <- transportEvent{name: "connect-failed", err: e}
}
func (r *recordingListener) OnIDReceived(id domain.PeerID) {
	r.events <- transportEvent{name: "id-received", id: id}
}
func (r *recordingListener) OnDisconnected()     { r.events <- transportEvent{name: "disconnected"} }
func (r *recordingListener) OnRemoteHostClosed() { r.events <- transportEvent{name: "remote-host-closed"} }
func (r *recordingListener) OnPeerJoined(id domain.PeerID) {
	r.events <- transportEvent{name: "peer-joined", id: id}
}
func (r *recordingListener) OnPeerLeft(id domain.PeerID) {
	r.events <- transportEvent{name: "peer-left", id: id}
}
func (r *recordingListener) OnPacketReceived(sender domain.PeerID, tag string, payload []byte) {
	r.events <- transportEvent{name: "packet:" + tag, id: sender}
}

func (r *recordingListener) next(t *testing.T) transportEvent {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return transportEvent{}
	}
}

func startSignalServer(t *testing.T) string {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	directory := services.NewRoomDirectory(memory.NewMemoryRoomRepository(), 16, logger)
	auth := services.NewAuthService("test-secret", time.Hour)
	metrics := monitoring.NewPrometheusCollectorWith(prometheus.NewRegistry())
	server := signal.NewWebSocketServer(directory, auth, metrics, signal.Options{}, logger)

	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func newTestTransport(t *testing.T, url string) (*RoomTransport, *recordingListener) {
	t.Helper()
	tr := NewRoomTransport(Config{SignalURL: url}, zaptest.NewLogger(t).Sugar())
	t.Cleanup(tr.Dispose)
	rec := newRecordingListener()
	tr.SetListener(rec)
	return tr, rec
}

func TestRoomTransport_HostLifecycle(t *testing.T) {
	url := startSignalServer(t)
	host, events := newTestTransport(t, url)

	host.StartHost("den")

	assert.Equal(t, "host-started", events.next(t).name)
	confirmed := events.next(t)
	assert.Equal(t, "id-received", confirmed.name)
	assert.Equal(t, domain.PeerHost, confirmed.id)
	assert.Equal(t, "den", host.RoomName())
	assert.Equal(t, domain.PeerHost, host.OwnID())

	host.StopHost()
	assert.Equal(t, "host-stopped", events.next(t).name)
	assert.Equal(t, domain.PeerUnassigned, host.OwnID())
	assert.Equal(t, "", host.RoomName())
}

func TestRoomTransport_HostFailsOnTakenRoom(t *testing.T) {
	url := startSignalServer(t)

	first, firstEvents := newTestTransport(t, url)
	first.StartHost("den")
	require.Equal(t, "host-started", firstEvents.next(t).name)
	require.Equal(t, "id-received", firstEvents.next(t).name)

	second, secondEvents := newTestTransport(t, url)
	second.StartHost("den")

	failed := secondEvents.next(t)
	assert.Equal(t, "host-start-failed", failed.name)
	assert.ErrorContains(t, failed.err, "exists")
	assert.Equal(t, domain.PeerUnassigned, second.OwnID())
}

func TestRoomTransport_GuestJoinAndLeave(t *testing.T) {
	url := startSignalServer(t)

	host, hostEvents := newTestTransport(t, url)
	host.StartHost("den")
	require.Equal(t, "host-started", hostEvents.next(t).name)
	require.Equal(t, "id-received", hostEvents.next(t).name)

	guest, guestEvents := newTestTransport(t, url)
	guest.Connect("den")

	assigned := guestEvents.next(t)
	assert.Equal(t, "id-received", assigned.name)
	assert.Equal(t, domain.PeerID(1), assigned.id)
	assert.Equal(t, "den", guest.RoomName())

	joined := hostEvents.next(t)
	assert.Equal(t, "peer-joined", joined.name)
	assert.Equal(t, domain.PeerID(1), joined.id)

	guest.Disconnect()
	assert.Equal(t, "disconnected", guestEvents.next(t).name)

	left := hostEvents.next(t)
	assert.Equal(t, "peer-left", left.name)
	assert.Equal(t, domain.PeerID(1), left.id)
}

func TestRoomTransport_ConnectToMissingRoomFails(t *testing.T) {
	url := startSignalServer(t)
	guest, events := newTestTransport(t, url)

	guest.Connect("nowhere")

	failed := events.next(t)
	assert.Equal(t, "connect-failed", failed.name)
	assert.ErrorContains(t, failed.err, "not found")
}

func TestRoomTransport_HostDepartureClosesGuests(t *testing.T) {
	url := startSignalServer(t)

	host, hostEvents := newTestTransport(t, url)
	host.StartHost("den")
	require.Equal(t, "host-started", hostEvents.next(t).name)
	require.Equal(t, "id-received", hostEvents.next(t).name)

	guest, guestEvents := newTestTransport(t, url)
	guest.Connect("den")
	require.Equal(t, "id-received", guestEvents.next(t).name)
	require.Equal(t, "peer-joined", hostEvents.next(t).name)

	host.StopHost()
	require.Equal(t, "host-stopped", hostEvents.next(t).name)

	assert.Equal(t, "remote-host-closed", guestEvents.next(t).name)
	assert.Equal(t, domain.PeerUnassigned, guest.OwnID())
}

func TestRoomTransport_SendToUnknownPeer(t *testing.T) {
	url := startSignalServer(t)
	tr, _ := newTestTransport(t, url)

	err := tr.Send(5, "audio", []byte{1, 2, 3}, false)
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)
}
