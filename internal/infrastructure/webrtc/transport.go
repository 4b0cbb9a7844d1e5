package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
	"parlor/internal/infrastructure/signal"
	"parlor/internal/wire"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// signalPayload is what peers relay through the signaling server. The
// server never looks inside it.
type signalPayload struct {
	Kind      string                     `json:"kind"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

const (
	kindOffer     = "offer"
	kindAnswer    = "answer"
	kindCandidate = "candidate"
)

// Config holds transport configuration.
type Config struct {
	SignalURL  string
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
	// Token and DisplayName are presented to the signaling server when
	// hosting or joining.
	Token       string
	DisplayName string
}

// RoomTransport connects room members in a full mesh of peer
// connections, with the signaling server handling rendezvous and
// membership. Each mesh edge carries a reliable and an unreliable data
// channel; payloads travel tag-framed.
//
// The peer that joins last initiates offers to everyone already
// present, so both sides agree on who dials whom.
type RoomTransport struct {
	cfg    Config
	api    *webrtc.API
	logger *zap.SugaredLogger

	events      chan func()
	done        chan struct{}
	disposeOnce sync.Once

	mu       sync.RWMutex
	listener ports.TransportListener
	sig      *signalingClient
	room     string
	ownID    domain.PeerID
	hosting  bool
	links    map[domain.PeerID]*peerLink
}

func NewRoomTransport(cfg Config, logger *zap.SugaredLogger) *RoomTransport {
	cfg.ICEServers = resolveICEServers(cfg.ICEServers)

	settingEngine := webrtc.SettingEngine{}
	if cfg.PortRange.Min > 0 && cfg.PortRange.Max > 0 {
		settingEngine.SetEphemeralUDPPortRange(cfg.PortRange.Min, cfg.PortRange.Max)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	t := &RoomTransport{
		cfg:    cfg,
		api:    api,
		logger: logger,
		events: make(chan func(), 128),
		done:   make(chan struct{}),
		ownID:  domain.PeerUnassigned,
		links:  make(map[domain.PeerID]*peerLink),
	}
	go t.dispatchLoop()
	return t
}

func (t *RoomTransport) SetListener(l ports.TransportListener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// dispatchLoop delivers listener events one at a time, in order.
func (t *RoomTransport) dispatchLoop() {
	for {
		select {
		case fn := <-t.events:
			fn()
		case <-t.done:
			return
		}
	}
}

func (t *RoomTransport) emit(event func(ports.TransportListener)) {
	t.mu.RLock()
	l := t.listener
	t.mu.RUnlock()
	if l == nil {
		return
	}
	select {
	case t.events <- func() { event(l) }:
	case <-t.done:
	}
}

func (t *RoomTransport) StartHost(name string) {
	go func() {
		sig, err := t.openSignaling()
		if err != nil {
			t.emit(func(l ports.TransportListener) { l.OnHostStartFailed(err) })
			return
		}

		t.mu.Lock()
		t.sig = sig
		t.hosting = true
		t.mu.Unlock()

		err = sig.send(signal.Message{
			Type:        signal.MsgHost,
			Room:        name,
			Token:       t.cfg.Token,
			DisplayName: t.cfg.DisplayName,
		})
		if err != nil {
			t.reset()
			t.emit(func(l ports.TransportListener) { l.OnHostStartFailed(err) })
		}
	}()
}

func (t *RoomTransport) Connect(name string) {
	go func() {
		sig, err := t.openSignaling()
		if err != nil {
			t.emit(func(l ports.TransportListener) { l.OnConnectFailed(err) })
			return
		}

		t.mu.Lock()
		t.sig = sig
		t.mu.Unlock()

		err = sig.send(signal.Message{
			Type:        signal.MsgJoin,
			Room:        name,
			Token:       t.cfg.Token,
			DisplayName: t.cfg.DisplayName,
		})
		if err != nil {
			t.reset()
			t.emit(func(l ports.TransportListener) { l.OnConnectFailed(err) })
		}
	}()
}

func (t *RoomTransport) StopHost() {
	wasHosting := t.reset()
	if wasHosting {
		t.emit(func(l ports.TransportListener) { l.OnHostStopped() })
	}
}

func (t *RoomTransport) Disconnect() {
	t.mu.RLock()
	connected := t.sig != nil && !t.hosting
	t.mu.RUnlock()

	t.reset()
	if connected {
		t.emit(func(l ports.TransportListener) { l.OnDisconnected() })
	}
}

func (t *RoomTransport) Dispose() {
	t.disposeOnce.Do(func() {
		close(t.done)
		t.reset()
	})
}

func (t *RoomTransport) Send(peer domain.PeerID, tag string, payload []byte, reliable bool) error {
	frame, err := wire.EncodeFrame(tag, payload)
	if err != nil {
		return err
	}

	t.mu.RLock()
	link := t.links[peer]
	t.mu.RUnlock()
	if link == nil {
		return domain.ErrPeerNotFound
	}
	return link.send(frame, reliable)
}

func (t *RoomTransport) OwnID() domain.PeerID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ownID
}

func (t *RoomTransport) PeerIDs() []domain.PeerID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]domain.PeerID, 0, len(t.links))
	for id := range t.links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *RoomTransport) RoomName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.room
}

func (t *RoomTransport) openSignaling() (*signalingClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return dialSignaling(ctx, t.cfg.SignalURL, t.handleSignalMessage, t.handleSignalClosed)
}

// reset tears down signaling and all mesh links. It reports whether
// this side was hosting.
func (t *RoomTransport) reset() bool {
	t.mu.Lock()
	sig := t.sig
	hosting := t.hosting
	links := t.links
	t.sig = nil
	t.hosting = false
	t.room = ""
	t.ownID = domain.PeerUnassigned
	t.links = make(map[domain.PeerID]*peerLink)
	t.mu.Unlock()

	if sig != nil {
		sig.send(signal.Message{Type: signal.MsgLeave})
		sig.close()
	}
	for _, link := range links {
		link.close()
	}
	return hosting && sig != nil
}

func (t *RoomTransport) handleSignalMessage(msg signal.Message) {
	switch msg.Type {
	case signal.MsgHostOK:
		t.mu.Lock()
		t.room = msg.Room
		t.ownID = msg.PeerID
		t.mu.Unlock()
		t.emit(func(l ports.TransportListener) { l.OnHostStarted() })
		t.emit(func(l ports.TransportListener) { l.OnIDReceived(msg.PeerID) })

	case signal.MsgHostError:
		t.reset()
		t.emit(func(l ports.TransportListener) { l.OnHostStartFailed(errors.New(msg.Error)) })

	case signal.MsgJoined:
		t.mu.Lock()
		t.room = msg.Room
		t.ownID = msg.PeerID
		t.mu.Unlock()

		// The newest member dials everyone already present.
		for _, peer := range msg.Peers {
			t.initiateLink(peer)
		}

		t.emit(func(l ports.TransportListener) { l.OnIDReceived(msg.PeerID) })
		// The join acknowledgement itself stands for the host, so only
		// other guests get announced here.
		for _, peer := range msg.Peers {
			if peer == domain.PeerHost {
				continue
			}
			p := peer
			t.emit(func(l ports.TransportListener) { l.OnPeerJoined(p) })
		}

	case signal.MsgJoinError:
		t.reset()
		t.emit(func(l ports.TransportListener) { l.OnConnectFailed(errors.New(msg.Error)) })

	case signal.MsgPeerJoined:
		t.emit(func(l ports.TransportListener) { l.OnPeerJoined(msg.PeerID) })

	case signal.MsgPeerLeft:
		t.mu.Lock()
		link := t.links[msg.PeerID]
		delete(t.links, msg.PeerID)
		t.mu.Unlock()
		if link != nil {
			link.close()
		}
		t.emit(func(l ports.TransportListener) { l.OnPeerLeft(msg.PeerID) })

	case signal.MsgRoomClosed:
		t.reset()
		t.emit(func(l ports.TransportListener) { l.OnRemoteHostClosed() })

	case signal.MsgSignal:
		t.handlePeerSignal(msg.Sender, msg.Payload)

	default:
		t.logger.Debugw("ignoring unknown signaling message", "type", msg.Type)
	}
}

func (t *RoomTransport) handleSignalClosed(err error) {
	t.mu.RLock()
	active := t.sig != nil
	t.mu.RUnlock()
	if !active {
		return
	}

	t.logger.Warnw("signaling connection lost", "error", err)
	t.reset()
	t.emit(func(l ports.TransportListener) { l.OnDisconnected() })
}

// newLink creates the peer connection for one mesh edge and registers
// it.
func (t *RoomTransport) newLink(peer domain.PeerID) (*peerLink, error) {
	pc, err := t.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   t.cfg.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	})
	if err != nil {
		return nil, err
	}

	link := &peerLink{id: peer, pc: pc}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		t.sendSignal(peer, signalPayload{Kind: kindCandidate, Candidate: &init})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		// Peer departures are announced over signaling; state changes
		// here are only informational.
		t.logger.Debugw("peer connection state changed", "peer", peer, "state", state.String())
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if link.adoptChannel(dc) {
			t.wireChannel(link, dc)
		} else {
			t.logger.Warnw("rejecting data channel with unknown label", "peer", peer, "label", dc.Label())
		}
	})

	t.mu.Lock()
	t.links[peer] = link
	t.mu.Unlock()
	return link, nil
}

// initiateLink dials one already-present peer: open both channels, then
// offer.
func (t *RoomTransport) initiateLink(peer domain.PeerID) {
	link, err := t.newLink(peer)
	if err != nil {
		t.logger.Errorw("failed to create peer connection", "peer", peer, "error", err)
		return
	}
	if err := link.openChannels(); err != nil {
		t.logger.Errorw("failed to open data channels", "peer", peer, "error", err)
		t.dropLink(peer)
		return
	}
	reliable, unreliable := link.channels()
	t.wireChannel(link, reliable)
	t.wireChannel(link, unreliable)

	offer, err := link.pc.CreateOffer(nil)
	if err != nil {
		t.logger.Errorw("failed to create offer", "peer", peer, "error", err)
		t.dropLink(peer)
		return
	}
	if err := link.pc.SetLocalDescription(offer); err != nil {
		t.logger.Errorw("failed to set local description", "peer", peer, "error", err)
		t.dropLink(peer)
		return
	}
	t.sendSignal(peer, signalPayload{Kind: kindOffer, SDP: &offer})
}

func (t *RoomTransport) dropLink(peer domain.PeerID) {
	t.mu.Lock()
	link := t.links[peer]
	delete(t.links, peer)
	t.mu.Unlock()
	if link != nil {
		link.close()
	}
}

// wireChannel routes inbound frames from one data channel to the
// listener. Frames that fail to parse are dropped.
func (t *RoomTransport) wireChannel(link *peerLink, dc *webrtc.DataChannel) {
	if dc == nil {
		return
	}
	dc.OnMessage(func(m webrtc.DataChannelMessage) {
		tag, payload, err := wire.DecodeFrame(m.Data)
		if err != nil {
			t.logger.Debugw("dropping unparseable frame", "peer", link.id, "error", err)
			return
		}
		t.emit(func(l ports.TransportListener) { l.OnPacketReceived(link.id, tag, payload) })
	})
}

func (t *RoomTransport) handlePeerSignal(sender domain.PeerID, raw json.RawMessage) {
	var p signalPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.logger.Debugw("dropping malformed signal payload", "sender", sender, "error", err)
		return
	}

	t.mu.RLock()
	link := t.links[sender]
	t.mu.RUnlock()

	switch p.Kind {
	case kindOffer:
		if p.SDP == nil {
			return
		}
		if link == nil {
			var err error
			link, err = t.newLink(sender)
			if err != nil {
				t.logger.Errorw("failed to create peer connection", "peer", sender, "error", err)
				return
			}
		}
		if err := link.pc.SetRemoteDescription(*p.SDP); err != nil {
			t.logger.Errorw("failed to apply remote offer", "peer", sender, "error", err)
			return
		}
		answer, err := link.pc.CreateAnswer(nil)
		if err != nil {
			t.logger.Errorw("failed to create answer", "peer", sender, "error", err)
			return
		}
		if err := link.pc.SetLocalDescription(answer); err != nil {
			t.logger.Errorw("failed to set local description", "peer", sender, "error", err)
			return
		}
		t.sendSignal(sender, signalPayload{Kind: kindAnswer, SDP: &answer})

	case kindAnswer:
		if link == nil || p.SDP == nil {
			return
		}
		if err := link.pc.SetRemoteDescription(*p.SDP); err != nil {
			t.logger.Errorw("failed to apply remote answer", "peer", sender, "error", err)
		}

	case kindCandidate:
		if link == nil || p.Candidate == nil {
			return
		}
		if err := link.pc.AddICECandidate(*p.Candidate); err != nil {
			t.logger.Debugw("failed to add ICE candidate", "peer", sender, "error", err)
		}

	default:
		t.logger.Debugw("ignoring unknown signal kind", "sender", sender, "kind", p.Kind)
	}
}

func (t *RoomTransport) sendSignal(target domain.PeerID, payload signalPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		t.logger.Errorw("failed to marshal signal payload", "target", target, "error", err)
		return
	}

	t.mu.RLock()
	sig := t.sig
	t.mu.RUnlock()
	if sig == nil {
		return
	}
	if err := sig.send(signal.Message{Type: signal.MsgSignal, Target: target, Payload: raw}); err != nil {
		t.logger.Warnw("failed to relay signal", "target", target, "error", err)
	}
}
