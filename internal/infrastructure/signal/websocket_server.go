package signal

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
	"parlor/internal/core/services"
	"parlor/internal/infrastructure/monitoring"
	"parlor/pkg/logger"
	"parlor/pkg/tracing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const defaultWriteTimeout = 10 * time.Second

// session is one connected websocket client. A session belongs to at
// most one room at a time.
type session struct {
	id   string
	conn *websocket.Conn

	// Membership is read by this session's handler goroutine and
	// cleared by the host's goroutine when the host closes the room, so
	// it needs its own lock.
	mu          sync.Mutex
	room        string
	peerID      domain.PeerID
	displayName string

	writeMu sync.Mutex
}

func (s *session) write(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *session) membership() (room string, peerID domain.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room, s.peerID
}

func (s *session) setMembership(room string, peerID domain.PeerID, displayName string) {
	s.mu.Lock()
	s.room = room
	s.peerID = peerID
	s.displayName = displayName
	s.mu.Unlock()
}

// clearMembership detaches the session and reports what it was a member
// of, so exactly one caller acts on the departure.
func (s *session) clearMembership() (room string, peerID domain.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, peerID = s.room, s.peerID
	s.room = ""
	s.peerID = domain.PeerUnassigned
	return room, peerID
}

// roomSessions tracks the live connections of one room's members.
type roomSessions struct {
	openedAt time.Time
	members  map[domain.PeerID]*session
}

// WebSocketServer is the signaling endpoint: it keeps the room directory
// in sync with connected sessions, relays opaque SDP/ICE payloads
// between members, and announces membership changes.
type WebSocketServer struct {
	directory ports.RoomDirectory
	auth      services.AuthService
	metrics   *monitoring.PrometheusCollector

	requireAuth    bool
	maxMessageSize int64
	pingInterval   time.Duration
	pongTimeout    time.Duration

	rooms map[string]*roomSessions
	mu    sync.RWMutex

	connLimiters map[string]*rate.Limiter
	limiterMu    sync.Mutex
	connRate     rate.Limit

	logger *zap.SugaredLogger
}

type Options struct {
	RequireAuth          bool
	ConnectionsPerMinute int // per client IP; 0 disables limiting
	MaxMessageSizeBytes  int64
	PingInterval         time.Duration
	PongTimeout          time.Duration
}

func NewWebSocketServer(
	directory ports.RoomDirectory,
	auth services.AuthService,
	metrics *monitoring.PrometheusCollector,
	opts Options,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}

	s := &WebSocketServer{
		directory:      directory,
		auth:           auth,
		metrics:        metrics,
		requireAuth:    opts.RequireAuth,
		maxMessageSize: opts.MaxMessageSizeBytes,
		pingInterval:   opts.PingInterval,
		pongTimeout:    opts.PongTimeout,
		rooms:          make(map[string]*roomSessions),
		logger:         logger,
	}
	if opts.ConnectionsPerMinute > 0 {
		s.connLimiters = make(map[string]*rate.Limiter)
		s.connRate = rate.Limit(float64(opts.ConnectionsPerMinute) / 60.0)
	}
	return s
}

func (s *WebSocketServer) allowConnection(ip string) bool {
	if s.connLimiters == nil {
		return true
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	limiter, ok := s.connLimiters[ip]
	if !ok {
		limiter = rate.NewLimiter(s.connRate, 5)
		s.connLimiters[ip] = limiter
	}
	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.allowConnection(clientIP(r)) {
		http.Error(w, "connection rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		peerID: domain.PeerUnassigned,
	}
	s.metrics.RecordSessionAccepted()
	s.logger.Infow("signaling session accepted", "session", sess.id, "remote", r.RemoteAddr)

	if s.maxMessageSize > 0 {
		conn.SetReadLimit(s.maxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan Message, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			s.dispatch(logger.ContextWithSession(r.Context(), sess.id), sess, msg)
		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnw("session read failed", "session", sess.id, "error", err)
			}
			s.teardown(sess)
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteTimeout)); err != nil {
				s.teardown(sess)
				return
			}
		}
	}
}

func (s *WebSocketServer) dispatch(ctx context.Context, sess *session, msg Message) {
	ctx, span := tracing.TraceSignalMessage(ctx, msg.Type, msg.Room)
	defer span.End()

	switch msg.Type {
	case MsgHost:
		s.handleHost(ctx, sess, msg)
	case MsgJoin:
		s.handleJoin(ctx, sess, msg)
	case MsgLeave:
		s.leaveRoom(ctx, sess)
	case MsgSignal:
		s.handleSignal(sess, msg)
	default:
		s.logger.Debugw("ignoring unknown message type", "session", sess.id, "type", msg.Type)
	}
}

// admit validates the optional room token for a host or join request.
func (s *WebSocketServer) admit(msg Message) (displayName string, err error) {
	displayName = msg.DisplayName
	if !s.requireAuth {
		return displayName, nil
	}

	claims, err := s.auth.ValidateToken(msg.Token)
	if err != nil {
		return "", err
	}
	if claims.Room != msg.Room {
		return "", services.ErrInvalidToken
	}
	// The token's display name wins over whatever the client sent.
	return claims.DisplayName, nil
}

func (s *WebSocketServer) handleHost(ctx context.Context, sess *session, msg Message) {
	displayName, err := s.admit(msg)
	if err != nil {
		sess.write(Message{Type: MsgHostError, Room: msg.Room, Error: err.Error()})
		return
	}

	if room, _ := sess.membership(); room != "" {
		sess.write(Message{Type: MsgHostError, Room: msg.Room, Error: "session already in a room"})
		return
	}

	_, err = s.directory.CreateRoom(logger.ContextWithRoom(ctx, msg.Room), msg.Room, domain.Member{
		DisplayName: displayName,
		SessionID:   sess.id,
	})
	if err != nil {
		sess.write(Message{Type: MsgHostError, Room: msg.Room, Error: err.Error()})
		return
	}

	sess.setMembership(msg.Room, domain.PeerHost, displayName)

	s.mu.Lock()
	s.rooms[msg.Room] = &roomSessions{
		openedAt: time.Now(),
		members:  map[domain.PeerID]*session{domain.PeerHost: sess},
	}
	s.mu.Unlock()

	s.metrics.RecordRoomCreated(msg.Room)
	sess.write(Message{Type: MsgHostOK, Room: msg.Room, PeerID: domain.PeerHost})
}

func (s *WebSocketServer) handleJoin(ctx context.Context, sess *session, msg Message) {
	displayName, err := s.admit(msg)
	if err != nil {
		sess.write(Message{Type: MsgJoinError, Room: msg.Room, Error: err.Error()})
		return
	}

	if room, _ := sess.membership(); room != "" {
		sess.write(Message{Type: MsgJoinError, Room: msg.Room, Error: "session already in a room"})
		return
	}

	id, present, err := s.directory.JoinRoom(logger.ContextWithRoom(ctx, msg.Room), msg.Room, domain.Member{
		DisplayName: displayName,
		SessionID:   sess.id,
	})
	if err != nil {
		sess.write(Message{Type: MsgJoinError, Room: msg.Room, Error: err.Error()})
		return
	}

	sess.setMembership(msg.Room, id, displayName)

	s.mu.Lock()
	room, ok := s.rooms[msg.Room]
	if ok {
		room.members[id] = sess
	}
	s.mu.Unlock()
	if !ok {
		// Directory had the room but no live host connection; treat as
		// closed under us.
		sess.write(Message{Type: MsgJoinError, Room: msg.Room, Error: domain.ErrRoomClosed.Error()})
		sess.clearMembership()
		return
	}

	s.metrics.RecordMemberJoined(msg.Room)
	sess.write(Message{Type: MsgJoined, Room: msg.Room, PeerID: id, Peers: present})
	s.broadcast(msg.Room, Message{Type: MsgPeerJoined, Room: msg.Room, PeerID: id}, id)
	s.logger.Infow("member joined room", "room", msg.Room, "peer", id, "session", sess.id)
}

func (s *WebSocketServer) handleSignal(sess *session, msg Message) {
	roomName, senderID := sess.membership()
	if roomName == "" {
		return
	}

	s.mu.RLock()
	room, ok := s.rooms[roomName]
	var target *session
	if ok {
		target = room.members[msg.Target]
	}
	s.mu.RUnlock()

	if target == nil {
		s.logger.Debugw("dropping signal for unknown target", "room", roomName, "target", msg.Target)
		return
	}

	s.metrics.RecordSignalRelayed(len(msg.Payload))
	target.write(Message{
		Type:    MsgSignal,
		Room:    roomName,
		Sender:  senderID,
		Payload: msg.Payload,
	})
}

// leaveRoom detaches a session from its room. A departing host takes the
// room with it; guests just notify the remainder.
func (s *WebSocketServer) leaveRoom(ctx context.Context, sess *session) {
	roomName, peerID := sess.clearMembership()
	if roomName == "" {
		return
	}

	if peerID == domain.PeerHost {
		s.closeRoom(ctx, roomName)
		return
	}

	s.mu.Lock()
	if room, ok := s.rooms[roomName]; ok {
		delete(room.members, peerID)
	}
	s.mu.Unlock()

	if err := s.directory.LeaveRoom(logger.ContextWithRoom(ctx, roomName), roomName, peerID); err != nil {
		s.logger.Warnw("failed to record leave in directory", "room", roomName, "peer", peerID, "error", err)
	}
	s.metrics.RecordMemberLeft(roomName)
	s.broadcast(roomName, Message{Type: MsgPeerLeft, Room: roomName, PeerID: peerID}, peerID)
	s.logger.Infow("member left room", "room", roomName, "peer", peerID)
}

func (s *WebSocketServer) closeRoom(ctx context.Context, roomName string) {
	s.mu.Lock()
	room, ok := s.rooms[roomName]
	delete(s.rooms, roomName)
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.directory.CloseRoom(logger.ContextWithRoom(ctx, roomName), roomName); err != nil {
		s.logger.Warnw("failed to close room in directory", "room", roomName, "error", err)
	}

	for id, member := range room.members {
		if id == domain.PeerHost {
			continue
		}
		member.write(Message{Type: MsgRoomClosed, Room: roomName})
		member.clearMembership()
	}

	s.metrics.RecordRoomClosed(roomName, room.openedAt, len(room.members))
	s.logger.Infow("room closed", "room", roomName, "members", len(room.members))
}

// broadcast sends a message to every member of a room except one.
func (s *WebSocketServer) broadcast(roomName string, msg Message, except domain.PeerID) {
	s.mu.RLock()
	room, ok := s.rooms[roomName]
	if !ok {
		s.mu.RUnlock()
		return
	}
	members := make([]*session, 0, len(room.members))
	for id, member := range room.members {
		if id == except {
			continue
		}
		members = append(members, member)
	}
	s.mu.RUnlock()

	for _, member := range members {
		if err := member.write(msg); err != nil {
			s.logger.Debugw("broadcast write failed", "room", roomName, "session", member.id, "error", err)
		}
	}
}

// teardown runs on read failure or ping timeout. The request context may
// already be dead by then, so cleanup uses its own.
func (s *WebSocketServer) teardown(sess *session) {
	s.leaveRoom(logger.ContextWithSession(context.Background(), sess.id), sess)
	s.logger.Infow("signaling session ended", "session", sess.id)
}
