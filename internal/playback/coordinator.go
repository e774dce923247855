// Package playback coordinates shared listening rooms: it applies
// validated commands to room state, enforces host authority and the
// buffering barrier, and fans resulting events back out.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/auxroom/auxroom/internal/domain"
	"github.com/auxroom/auxroom/internal/infrastructure/metrics"
	"github.com/auxroom/auxroom/internal/protocol"
	"github.com/auxroom/auxroom/internal/session"
	"go.uber.org/zap"
)

// Sender delivers encoded messages to live connections. Implementations
// must never block on a slow client.
type Sender interface {
	Send(clientID string, msg *protocol.Message)
	CloseClient(clientID string)
}

type Config struct {
	BufferTimeout time.Duration
	MaxMembers    int
	MaxPending    int
	CommandBuffer int
}

// Internal command kinds, delivered through the same per-room channel
// as client messages so the single-writer discipline holds.
const (
	cmdDisconnect     = "internal.disconnect"
	cmdGraceExpired   = "internal.grace_expired"
	cmdBarrierTimeout = "internal.barrier_timeout"
	cmdClientGone     = "internal.client_gone"
)

type command struct {
	clientID string // source connection, "" for internal events
	userID   string // resolved member identity, "" before admission
	msgType  string
	payload  any
}

type binding struct {
	roomCode string
	userID   string // "" while a join request is still pending
}

// Coordinator owns every live room. Each room runs one goroutine that
// serializes all of its mutations; rooms are fully independent.
type Coordinator struct {
	cfg      Config
	repo     domain.RoomRepository
	sessions *session.Manager
	sender   Sender
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger

	mu       sync.RWMutex
	actors   map[string]*roomActor
	bindings map[string]binding
}

func NewCoordinator(
	cfg Config,
	repo domain.RoomRepository,
	sessions *session.Manager,
	sender Sender,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) *Coordinator {
	co := &Coordinator{
		cfg:      cfg,
		repo:     repo,
		sessions: sessions,
		sender:   sender,
		metrics:  m,
		log:      logger,
		actors:   make(map[string]*roomActor),
		bindings: make(map[string]binding),
	}
	sessions.SetExpiryHandler(co.handleGraceExpiry)
	return co
}

// CreateRoom opens a room with the connected creator as host and
// answers ROOM_CREATED on their connection.
func (co *Coordinator) CreateRoom(ctx context.Context, clientID, username string) error {
	host, err := domain.NewUser(username)
	if err != nil {
		co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidPayload, err.Error()))
		return err
	}

	room, actor, err := co.openRoom(ctx, host)
	if err != nil {
		co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidPayload, "could not create room"))
		return err
	}

	token, err := co.sessions.Issue(room.Code, host.ID)
	if err != nil {
		co.teardownRoom(ctx, actor)
		co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidPayload, "could not create session"))
		return err
	}

	actor.clients[host.ID] = clientID
	co.bind(clientID, room.Code, host.ID)

	co.sender.Send(clientID, &protocol.Message{Type: protocol.TypeRoomCreated, Payload: protocol.RoomCreated{
		RoomCode:     room.Code,
		UserID:       host.ID,
		SessionToken: token,
		State:        protocol.NewRoomState(room),
	}})

	co.log.Infow("room created", "room", room.Code, "host", host.ID)
	return nil
}

// CreatedRoom is the REST reply for out-of-band room creation.
type CreatedRoom struct {
	RoomCode     string
	UserID       string
	SessionToken string
	CreatedAt    time.Time
}

// CreateRoomDetached opens a room whose host has not connected yet; the
// host attaches afterwards by sending RECONNECT with the returned
// token. The usual disconnect grace period applies from now.
func (co *Coordinator) CreateRoomDetached(ctx context.Context, host *domain.User) (*CreatedRoom, error) {
	host.Connected = false

	room, actor, err := co.openRoom(ctx, host)
	if err != nil {
		return nil, err
	}

	token, err := co.sessions.Issue(room.Code, host.ID)
	if err != nil {
		co.teardownRoom(ctx, actor)
		return nil, err
	}
	co.sessions.MarkDisconnected(room.Code, host.ID)

	co.log.Infow("room created detached", "room", room.Code, "host", host.ID)
	return &CreatedRoom{
		RoomCode:     room.Code,
		UserID:       host.ID,
		SessionToken: token,
		CreatedAt:    room.CreatedAt,
	}, nil
}

func (co *Coordinator) openRoom(ctx context.Context, host *domain.User) (*domain.Room, *roomActor, error) {
	room, err := domain.NewRoom(host, co.cfg.MaxMembers, co.cfg.MaxPending)
	if err != nil {
		return nil, nil, err
	}
	if err := co.repo.Create(ctx, room); err != nil {
		return nil, nil, err
	}

	actor := newRoomActor(co, room)

	co.mu.Lock()
	co.actors[room.Code] = actor
	co.mu.Unlock()

	go actor.run()
	co.metrics.ActiveRooms.Inc()
	return room, actor, nil
}

func (co *Coordinator) teardownRoom(ctx context.Context, actor *roomActor) {
	co.mu.Lock()
	delete(co.actors, actor.room.Code)
	co.mu.Unlock()

	actor.stop()
	_, _ = co.repo.Delete(ctx, actor.room)
	co.metrics.ActiveRooms.Dec()
}

// HandleMessage routes one decoded client message. Unknown payloads
// (nil) are dropped silently for forward compatibility.
func (co *Coordinator) HandleMessage(clientID, msgType string, payload any) {
	if payload == nil {
		co.log.Debugw("ignoring unknown message type", "type", msgType, "client", clientID)
		return
	}

	switch msgType {
	case protocol.TypeCreateRoom:
		p, ok := payload.(*protocol.CreateRoom)
		if !ok {
			co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidPayload, "malformed payload"))
			return
		}
		co.mu.RLock()
		_, bound := co.bindings[clientID]
		co.mu.RUnlock()
		if bound {
			co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidPayload, "connection is already in a room"))
			return
		}
		_ = co.CreateRoom(context.Background(), clientID, p.Username)

	case protocol.TypeJoinRequest:
		p, ok := payload.(*protocol.JoinRequest)
		if !ok {
			co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidPayload, "malformed payload"))
			return
		}
		co.mu.RLock()
		_, bound := co.bindings[clientID]
		co.mu.RUnlock()
		if bound {
			// The connection already belongs to a room, as a member or a
			// pending joiner; overwriting its binding would orphan that
			// state when the socket drops.
			co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidPayload, "connection is already in a room"))
			return
		}
		actor := co.actor(p.RoomCode)
		if actor == nil {
			co.sender.Send(clientID, protocol.NewError(protocol.CodeRoomNotFound, "no such room"))
			return
		}
		co.bind(clientID, p.RoomCode, "")
		actor.post(co, command{clientID: clientID, msgType: msgType, payload: p})

	case protocol.TypeReconnect:
		p, ok := payload.(*protocol.Reconnect)
		if !ok {
			co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidPayload, "malformed payload"))
			return
		}
		sess, err := co.sessions.Resolve(p.SessionToken)
		if err != nil {
			co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidSession, "invalid session token"))
			co.sender.CloseClient(clientID)
			return
		}
		actor := co.actor(sess.RoomCode)
		if actor == nil {
			// Resolve bound the token to this connection; the room is gone
			// so the session is dead weight either way.
			co.sessions.Revoke(sess.RoomCode, sess.UserID)
			co.sender.Send(clientID, protocol.NewError(protocol.CodeRoomNotFound, "room is gone"))
			co.sender.CloseClient(clientID)
			return
		}
		if !actor.post(co, command{clientID: clientID, userID: sess.UserID, msgType: msgType, payload: p}) {
			// The room never saw the reconnect; release the binding and
			// re-arm the grace timer so a retry can succeed.
			co.sessions.MarkDisconnected(sess.RoomCode, sess.UserID)
		}

	default:
		co.mu.RLock()
		b, bound := co.bindings[clientID]
		co.mu.RUnlock()
		if !bound || b.userID == "" {
			co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidSession, "not in a room"))
			return
		}
		actor := co.actor(b.roomCode)
		if actor == nil {
			co.sender.Send(clientID, protocol.NewError(protocol.CodeRoomNotFound, "room is gone"))
			return
		}
		actor.post(co, command{clientID: clientID, userID: b.userID, msgType: msgType, payload: payload})
	}
}

// ClientClosed reacts to a dropped connection: members go through the
// disconnect/grace flow, pending joiners are simply forgotten.
func (co *Coordinator) ClientClosed(clientID string) {
	co.mu.Lock()
	b, bound := co.bindings[clientID]
	delete(co.bindings, clientID)
	co.mu.Unlock()
	if !bound {
		return
	}

	actor := co.actor(b.roomCode)
	if actor == nil {
		return
	}
	if b.userID == "" {
		actor.post(co, command{clientID: clientID, msgType: cmdClientGone})
		return
	}
	actor.post(co, command{userID: b.userID, msgType: cmdDisconnect})
}

func (co *Coordinator) handleGraceExpiry(roomCode, userID string) {
	co.metrics.SessionsExpired.Inc()
	actor := co.actor(roomCode)
	if actor == nil {
		return
	}
	actor.post(co, command{userID: userID, msgType: cmdGraceExpired})
}

func (co *Coordinator) actor(roomCode string) *roomActor {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.actors[roomCode]
}

func (co *Coordinator) bind(clientID, roomCode, userID string) {
	co.mu.Lock()
	co.bindings[clientID] = binding{roomCode: roomCode, userID: userID}
	co.mu.Unlock()
}

func (co *Coordinator) unbind(clientID string) {
	co.mu.Lock()
	delete(co.bindings, clientID)
	co.mu.Unlock()
}
