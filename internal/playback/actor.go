package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/auxroom/auxroom/internal/domain"
	"github.com/auxroom/auxroom/internal/protocol"
	"github.com/google/uuid"
)

// roomActor is the single writer for one room. Every mutation — client
// command, disconnect, grace expiry, barrier timeout — arrives through
// the cmds channel and is applied by the run goroutine.
type roomActor struct {
	co   *Coordinator
	room *domain.Room

	cmds     chan command
	quit     chan struct{}
	quitOnce sync.Once

	clients map[string]string // userID -> clientID, connected members only
	pending map[string]string // join requestID -> clientID

	barrier    *barrier
	barrierSeq uint64
}

func newRoomActor(co *Coordinator, room *domain.Room) *roomActor {
	return &roomActor{
		co:      co,
		room:    room,
		cmds:    make(chan command, co.cfg.CommandBuffer),
		quit:    make(chan struct{}),
		clients: make(map[string]string),
		pending: make(map[string]string),
	}
}

func (a *roomActor) run() {
	for {
		select {
		case <-a.quit:
			return
		case cmd := <-a.cmds:
			a.apply(cmd)
		}
	}
}

func (a *roomActor) stop() {
	a.quitOnce.Do(func() {
		close(a.quit)
	})
}

// post enqueues without blocking; a full queue rejects the command so
// one flooded room cannot stall its callers. Returns whether the
// command was accepted.
func (a *roomActor) post(co *Coordinator, cmd command) bool {
	select {
	case a.cmds <- cmd:
		return true
	default:
		co.metrics.CommandsRejected.Inc()
		if cmd.clientID != "" {
			co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeTooManyRequests, "room is busy, try again"))
		}
		return false
	}
}

func (a *roomActor) apply(cmd command) {
	switch cmd.msgType {
	case protocol.TypeJoinRequest:
		if p, ok := cmd.payload.(*protocol.JoinRequest); ok {
			a.handleJoinRequest(cmd, p)
		}
	case protocol.TypeJoinApproved:
		if p, ok := cmd.payload.(*protocol.JoinApproved); ok {
			a.handleJoinApproved(cmd, p)
		}
	case protocol.TypeJoinRejected:
		if p, ok := cmd.payload.(*protocol.JoinRejected); ok {
			a.handleJoinRejected(cmd, p)
		}
	case protocol.TypePlaybackAction:
		if p, ok := cmd.payload.(*protocol.PlaybackAction); ok {
			a.handlePlaybackAction(cmd, p)
		}
	case protocol.TypeBufferComplete:
		if p, ok := cmd.payload.(*protocol.BufferComplete); ok {
			a.handleBufferComplete(cmd, p)
		}
	case protocol.TypeReconnect:
		a.handleReconnect(cmd)
	case protocol.TypeSuggestTrack:
		if p, ok := cmd.payload.(*protocol.SuggestTrack); ok {
			a.handleSuggestTrack(cmd, p)
		}
	case protocol.TypeApproveSuggestion:
		if p, ok := cmd.payload.(*protocol.ApproveSuggestion); ok {
			a.handleResolveSuggestion(cmd, p.SuggestionID, true, "")
		}
	case protocol.TypeRejectSuggestion:
		if p, ok := cmd.payload.(*protocol.RejectSuggestion); ok {
			a.handleResolveSuggestion(cmd, p.SuggestionID, false, p.Reason)
		}
	case protocol.TypeKickUser:
		if p, ok := cmd.payload.(*protocol.KickUser); ok {
			a.handleKickUser(cmd, p)
		}
	case protocol.TypeTransferHost:
		if p, ok := cmd.payload.(*protocol.TransferHost); ok {
			a.handleTransferHost(cmd, p)
		}
	case cmdDisconnect:
		a.handleDisconnect(cmd.userID)
	case cmdGraceExpired:
		a.handleGraceExpired(cmd.userID)
	case cmdBarrierTimeout:
		if p, ok := cmd.payload.(barrierTimeout); ok {
			a.handleBarrierTimeout(p)
		}
	case cmdClientGone:
		a.handlePendingGone(cmd.clientID)
	default:
		// Registered but not client-applicable (server-emitted kinds).
		if cmd.clientID != "" {
			a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "unexpected message type"))
		}
	}
}

// ----- helpers -----

func (a *roomActor) requireHost(cmd command) bool {
	if a.room.IsHost(cmd.userID) {
		return true
	}
	if cmd.clientID != "" {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeNotHost, "only the host may do that"))
	}
	return false
}

func (a *roomActor) sendUser(userID string, msg *protocol.Message) {
	if clientID, ok := a.clients[userID]; ok {
		a.co.sender.Send(clientID, msg)
	}
}

func (a *roomActor) broadcast(msg *protocol.Message, except ...string) {
	skip := make(map[string]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}
	for userID, clientID := range a.clients {
		if _, ok := skip[userID]; ok {
			continue
		}
		a.co.sender.Send(clientID, msg)
	}
}

// ----- join flow -----

func (a *roomActor) handleJoinRequest(cmd command, p *protocol.JoinRequest) {
	if _, err := domain.NewUser(p.Username); err != nil {
		a.co.sender.Send(cmd.clientID, &protocol.Message{Type: protocol.TypeJoinRejected,
			Payload: protocol.JoinRejected{Reason: err.Error()}})
		a.dropRequester(cmd.clientID)
		return
	}
	if len(a.room.Users) >= a.room.MaxMembers {
		a.co.sender.Send(cmd.clientID, &protocol.Message{Type: protocol.TypeJoinRejected,
			Payload: protocol.JoinRejected{Reason: "room is full"}})
		a.dropRequester(cmd.clientID)
		return
	}

	req := &domain.PendingJoin{
		RequestID: uuid.NewString(),
		Username:  p.Username,
		CreatedAt: time.Now(),
	}
	if err := a.room.AddPendingJoin(req); err != nil {
		a.co.sender.Send(cmd.clientID, &protocol.Message{Type: protocol.TypeJoinRejected,
			Payload: protocol.JoinRejected{Reason: "too many pending requests"}})
		a.dropRequester(cmd.clientID)
		return
	}
	a.pending[req.RequestID] = cmd.clientID

	a.sendUser(a.room.HostID, &protocol.Message{Type: protocol.TypeJoinRequest,
		Payload: protocol.JoinRequest{RequestID: req.RequestID, Username: req.Username}})
}

func (a *roomActor) handleJoinApproved(cmd command, p *protocol.JoinApproved) {
	if !a.requireHost(cmd) {
		return
	}

	req, ok := a.room.TakePendingJoin(p.RequestID)
	if !ok {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeUserNotFound, "no such join request"))
		return
	}
	clientID, ok := a.pending[p.RequestID]
	delete(a.pending, p.RequestID)
	if !ok {
		// Requester went away while waiting for approval.
		return
	}

	user, err := domain.NewUser(req.Username)
	if err != nil {
		a.co.sender.Send(clientID, &protocol.Message{Type: protocol.TypeJoinRejected,
			Payload: protocol.JoinRejected{RequestID: p.RequestID, Reason: err.Error()}})
		a.dropRequester(clientID)
		return
	}
	if err := a.room.AddUser(user); err != nil {
		a.co.sender.Send(clientID, &protocol.Message{Type: protocol.TypeJoinRejected,
			Payload: protocol.JoinRejected{RequestID: p.RequestID, Reason: "room is full"}})
		a.dropRequester(clientID)
		return
	}

	token, err := a.co.sessions.Issue(a.room.Code, user.ID)
	if err != nil {
		_, _ = a.room.RemoveUser(user.ID)
		a.co.sender.Send(clientID, protocol.NewError(protocol.CodeInvalidSession, "could not create session"))
		a.dropRequester(clientID)
		return
	}

	a.clients[user.ID] = clientID
	a.co.bind(clientID, a.room.Code, user.ID)

	state := protocol.NewRoomState(a.room)
	a.co.sender.Send(clientID, &protocol.Message{Type: protocol.TypeJoinApproved, Payload: protocol.JoinApproved{
		RequestID:    p.RequestID,
		UserID:       user.ID,
		SessionToken: token,
		State:        &state,
	}})
	a.broadcast(protocol.NewUserJoined(a.room, user), user.ID)

	a.co.log.Infow("user joined", "room", a.room.Code, "user", user.ID, "username", user.Username)
}

func (a *roomActor) handleJoinRejected(cmd command, p *protocol.JoinRejected) {
	if !a.requireHost(cmd) {
		return
	}

	if _, ok := a.room.TakePendingJoin(p.RequestID); !ok {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeUserNotFound, "no such join request"))
		return
	}
	clientID, ok := a.pending[p.RequestID]
	delete(a.pending, p.RequestID)
	if !ok {
		return
	}

	a.co.sender.Send(clientID, &protocol.Message{Type: protocol.TypeJoinRejected,
		Payload: protocol.JoinRejected{RequestID: p.RequestID, Reason: p.Reason}})
	a.dropRequester(clientID)
}

func (a *roomActor) handlePendingGone(clientID string) {
	for requestID, cid := range a.pending {
		if cid == clientID {
			delete(a.pending, requestID)
			a.room.TakePendingJoin(requestID)
		}
	}
}

func (a *roomActor) dropRequester(clientID string) {
	a.co.unbind(clientID)
	a.co.sender.CloseClient(clientID)
}

// ----- playback -----

func (a *roomActor) handlePlaybackAction(cmd command, p *protocol.PlaybackAction) {
	if !a.requireHost(cmd) {
		return
	}

	room := a.room
	now := time.Now()
	armBarrier := false

	switch p.Action {
	case protocol.ActionPlay:
		if p.Track != nil {
			track := *p.Track
			room.CurrentTrack = &track
			room.IsPlaying = false
			room.Position = 0
			armBarrier = true
		} else {
			if room.CurrentTrack == nil {
				a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "no track to play"))
				return
			}
			room.IsPlaying = true
		}
	case protocol.ActionPause:
		// A pause while the buffer barrier is armed wins: late
		// BUFFER_COMPLETEs or the timeout must not restart playback.
		a.cancelBarrier()
		room.Position = room.PositionAt(now)
		room.IsPlaying = false
	case protocol.ActionResume:
		if room.CurrentTrack == nil {
			a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "no track to resume"))
			return
		}
		room.IsPlaying = true
	case protocol.ActionSeek:
		// SEEK is the one verb where position 0 is a real target, not
		// the unset sentinel.
		room.Position = p.Position
	case protocol.ActionVolume:
		if p.Volume < 0 || p.Volume > 1 {
			a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "volume out of range"))
			return
		}
		room.Volume = p.Volume
	case protocol.ActionQueueAdd:
		if p.Track == nil {
			a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "queue add needs a track"))
			return
		}
		room.Queue = append(room.Queue, *p.Track)
	case protocol.ActionQueueNext:
		head, ok := room.PopQueue()
		if !ok {
			a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "queue is empty"))
			return
		}
		room.CurrentTrack = &head
		room.IsPlaying = false
		room.Position = 0
		armBarrier = true
	default:
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "unknown playback action"))
		return
	}

	room.LastUpdate = now
	a.broadcast(&protocol.Message{Type: protocol.TypePlaybackAction, Payload: p})

	if armBarrier {
		a.armBarrier()
	}
}

// armBarrier gates the freshly selected track behind readiness from
// every connected listener except the host.
func (a *roomActor) armBarrier() {
	a.cancelBarrier()

	track := a.room.CurrentTrack
	if track == nil {
		return
	}

	waiting := a.room.ConnectedUserIDs(a.room.HostID)
	if len(waiting) == 0 {
		a.startPlayback()
		return
	}

	a.barrierSeq++
	a.barrier = newBarrier(track.ID, a.barrierSeq, waiting)

	a.broadcast(protocol.NewBufferWait(track.ID, a.barrier.remaining()))

	seq := a.barrierSeq
	a.barrier.timer = time.AfterFunc(a.co.cfg.BufferTimeout, func() {
		a.post(a.co, command{msgType: cmdBarrierTimeout, payload: barrierTimeout{seq: seq}})
	})
}

func (a *roomActor) cancelBarrier() {
	if a.barrier != nil {
		a.barrier.cancel()
		a.barrier = nil
	}
}

func (a *roomActor) handleBufferComplete(cmd command, p *protocol.BufferComplete) {
	if a.barrier == nil || a.barrier.trackID != p.TrackID {
		return
	}
	a.barrier.ack(cmd.userID)
	if a.barrier.done() {
		a.startPlayback()
	}
}

func (a *roomActor) handleBarrierTimeout(p barrierTimeout) {
	if a.barrier == nil || a.barrier.seq != p.seq {
		return
	}
	laggards := a.barrier.remaining()
	a.co.metrics.BarrierTimeouts.Inc()
	a.co.log.Warnw("buffer barrier timed out, starting without laggards",
		"room", a.room.Code, "track", a.barrier.trackID, "desynced", laggards)
	a.startPlayback()
}

// barrierDrop stops waiting on a user who left or disconnected.
func (a *roomActor) barrierDrop(userID string) {
	if a.barrier == nil {
		return
	}
	a.barrier.ack(userID)
	if a.barrier.done() {
		a.startPlayback()
	}
}

func (a *roomActor) startPlayback() {
	a.cancelBarrier()
	a.room.IsPlaying = true
	a.room.Position = 0
	a.room.LastUpdate = time.Now()
	a.broadcast(protocol.NewSyncState(a.room))
}

// ----- session continuity -----

func (a *roomActor) handleReconnect(cmd command) {
	user := a.room.FindUser(cmd.userID)
	if user == nil {
		// Token outlived room membership (kicked or already left).
		a.co.sessions.Revoke(a.room.Code, cmd.userID)
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidSession, "no longer a member"))
		a.dropRequester(cmd.clientID)
		return
	}

	user.Connected = true
	a.clients[cmd.userID] = cmd.clientID
	a.co.bind(cmd.clientID, a.room.Code, cmd.userID)

	a.co.sender.Send(cmd.clientID, &protocol.Message{Type: protocol.TypeReconnected, Payload: protocol.Reconnected{
		UserID: cmd.userID,
		State:  protocol.NewRoomState(a.room),
	}})
	a.broadcast(&protocol.Message{Type: protocol.TypeUserReconnected,
		Payload: protocol.UserReconnected{UserID: user.ID, Username: user.Username}}, user.ID)

	a.co.log.Infow("user reconnected", "room", a.room.Code, "user", user.ID)
}

func (a *roomActor) handleDisconnect(userID string) {
	user := a.room.FindUser(userID)
	if user == nil || !user.Connected {
		return
	}

	user.Connected = false
	delete(a.clients, userID)
	a.co.sessions.MarkDisconnected(a.room.Code, userID)

	a.broadcast(&protocol.Message{Type: protocol.TypeUserDisconnected,
		Payload: protocol.UserDisconnected{UserID: user.ID, Username: user.Username}})

	// Authority may not sit with a disconnected user: promote before any
	// further playback-mutating command can arrive.
	if a.room.HostID == userID {
		if newHost := a.room.PromoteSuccessor(); newHost != "" {
			a.broadcast(protocol.NewHostChanged(newHost, userID))
			a.co.log.Infow("host reassigned", "room", a.room.Code, "newHost", newHost, "previous", userID)
		}
	}

	a.barrierDrop(userID)
}

func (a *roomActor) handleGraceExpired(userID string) {
	user := a.room.FindUser(userID)
	if user == nil || user.Connected {
		return
	}
	username := user.Username

	newHost, err := a.room.RemoveUser(userID)
	if err != nil {
		return
	}

	a.broadcast(protocol.NewUserLeft(userID, username))
	if newHost != "" {
		a.broadcast(protocol.NewHostChanged(newHost, userID))
	}
	a.barrierDrop(userID)

	if len(a.room.Users) == 0 {
		a.co.log.Infow("room empty, closing", "room", a.room.Code)
		a.co.teardownRoom(context.Background(), a)
	}
}

// ----- suggestions -----

func (a *roomActor) handleSuggestTrack(cmd command, p *protocol.SuggestTrack) {
	if a.room.IsHost(cmd.userID) {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "the host queues tracks directly"))
		return
	}
	user := a.room.FindUser(cmd.userID)
	if user == nil {
		return
	}

	s := &domain.Suggestion{
		ID:           uuid.NewString(),
		FromUserID:   user.ID,
		FromUsername: user.Username,
		Track:        p.Track,
		State:        domain.SuggestionPending,
	}
	if err := a.room.AddSuggestion(s); err != nil {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeTooManyRequests, "too many pending suggestions"))
		return
	}

	a.sendUser(a.room.HostID, &protocol.Message{Type: protocol.TypeSuggestionReceived, Payload: protocol.SuggestionReceived{
		SuggestionID: s.ID,
		FromUserID:   s.FromUserID,
		FromUsername: s.FromUsername,
		Track:        s.Track,
	}})
}

func (a *roomActor) handleResolveSuggestion(cmd command, suggestionID string, approved bool, reason string) {
	if !a.requireHost(cmd) {
		return
	}

	s, err := a.room.ResolveSuggestion(suggestionID, approved)
	switch {
	case errors.Is(err, domain.ErrSuggestionNotFound):
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "no such suggestion"))
		return
	case errors.Is(err, domain.ErrSuggestionResolved):
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeAlreadyResolved, "suggestion already resolved"))
		return
	case err != nil:
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, err.Error()))
		return
	}

	if approved {
		a.broadcast(&protocol.Message{Type: protocol.TypeSuggestionApproved,
			Payload: protocol.SuggestionApproved{SuggestionID: s.ID, Track: s.Track}})
	} else {
		a.broadcast(&protocol.Message{Type: protocol.TypeSuggestionRejected,
			Payload: protocol.SuggestionRejected{SuggestionID: s.ID, Reason: reason}})
	}
}

// ----- moderation -----

func (a *roomActor) handleKickUser(cmd command, p *protocol.KickUser) {
	if !a.requireHost(cmd) {
		return
	}
	if p.UserID == a.room.HostID {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "cannot kick the host"))
		return
	}
	user := a.room.FindUser(p.UserID)
	if user == nil {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeUserNotFound, "no such user"))
		return
	}

	targetClient := a.clients[p.UserID]
	username := user.Username

	a.sendUser(p.UserID, &protocol.Message{Type: protocol.TypeKicked, Payload: protocol.Kicked{Reason: p.Reason}})

	a.co.sessions.Revoke(a.room.Code, p.UserID)
	_, _ = a.room.RemoveUser(p.UserID)
	delete(a.clients, p.UserID)

	a.broadcast(protocol.NewUserLeft(p.UserID, username))
	a.barrierDrop(p.UserID)

	if targetClient != "" {
		a.co.unbind(targetClient)
		a.co.sender.CloseClient(targetClient)
	}

	a.co.metrics.KickCount.Inc()
	a.co.log.Infow("user kicked", "room", a.room.Code, "user", p.UserID, "reason", p.Reason)
}

func (a *roomActor) handleTransferHost(cmd command, p *protocol.TransferHost) {
	if !a.requireHost(cmd) {
		return
	}
	target := a.room.FindUser(p.NewHostID)
	if target == nil {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeUserNotFound, "no such user"))
		return
	}
	if !target.Connected {
		a.co.sender.Send(cmd.clientID, protocol.NewError(protocol.CodeInvalidPayload, "target is not connected"))
		return
	}

	previous := a.room.HostID
	a.room.HostID = target.ID
	a.broadcast(protocol.NewHostChanged(target.ID, previous))
}
