package protocol

import (
	"time"

	"github.com/auxroom/auxroom/internal/domain"
)

// Message pairs a registry type with its decoded payload. Payload is nil
// for types this build does not know about.
type Message struct {
	Type    string
	Payload any
}

// Unset protocol fields ride the wire as zero values: "" for strings and
// 0 for numbers. Payload consumers reinterpret those sentinels as
// "absent", never as a literal empty string or zero — the one exception
// is documented on the field.

// UserSnapshot is the wire form of a room participant.
type UserSnapshot struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

// RoomState is the full room snapshot carried by SYNC_STATE and the
// join/reconnect replies. LastUpdate is unix milliseconds,
// server-authoritative, for client clock-drift reconciliation.
type RoomState struct {
	RoomCode     string             `json:"roomCode"`
	HostID       string             `json:"hostId"`
	Users        []UserSnapshot     `json:"users"`
	CurrentTrack *domain.TrackInfo  `json:"currentTrack,omitempty"`
	IsPlaying    bool               `json:"isPlaying"`
	Position     int64              `json:"position"`
	LastUpdate   int64              `json:"lastUpdate"`
	Volume       float64            `json:"volume"`
	Queue        []domain.TrackInfo `json:"queue"`
}

// ----- Room lifecycle -----

type CreateRoom struct {
	Username string `json:"username"`
}

type RoomCreated struct {
	RoomCode     string    `json:"roomCode"`
	UserID       string    `json:"userId"`
	SessionToken string    `json:"sessionToken"`
	State        RoomState `json:"state"`
}

// JoinRequest is double-duty: clients send roomCode+username; the server
// forwards it to the host with requestId set and roomCode cleared.
type JoinRequest struct {
	RoomCode  string `json:"roomCode,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Username  string `json:"username"`
}

// JoinApproved is host→server with just requestId; server→joiner carries
// the identity, token and snapshot.
type JoinApproved struct {
	RequestID    string     `json:"requestId"`
	UserID       string     `json:"userId,omitempty"`
	SessionToken string     `json:"sessionToken,omitempty"`
	State        *RoomState `json:"state,omitempty"`
}

type JoinRejected struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

type UserJoined struct {
	User UserSnapshot `json:"user"`
}

type UserLeft struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ----- Playback sync -----

// PlaybackAction carries one action verb and whichever optional fields
// the verb needs; the rest stay at their sentinels. Position 0 means
// "not specified" except for SEEK, where the verb itself makes 0 a
// legal target.
type PlaybackAction struct {
	Action   string             `json:"action"`
	Track    *domain.TrackInfo  `json:"track,omitempty"`
	Position int64              `json:"position,omitempty"`
	Volume   float64            `json:"volume,omitempty"`
	Queue    []domain.TrackInfo `json:"queue,omitempty"`
}

type SyncState struct {
	State RoomState `json:"state"`
}

type BufferWait struct {
	TrackID    string   `json:"trackId"`
	WaitingFor []string `json:"waitingFor"`
}

type BufferComplete struct {
	TrackID string `json:"trackId"`
}

// ----- Session continuity -----

type Reconnect struct {
	SessionToken string `json:"sessionToken"`
}

type Reconnected struct {
	UserID string    `json:"userId"`
	State  RoomState `json:"state"`
}

type UserReconnected struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type UserDisconnected struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ----- Moderation / authority -----

type KickUser struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

type Kicked struct {
	Reason string `json:"reason,omitempty"`
}

type TransferHost struct {
	NewHostID string `json:"newHostId"`
}

type HostChanged struct {
	NewHostID      string `json:"newHostId"`
	PreviousHostID string `json:"previousHostId,omitempty"`
}

// ----- Suggestions -----

type SuggestTrack struct {
	Track domain.TrackInfo `json:"track"`
}

type SuggestionReceived struct {
	SuggestionID string           `json:"suggestionId"`
	FromUserID   string           `json:"fromUserId"`
	FromUsername string           `json:"fromUsername"`
	Track        domain.TrackInfo `json:"track"`
}

type ApproveSuggestion struct {
	SuggestionID string `json:"suggestionId"`
}

type SuggestionApproved struct {
	SuggestionID string           `json:"suggestionId"`
	Track        domain.TrackInfo `json:"track"`
}

type RejectSuggestion struct {
	SuggestionID string `json:"suggestionId"`
	Reason       string `json:"reason,omitempty"`
}

type SuggestionRejected struct {
	SuggestionID string `json:"suggestionId"`
	Reason       string `json:"reason,omitempty"`
}

// ----- Generic -----

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRoomState snapshots a room for the wire.
func NewRoomState(room *domain.Room) RoomState {
	now := time.Now()

	users := make([]UserSnapshot, 0, len(room.Users))
	for _, u := range room.Users {
		users = append(users, UserSnapshot{
			UserID:    u.ID,
			Username:  u.Username,
			IsHost:    room.IsHost(u.ID),
			Connected: u.Connected,
		})
	}

	queue := make([]domain.TrackInfo, len(room.Queue))
	copy(queue, room.Queue)

	return RoomState{
		RoomCode:     room.Code,
		HostID:       room.HostID,
		Users:        users,
		CurrentTrack: room.CurrentTrack,
		IsPlaying:    room.IsPlaying,
		Position:     room.PositionAt(now),
		LastUpdate:   now.UnixMilli(),
		Volume:       room.Volume,
		Queue:        queue,
	}
}

func NewError(code, message string) *Message {
	return &Message{Type: TypeError, Payload: Error{Code: code, Message: message}}
}

func NewSyncState(room *domain.Room) *Message {
	return &Message{Type: TypeSyncState, Payload: SyncState{State: NewRoomState(room)}}
}

func NewUserJoined(room *domain.Room, u *domain.User) *Message {
	return &Message{Type: TypeUserJoined, Payload: UserJoined{User: UserSnapshot{
		UserID:    u.ID,
		Username:  u.Username,
		IsHost:    room.IsHost(u.ID),
		Connected: u.Connected,
	}}}
}

func NewUserLeft(userID, username string) *Message {
	return &Message{Type: TypeUserLeft, Payload: UserLeft{UserID: userID, Username: username}}
}

func NewBufferWait(trackID string, waitingFor []string) *Message {
	return &Message{Type: TypeBufferWait, Payload: BufferWait{TrackID: trackID, WaitingFor: waitingFor}}
}

func NewHostChanged(newHostID, previousHostID string) *Message {
	return &Message{Type: TypeHostChanged, Payload: HostChanged{
		NewHostID:      newHostID,
		PreviousHostID: previousHostID,
	}}
}
