// Package protocol defines the sync message catalogue and the binary
// envelope framing that carries it.
package protocol

// Message kinds. The catalogue is closed: the codec's payload table in
// registry.go must stay 1:1 with this list.
const (
	// Room lifecycle
	TypeCreateRoom   = "CREATE_ROOM"
	TypeRoomCreated  = "ROOM_CREATED"
	TypeJoinRequest  = "JOIN_REQUEST"
	TypeJoinApproved = "JOIN_APPROVED"
	TypeJoinRejected = "JOIN_REJECTED"
	TypeUserJoined   = "USER_JOINED"
	TypeUserLeft     = "USER_LEFT"

	// Playback sync
	TypePlaybackAction = "PLAYBACK_ACTION"
	TypeSyncState      = "SYNC_STATE"
	TypeBufferWait     = "BUFFER_WAIT"
	TypeBufferComplete = "BUFFER_COMPLETE"

	// Session continuity
	TypeReconnect        = "RECONNECT"
	TypeReconnected      = "RECONNECTED"
	TypeUserReconnected  = "USER_RECONNECTED"
	TypeUserDisconnected = "USER_DISCONNECTED"

	// Moderation / authority
	TypeKickUser     = "KICK_USER"
	TypeKicked       = "KICKED"
	TypeTransferHost = "TRANSFER_HOST"
	TypeHostChanged  = "HOST_CHANGED"

	// Suggestions
	TypeSuggestTrack       = "SUGGEST_TRACK"
	TypeSuggestionReceived = "SUGGESTION_RECEIVED"
	TypeApproveSuggestion  = "APPROVE_SUGGESTION"
	TypeSuggestionApproved = "SUGGESTION_APPROVED"
	TypeRejectSuggestion   = "REJECT_SUGGESTION"
	TypeSuggestionRejected = "SUGGESTION_REJECTED"

	TypeError = "ERROR"
)

// Playback action verbs carried by PLAYBACK_ACTION.
const (
	ActionPlay      = "PLAY" // start a (possibly new) track; arms the buffer barrier
	ActionPause     = "PAUSE"
	ActionResume    = "RESUME"
	ActionSeek      = "SEEK"
	ActionVolume    = "VOLUME"
	ActionQueueAdd  = "QUEUE_ADD"
	ActionQueueNext = "QUEUE_NEXT" // pop the queue head into playback; arms the barrier
)

// Error codes carried by ERROR payloads.
const (
	CodeNotHost         = "NOT_HOST"
	CodeRoomNotFound    = "ROOM_NOT_FOUND"
	CodeRoomFull        = "ROOM_FULL"
	CodeUserNotFound    = "USER_NOT_FOUND"
	CodeInvalidPayload  = "INVALID_PAYLOAD"
	CodeInvalidSession  = "INVALID_SESSION"
	CodeAlreadyResolved = "ALREADY_RESOLVED"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
)
