package protocol

import "encoding/json"

// Registry maps every message type to a factory for its payload struct.
// One shape per type; an unregistered type decodes to nothing.
var Registry = map[string]func() any{
	TypeCreateRoom:   func() any { return &CreateRoom{} },
	TypeRoomCreated:  func() any { return &RoomCreated{} },
	TypeJoinRequest:  func() any { return &JoinRequest{} },
	TypeJoinApproved: func() any { return &JoinApproved{} },
	TypeJoinRejected: func() any { return &JoinRejected{} },
	TypeUserJoined:   func() any { return &UserJoined{} },
	TypeUserLeft:     func() any { return &UserLeft{} },

	TypePlaybackAction: func() any { return &PlaybackAction{} },
	TypeSyncState:      func() any { return &SyncState{} },
	TypeBufferWait:     func() any { return &BufferWait{} },
	TypeBufferComplete: func() any { return &BufferComplete{} },

	TypeReconnect:        func() any { return &Reconnect{} },
	TypeReconnected:      func() any { return &Reconnected{} },
	TypeUserReconnected:  func() any { return &UserReconnected{} },
	TypeUserDisconnected: func() any { return &UserDisconnected{} },

	TypeKickUser:     func() any { return &KickUser{} },
	TypeKicked:       func() any { return &Kicked{} },
	TypeTransferHost: func() any { return &TransferHost{} },
	TypeHostChanged:  func() any { return &HostChanged{} },

	TypeSuggestTrack:       func() any { return &SuggestTrack{} },
	TypeSuggestionReceived: func() any { return &SuggestionReceived{} },
	TypeApproveSuggestion:  func() any { return &ApproveSuggestion{} },
	TypeSuggestionApproved: func() any { return &SuggestionApproved{} },
	TypeRejectSuggestion:   func() any { return &RejectSuggestion{} },
	TypeSuggestionRejected: func() any { return &SuggestionRejected{} },

	TypeError: func() any { return &Error{} },
}

// DecodePayload interprets raw payload bytes according to the registry.
// Unknown types return (nil, nil): the envelope stays decodable even
// when this build does not know the payload shape.
func DecodePayload(msgType string, raw []byte) (any, error) {
	factory, ok := Registry[msgType]
	if !ok {
		return nil, nil
	}

	payload := factory()
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
