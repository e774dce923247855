package rooms

import "time"

type createRoomRequest struct {
	Username string `json:"username"`
}

type createRoomResponse struct {
	RoomCode     string    `json:"roomCode"`
	UserID       string    `json:"userId"`
	SessionToken string    `json:"sessionToken"`
	CreatedAt    time.Time `json:"createdAt"`
}
