package domain

// TrackInfo describes a single playable track as shared inside a room.
// Duration is in milliseconds; 0 means unknown.
type TrackInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	Duration    int64  `json:"duration,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	SuggestedBy string `json:"suggestedBy,omitempty"` // user ID when the track arrived via a suggestion
}
