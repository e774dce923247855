package domain

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

const (
	codeLength = 6

	// No 0/O/1/I to keep codes readable when shared out loud.
	codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	charsetLen = big.NewInt(int64(len(codeChars)))

	ErrInvalidInput       = errors.New("invalid input")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomAlreadyExists  = errors.New("room already exists")
	ErrRoomFull           = errors.New("room is full")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyInRoom      = errors.New("already in room")
	ErrNotHost            = errors.New("only the host may do that")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrSuggestionResolved = errors.New("suggestion already resolved")
	ErrTooManyPending     = errors.New("too many pending requests")
)

// PendingJoin is a join request awaiting host approval. The requester is
// not a member until the host approves.
type PendingJoin struct {
	RequestID string    `json:"requestId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Room is one collaborative listening session. Users is kept in join
// order; the earliest-joined still-connected user is the deterministic
// host successor. All mutation goes through the room's coordinator, so
// the struct itself carries no lock.
type Room struct {
	Code         string                 `json:"code"`
	HostID       string                 `json:"hostId"`
	Users        []*User                `json:"users"`
	CurrentTrack *TrackInfo             `json:"currentTrack,omitempty"`
	IsPlaying    bool                   `json:"isPlaying"`
	Position     int64                  `json:"position"` // playback offset in ms at LastUpdate
	LastUpdate   time.Time              `json:"lastUpdate"`
	Volume       float64                `json:"volume"` // 0.0 - 1.0
	Queue        []TrackInfo            `json:"queue"`
	Suggestions  map[string]*Suggestion `json:"suggestions"`
	PendingJoins map[string]*PendingJoin
	CreatedAt    time.Time `json:"createdAt"`

	MaxMembers int
	MaxPending int
}

type RoomRepository interface {
	Create(ctx context.Context, room *Room) error
	GetByCode(ctx context.Context, code string) (*Room, error)
	Delete(ctx context.Context, room *Room) (*Room, error)
	Count(ctx context.Context) int
}

func NewRoom(host *User, maxMembers, maxPending int) (*Room, error) {
	if host == nil {
		return nil, ErrInvalidInput
	}

	code, err := generateRoomCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &Room{
		Code:         code,
		HostID:       host.ID,
		Users:        make([]*User, 0, maxMembers),
		Volume:       1.0,
		Queue:        make([]TrackInfo, 0),
		Suggestions:  make(map[string]*Suggestion),
		PendingJoins: make(map[string]*PendingJoin),
		CreatedAt:    now,
		LastUpdate:   now,
		MaxMembers:   maxMembers,
		MaxPending:   maxPending,
	}
	room.Users = append(room.Users, host)

	return room, nil
}

func (r *Room) IsHost(userID string) bool {
	return userID != "" && r.HostID == userID
}

func (r *Room) FindUser(userID string) *User {
	for _, u := range r.Users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

func (r *Room) AddUser(u *User) error {
	if u == nil {
		return ErrInvalidInput
	}
	if len(r.Users) >= r.MaxMembers {
		return ErrRoomFull
	}
	if r.FindUser(u.ID) != nil {
		return ErrAlreadyInRoom
	}
	r.Users = append(r.Users, u)
	return nil
}

// RemoveUser drops a user from the room. If they were the host, the
// earliest-joined still-connected user is promoted; join order is
// preserved (no swap-remove) because it doubles as succession order.
// The returned string is the new host ID, or "" when authority did not
// move.
func (r *Room) RemoveUser(userID string) (string, error) {
	idx := -1
	for i, u := range r.Users {
		if u.ID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", ErrUserNotFound
	}

	r.Users = append(r.Users[:idx], r.Users[idx+1:]...)

	if r.HostID == userID {
		return r.PromoteSuccessor(), nil
	}
	return "", nil
}

// PromoteSuccessor hands host authority to the earliest-joined connected
// user and returns the new host ID ("" when nobody qualifies, which
// leaves the stale host ID in place until the room dies).
func (r *Room) PromoteSuccessor() string {
	for _, u := range r.Users {
		if u.Connected && u.ID != r.HostID {
			r.HostID = u.ID
			return u.ID
		}
	}
	return ""
}

// ConnectedUserIDs lists connected members, skipping any IDs in except.
func (r *Room) ConnectedUserIDs(except ...string) []string {
	skip := make(map[string]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}

	ids := make([]string, 0, len(r.Users))
	for _, u := range r.Users {
		if !u.Connected {
			continue
		}
		if _, ok := skip[u.ID]; ok {
			continue
		}
		ids = append(ids, u.ID)
	}
	return ids
}

// PositionAt projects the playback offset to the given instant. Paused
// rooms report the stored offset as-is.
func (r *Room) PositionAt(now time.Time) int64 {
	if !r.IsPlaying {
		return r.Position
	}
	return r.Position + now.Sub(r.LastUpdate).Milliseconds()
}

func (r *Room) AddPendingJoin(p *PendingJoin) error {
	if p == nil || p.RequestID == "" {
		return ErrInvalidInput
	}
	if len(r.PendingJoins) >= r.MaxPending {
		return ErrTooManyPending
	}
	r.PendingJoins[p.RequestID] = p
	return nil
}

func (r *Room) TakePendingJoin(requestID string) (*PendingJoin, bool) {
	p, ok := r.PendingJoins[requestID]
	if ok {
		delete(r.PendingJoins, requestID)
	}
	return p, ok
}

// AddSuggestion registers a pending suggestion. Only pending entries
// count against MaxPending; resolved ones stay around so a second
// resolution can be detected, and get swept once they pile up.
func (r *Room) AddSuggestion(s *Suggestion) error {
	if s == nil || s.ID == "" {
		return ErrInvalidInput
	}
	pending := 0
	for _, cur := range r.Suggestions {
		if cur.State == SuggestionPending {
			pending++
		}
	}
	if pending >= r.MaxPending {
		return ErrTooManyPending
	}
	if len(r.Suggestions)-pending > r.MaxPending*4 {
		for id, cur := range r.Suggestions {
			if cur.State != SuggestionPending {
				delete(r.Suggestions, id)
			}
		}
	}
	r.Suggestions[s.ID] = s
	return nil
}

// ResolveSuggestion finalizes a suggestion. Approved suggestions land at
// the tail of the queue with the suggester stamped on the track.
func (r *Room) ResolveSuggestion(suggestionID string, approved bool) (*Suggestion, error) {
	s, ok := r.Suggestions[suggestionID]
	if !ok {
		return nil, ErrSuggestionNotFound
	}
	if err := s.Resolve(approved); err != nil {
		return nil, err
	}
	if approved {
		track := s.Track
		track.SuggestedBy = s.FromUserID
		r.Queue = append(r.Queue, track)
	}
	return s, nil
}

// PopQueue removes and returns the head of the queue.
func (r *Room) PopQueue() (TrackInfo, bool) {
	if len(r.Queue) == 0 {
		return TrackInfo{}, false
	}
	head := r.Queue[0]
	r.Queue = append([]TrackInfo(nil), r.Queue[1:]...)
	return head, true
}

func generateRoomCode() (string, error) {
	var sb strings.Builder
	sb.Grow(codeLength)

	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeChars[n.Int64()])
	}

	return sb.String(), nil
}
