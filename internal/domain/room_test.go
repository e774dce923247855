package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/auxroom/auxroom/internal/domain"
)

func newTestRoom(t *testing.T, maxMembers int) (*domain.Room, *domain.User) {
	t.Helper()

	host, err := domain.NewUser("host")
	if err != nil {
		t.Fatalf("NewUser: unexpected error: %v", err)
	}
	room, err := domain.NewRoom(host, maxMembers, 4)
	if err != nil {
		t.Fatalf("NewRoom: unexpected error: %v", err)
	}
	return room, host
}

func addMember(t *testing.T, room *domain.Room, name string) *domain.User {
	t.Helper()

	u, err := domain.NewUser(name)
	if err != nil {
		t.Fatalf("NewUser: unexpected error: %v", err)
	}
	if err := room.AddUser(u); err != nil {
		t.Fatalf("AddUser: unexpected error: %v", err)
	}
	return u
}

func TestNewRoomCode(t *testing.T) {
	room, host := newTestRoom(t, 4)

	if len(room.Code) != 6 {
		t.Fatalf("NewRoom: code length want=6 got=%d (%s)", len(room.Code), room.Code)
	}
	for _, c := range room.Code {
		if !strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", c) {
			t.Fatalf("NewRoom: code %s contains ambiguous character %q", room.Code, c)
		}
	}
	if !room.IsHost(host.ID) {
		t.Fatalf("NewRoom: creator is not host")
	}
	if room.Volume != 1.0 {
		t.Fatalf("NewRoom: volume want=1.0 got=%f", room.Volume)
	}
}

func TestUsernameValidation(t *testing.T) {
	for _, bad := range []string{"", "a", "has space", "-leading", "trailing_", strings.Repeat("x", 33)} {
		if _, err := domain.NewUser(bad); err == nil {
			t.Fatalf("NewUser(%q): expected validation error", bad)
		}
	}
	for _, good := range []string{"ab", "alice", "a1", "dj_khaled", "mc-ride", strings.Repeat("x", 32)} {
		if _, err := domain.NewUser(good); err != nil {
			t.Fatalf("NewUser(%q): unexpected error: %v", good, err)
		}
	}
}

func TestRoomCapacity(t *testing.T) {
	room, _ := newTestRoom(t, 2)
	addMember(t, room, "second")

	third, err := domain.NewUser("third")
	if err != nil {
		t.Fatalf("NewUser: unexpected error: %v", err)
	}
	if err := room.AddUser(third); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("AddUser: want ErrRoomFull, got %v", err)
	}
}

func TestHostRemovalPromotesEarliestConnected(t *testing.T) {
	room, host := newTestRoom(t, 4)
	m1 := addMember(t, room, "first")
	m2 := addMember(t, room, "second")

	newHost, err := room.RemoveUser(host.ID)
	if err != nil {
		t.Fatalf("RemoveUser: unexpected error: %v", err)
	}
	if newHost != m1.ID || room.HostID != m1.ID {
		t.Fatalf("RemoveUser: host want=%s got=%s", m1.ID, room.HostID)
	}

	// Join order survives host removal.
	if room.Users[0].ID != m1.ID || room.Users[1].ID != m2.ID {
		t.Fatalf("RemoveUser: join order not preserved")
	}
}

func TestPromoteSuccessorSkipsDisconnected(t *testing.T) {
	room, host := newTestRoom(t, 4)
	m1 := addMember(t, room, "first")
	m2 := addMember(t, room, "second")
	m1.Connected = false

	host.Connected = false
	if got := room.PromoteSuccessor(); got != m2.ID {
		t.Fatalf("PromoteSuccessor: want=%s got=%s", m2.ID, got)
	}
}

func TestRemoveNonHostKeepsAuthority(t *testing.T) {
	room, host := newTestRoom(t, 4)
	m1 := addMember(t, room, "first")

	newHost, err := room.RemoveUser(m1.ID)
	if err != nil {
		t.Fatalf("RemoveUser: unexpected error: %v", err)
	}
	if newHost != "" || room.HostID != host.ID {
		t.Fatalf("RemoveUser: authority moved unexpectedly")
	}

	if _, err := room.RemoveUser(m1.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("RemoveUser: want ErrUserNotFound, got %v", err)
	}
}

func TestPositionAt(t *testing.T) {
	room, _ := newTestRoom(t, 4)
	now := time.Now()

	room.Position = 1000
	room.LastUpdate = now.Add(-2 * time.Second)

	room.IsPlaying = false
	if got := room.PositionAt(now); got != 1000 {
		t.Fatalf("PositionAt: paused room advanced: got %d", got)
	}

	room.IsPlaying = true
	if got := room.PositionAt(now); got != 3000 {
		t.Fatalf("PositionAt: want=3000 got=%d", got)
	}
}

func TestSuggestionLifecycle(t *testing.T) {
	room, _ := newTestRoom(t, 4)
	m1 := addMember(t, room, "first")

	s := &domain.Suggestion{
		ID:         "s-1",
		FromUserID: m1.ID,
		Track:      domain.TrackInfo{ID: "track-1", Title: "Song"},
	}
	if err := room.AddSuggestion(s); err != nil {
		t.Fatalf("AddSuggestion: unexpected error: %v", err)
	}

	resolved, err := room.ResolveSuggestion("s-1", true)
	if err != nil {
		t.Fatalf("ResolveSuggestion: unexpected error: %v", err)
	}
	if resolved.State != domain.SuggestionApproved {
		t.Fatalf("ResolveSuggestion: state want=approved got=%d", resolved.State)
	}
	if len(room.Queue) != 1 || room.Queue[0].ID != "track-1" {
		t.Fatalf("ResolveSuggestion: approved track not queued")
	}
	if room.Queue[0].SuggestedBy != m1.ID {
		t.Fatalf("ResolveSuggestion: suggester not stamped on track")
	}

	if _, err := room.ResolveSuggestion("s-1", false); !errors.Is(err, domain.ErrSuggestionResolved) {
		t.Fatalf("ResolveSuggestion: want ErrSuggestionResolved, got %v", err)
	}
	if _, err := room.ResolveSuggestion("missing", true); !errors.Is(err, domain.ErrSuggestionNotFound) {
		t.Fatalf("ResolveSuggestion: want ErrSuggestionNotFound, got %v", err)
	}
}

func TestRejectedSuggestionNotQueued(t *testing.T) {
	room, _ := newTestRoom(t, 4)

	s := &domain.Suggestion{ID: "s-1", Track: domain.TrackInfo{ID: "track-1"}}
	if err := room.AddSuggestion(s); err != nil {
		t.Fatalf("AddSuggestion: unexpected error: %v", err)
	}
	if _, err := room.ResolveSuggestion("s-1", false); err != nil {
		t.Fatalf("ResolveSuggestion: unexpected error: %v", err)
	}
	if len(room.Queue) != 0 {
		t.Fatalf("ResolveSuggestion: rejected track was queued")
	}
}

func TestPendingJoinBound(t *testing.T) {
	host, err := domain.NewUser("host")
	if err != nil {
		t.Fatalf("NewUser: unexpected error: %v", err)
	}
	room, err := domain.NewRoom(host, 4, 1)
	if err != nil {
		t.Fatalf("NewRoom: unexpected error: %v", err)
	}

	if err := room.AddPendingJoin(&domain.PendingJoin{RequestID: "r-1", Username: "alice"}); err != nil {
		t.Fatalf("AddPendingJoin: unexpected error: %v", err)
	}
	if err := room.AddPendingJoin(&domain.PendingJoin{RequestID: "r-2", Username: "bob"}); !errors.Is(err, domain.ErrTooManyPending) {
		t.Fatalf("AddPendingJoin: want ErrTooManyPending, got %v", err)
	}

	if _, ok := room.TakePendingJoin("r-1"); !ok {
		t.Fatalf("TakePendingJoin: request lost")
	}
	if _, ok := room.TakePendingJoin("r-1"); ok {
		t.Fatalf("TakePendingJoin: request taken twice")
	}
}

func TestResolvedSuggestionsFreeTheCap(t *testing.T) {
	host, err := domain.NewUser("host")
	if err != nil {
		t.Fatalf("NewUser: unexpected error: %v", err)
	}
	room, err := domain.NewRoom(host, 4, 2)
	if err != nil {
		t.Fatalf("NewRoom: unexpected error: %v", err)
	}

	// Resolved suggestions must not eat the pending budget.
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("s-%d", i)
		if err := room.AddSuggestion(&domain.Suggestion{ID: id, Track: domain.TrackInfo{ID: id}}); err != nil {
			t.Fatalf("AddSuggestion(%s): unexpected error: %v", id, err)
		}
		if _, err := room.ResolveSuggestion(id, i%2 == 0); err != nil {
			t.Fatalf("ResolveSuggestion(%s): unexpected error: %v", id, err)
		}
	}

	if err := room.AddSuggestion(&domain.Suggestion{ID: "p-1"}); err != nil {
		t.Fatalf("AddSuggestion: unexpected error: %v", err)
	}
	if err := room.AddSuggestion(&domain.Suggestion{ID: "p-2"}); err != nil {
		t.Fatalf("AddSuggestion: unexpected error: %v", err)
	}

	// The cap still binds the number of open suggestions.
	if err := room.AddSuggestion(&domain.Suggestion{ID: "p-3"}); !errors.Is(err, domain.ErrTooManyPending) {
		t.Fatalf("AddSuggestion: want ErrTooManyPending, got %v", err)
	}
}

func TestPopQueue(t *testing.T) {
	room, _ := newTestRoom(t, 4)

	if _, ok := room.PopQueue(); ok {
		t.Fatalf("PopQueue: empty queue returned a track")
	}

	room.Queue = append(room.Queue, domain.TrackInfo{ID: "a"}, domain.TrackInfo{ID: "b"})

	head, ok := room.PopQueue()
	if !ok || head.ID != "a" {
		t.Fatalf("PopQueue: want head a, got %+v ok=%v", head, ok)
	}
	if len(room.Queue) != 1 || room.Queue[0].ID != "b" {
		t.Fatalf("PopQueue: remainder wrong: %+v", room.Queue)
	}
}
