package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/auxroom/auxroom/internal/session"
)

func TestIssueAndResolve(t *testing.T) {
	m := session.NewManager("test-secret", time.Hour, time.Hour)

	token, err := m.Issue("AB23CD", "user-1")
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}
	if token == "" {
		t.Fatalf("Issue: empty token")
	}

	// The issuing connection still holds the token.
	if _, err := m.Resolve(token); !errors.Is(err, session.ErrTokenInUse) {
		t.Fatalf("Resolve: want ErrTokenInUse while bound, got %v", err)
	}

	m.MarkDisconnected("AB23CD", "user-1")

	sess, err := m.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: unexpected error: %v", err)
	}
	if sess.UserID != "user-1" || sess.RoomCode != "AB23CD" {
		t.Fatalf("Resolve: session mismatch: %+v", sess)
	}

	// Resolved means bound again: a second connection must not steal it.
	if _, err := m.Resolve(token); !errors.Is(err, session.ErrTokenInUse) {
		t.Fatalf("Resolve: want ErrTokenInUse after rebind, got %v", err)
	}
}

func TestResolveFailsClosed(t *testing.T) {
	m := session.NewManager("test-secret", time.Hour, time.Hour)

	if _, err := m.Resolve(""); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("Resolve: want ErrInvalidToken for empty token, got %v", err)
	}
	if _, err := m.Resolve("not.a.jwt"); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("Resolve: want ErrInvalidToken for garbage, got %v", err)
	}

	// Token signed by a different secret.
	other := session.NewManager("other-secret", time.Hour, time.Hour)
	token, err := other.Issue("AB23CD", "user-1")
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}
	if _, err := m.Resolve(token); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("Resolve: want ErrInvalidToken for wrong signer, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := session.NewManager("test-secret", -time.Minute, time.Hour)

	token, err := m.Issue("AB23CD", "user-1")
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}
	m.MarkDisconnected("AB23CD", "user-1")

	if _, err := m.Resolve(token); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("Resolve: want ErrInvalidToken for expired token, got %v", err)
	}
}

func TestRevokeInvalidatesToken(t *testing.T) {
	m := session.NewManager("test-secret", time.Hour, time.Hour)

	token, err := m.Issue("AB23CD", "user-1")
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}

	m.Revoke("AB23CD", "user-1")

	if _, err := m.Resolve(token); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("Resolve: want ErrInvalidToken after revoke, got %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("Count: want 0, got %d", m.Count())
	}
}

func TestGracePeriodExpiry(t *testing.T) {
	m := session.NewManager("test-secret", time.Hour, 20*time.Millisecond)

	expired := make(chan string, 1)
	m.SetExpiryHandler(func(roomCode, userID string) {
		expired <- roomCode + "/" + userID
	})

	token, err := m.Issue("AB23CD", "user-1")
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}
	m.MarkDisconnected("AB23CD", "user-1")

	select {
	case got := <-expired:
		if got != "AB23CD/user-1" {
			t.Fatalf("expiry handler: identity mismatch: %s", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expiry handler never fired")
	}

	if _, err := m.Resolve(token); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("Resolve: want ErrInvalidToken after grace expiry, got %v", err)
	}
}

func TestReconnectCancelsGrace(t *testing.T) {
	m := session.NewManager("test-secret", time.Hour, 30*time.Millisecond)

	expired := make(chan string, 1)
	m.SetExpiryHandler(func(roomCode, userID string) {
		expired <- userID
	})

	token, err := m.Issue("AB23CD", "user-1")
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}
	m.MarkDisconnected("AB23CD", "user-1")

	if _, err := m.Resolve(token); err != nil {
		t.Fatalf("Resolve: unexpected error: %v", err)
	}

	select {
	case <-expired:
		t.Fatalf("expiry handler fired after reconnect")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReissueReplacesOldSession(t *testing.T) {
	m := session.NewManager("test-secret", time.Hour, time.Hour)

	oldToken, err := m.Issue("AB23CD", "user-1")
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}
	if _, err := m.Issue("AB23CD", "user-1"); err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}

	m.MarkDisconnected("AB23CD", "user-1")
	if _, err := m.Resolve(oldToken); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("Resolve: want ErrInvalidToken for replaced token, got %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("Count: want 1, got %d", m.Count())
	}
}
