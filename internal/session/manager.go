// Package session maps durable session tokens to user identities so a
// dropped connection can resume its place in a room.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("session: invalid or expired token")
	ErrTokenInUse   = errors.New("session: token already bound to a live connection")
)

// Session is the server-side record behind one issued token.
type Session struct {
	TokenID  string
	UserID   string
	RoomCode string
}

type record struct {
	session Session
	bound   bool // a live connection currently holds this token
	grace   *time.Timer
}

// ExpiryHandler is invoked (from a timer goroutine) when a disconnected
// session's grace period runs out. The session is already revoked when
// it fires.
type ExpiryHandler func(roomCode, userID string)

// Manager issues and verifies session tokens. Tokens are HS256 JWTs so
// they survive server-side lookups being the source of truth: a token
// whose record is gone fails closed regardless of its signature.
type Manager struct {
	secret []byte
	ttl    time.Duration
	grace  time.Duration

	mu       sync.Mutex
	records  map[string]*record // token ID -> record
	byUser   map[string]string  // roomCode+userID -> token ID
	onExpire ExpiryHandler
}

func NewManager(secret string, ttl, grace time.Duration) *Manager {
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		grace:   grace,
		records: make(map[string]*record),
		byUser:  make(map[string]string),
	}
}

// SetExpiryHandler registers the grace-period callback. Must be called
// before any session disconnects.
func (m *Manager) SetExpiryHandler(fn ExpiryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

func userKey(roomCode, userID string) string {
	return roomCode + "/" + userID
}

// Issue creates a session for a user who just joined a room and returns
// the signed token. The token starts bound: the issuing connection is
// the live one.
func (m *Manager) Issue(roomCode, userID string) (string, error) {
	tokenID := uuid.NewString()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"room": roomCode,
		"jti":  tokenID,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
		"iss":  "auxroom",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A fresh join replaces any lingering session for the same user.
	if old, ok := m.byUser[userKey(roomCode, userID)]; ok {
		m.dropLocked(old)
	}

	m.records[tokenID] = &record{
		session: Session{TokenID: tokenID, UserID: userID, RoomCode: roomCode},
		bound:   true,
	}
	m.byUser[userKey(roomCode, userID)] = tokenID

	return signed, nil
}

// Resolve verifies a token and rebinds it to a new live connection. Any
// failure — bad signature, expiry, unknown or revoked token ID, or a
// token already bound to another connection — fails closed.
func (m *Manager) Resolve(tokenStr string) (Session, error) {
	if tokenStr == "" {
		return Session{}, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, ErrInvalidToken
	}
	tokenID, _ := claims["jti"].(string)
	if tokenID == "" {
		return Session{}, ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[tokenID]
	if !ok {
		return Session{}, ErrInvalidToken
	}
	if rec.bound {
		return Session{}, ErrTokenInUse
	}

	if rec.grace != nil {
		rec.grace.Stop()
		rec.grace = nil
	}
	rec.bound = true

	return rec.session, nil
}

// MarkDisconnected releases the live-connection binding and starts the
// grace timer. When the timer fires the session is revoked and the
// expiry handler runs.
func (m *Manager) MarkDisconnected(roomCode, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokenID, ok := m.byUser[userKey(roomCode, userID)]
	if !ok {
		return
	}
	rec, ok := m.records[tokenID]
	if !ok {
		return
	}

	rec.bound = false
	if rec.grace != nil {
		rec.grace.Stop()
	}
	rec.grace = time.AfterFunc(m.grace, func() {
		m.expire(tokenID)
	})
}

func (m *Manager) expire(tokenID string) {
	m.mu.Lock()
	rec, ok := m.records[tokenID]
	if !ok || rec.bound {
		// Reconnected (or revoked) before the timer was stopped.
		m.mu.Unlock()
		return
	}
	m.dropLocked(tokenID)
	handler := m.onExpire
	sess := rec.session
	m.mu.Unlock()

	if handler != nil {
		handler(sess.RoomCode, sess.UserID)
	}
}

// Revoke invalidates a user's session immediately (leave or kick).
func (m *Manager) Revoke(roomCode, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tokenID, ok := m.byUser[userKey(roomCode, userID)]; ok {
		m.dropLocked(tokenID)
	}
}

func (m *Manager) dropLocked(tokenID string) {
	rec, ok := m.records[tokenID]
	if !ok {
		return
	}
	if rec.grace != nil {
		rec.grace.Stop()
	}
	delete(m.records, tokenID)
	delete(m.byUser, userKey(rec.session.RoomCode, rec.session.UserID))
}

// Count returns the number of live session records.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
