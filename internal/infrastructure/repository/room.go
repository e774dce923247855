package repository

import (
	"context"
	"sync"
	"time"

	"github.com/auxroom/auxroom/internal/domain"
)

type roomRepository struct {
	rooms          map[string]*domain.Room // code -> Room
	lastAccess     map[string]time.Time    // code -> last access time
	capacity       uint
	idleRoomExpiry time.Duration
	mu             *sync.RWMutex
}

func NewRoomRepository(capacity uint, idleRoomExpiry time.Duration) domain.RoomRepository {
	if capacity == 0 {
		capacity = 100
	}
	if idleRoomExpiry == 0 {
		idleRoomExpiry = 30 * time.Minute
	}

	return &roomRepository{
		rooms:          make(map[string]*domain.Room),
		lastAccess:     make(map[string]time.Time),
		capacity:       capacity,
		idleRoomExpiry: idleRoomExpiry,
		mu:             &sync.RWMutex{},
	}
}

func (r *roomRepository) touch(code string) {
	r.lastAccess[code] = time.Now()
}

func (r *roomRepository) evictIdle() {
	cutoff := time.Now().Add(-r.idleRoomExpiry)
	for code, last := range r.lastAccess {
		if last.Before(cutoff) {
			delete(r.rooms, code)
			delete(r.lastAccess, code)
		}
	}
}

// enforceCapacity ensures we don't exceed capacity by removing oldest-accessed rooms.
func (r *roomRepository) enforceCapacity() {
	if uint(len(r.rooms)) <= r.capacity {
		return
	}

	type entry struct {
		code string
		time time.Time
	}
	var entries []entry
	for code, t := range r.lastAccess {
		entries = append(entries, entry{code, t})
	}
	// Simple selection of oldest (no need for full sort if we just need to drop a few)
	for i := 0; i < len(entries)-int(r.capacity); i++ {
		oldest := entries[i]
		delete(r.rooms, oldest.code)
		delete(r.lastAccess, oldest.code)
	}
}

// Create adds a room if its code is unique and capacity allows.
func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room == nil || room.Code == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Clean up idle rooms first
	r.evictIdle()

	if _, exists := r.rooms[room.Code]; exists {
		return domain.ErrRoomAlreadyExists
	}

	r.enforceCapacity()

	r.rooms[room.Code] = room
	r.touch(room.Code)

	return nil
}

// GetByCode returns a room and updates access time.
func (r *roomRepository) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	if code == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	room, exists := r.rooms[code]
	r.mu.RUnlock()
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	r.mu.Lock()
	r.touch(code)
	r.mu.Unlock()

	return room, nil
}

// Delete removes a room (idempotent).
func (r *roomRepository) Delete(ctx context.Context, room *domain.Room) (*domain.Room, error) {
	if room == nil || room.Code == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	storedRoom, exists := r.rooms[room.Code]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	delete(r.rooms, room.Code)
	delete(r.lastAccess, room.Code)

	return storedRoom, nil
}

func (r *roomRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
