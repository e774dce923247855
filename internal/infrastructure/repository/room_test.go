package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auxroom/auxroom/internal/domain"
	"github.com/auxroom/auxroom/internal/infrastructure/repository"
)

func newRoom(t *testing.T) *domain.Room {
	t.Helper()

	host, err := domain.NewUser("host")
	if err != nil {
		t.Fatalf("NewUser: unexpected error: %v", err)
	}
	room, err := domain.NewRoom(host, 4, 4)
	if err != nil {
		t.Fatalf("NewRoom: unexpected error: %v", err)
	}
	return room
}

func TestCreateAndGet(t *testing.T) {
	repo := repository.NewRoomRepository(10, time.Hour)
	ctx := context.Background()

	room := newRoom(t)
	if err := repo.Create(ctx, room); err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	got, err := repo.GetByCode(ctx, room.Code)
	if err != nil {
		t.Fatalf("GetByCode: unexpected error: %v", err)
	}
	if got.Code != room.Code {
		t.Fatalf("GetByCode: code mismatch want=%s got=%s", room.Code, got.Code)
	}

	if repo.Count(ctx) != 1 {
		t.Fatalf("Count: want 1, got %d", repo.Count(ctx))
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	repo := repository.NewRoomRepository(10, time.Hour)
	ctx := context.Background()

	room := newRoom(t)
	if err := repo.Create(ctx, room); err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	if err := repo.Create(ctx, room); !errors.Is(err, domain.ErrRoomAlreadyExists) {
		t.Fatalf("Create: want ErrRoomAlreadyExists, got %v", err)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	repo := repository.NewRoomRepository(10, time.Hour)
	ctx := context.Background()

	if err := repo.Create(ctx, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Create: want ErrInvalidInput for nil room, got %v", err)
	}
	if err := repo.Create(ctx, &domain.Room{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Create: want ErrInvalidInput for empty code, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := repository.NewRoomRepository(10, time.Hour)
	ctx := context.Background()

	room := newRoom(t)
	if err := repo.Create(ctx, room); err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	deleted, err := repo.Delete(ctx, room)
	if err != nil {
		t.Fatalf("Delete: unexpected error: %v", err)
	}
	if deleted.Code != room.Code {
		t.Fatalf("Delete: code mismatch")
	}

	if _, err := repo.GetByCode(ctx, room.Code); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("GetByCode: want ErrRoomNotFound, got %v", err)
	}
	if _, err := repo.Delete(ctx, room); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("Delete: want ErrRoomNotFound on second delete, got %v", err)
	}
}

func TestIdleRoomEviction(t *testing.T) {
	repo := repository.NewRoomRepository(10, 20*time.Millisecond)
	ctx := context.Background()

	stale := newRoom(t)
	if err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	// Creation sweeps idle rooms.
	fresh := newRoom(t)
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	if _, err := repo.GetByCode(ctx, stale.Code); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("GetByCode: want ErrRoomNotFound for idle room, got %v", err)
	}
	if _, err := repo.GetByCode(ctx, fresh.Code); err != nil {
		t.Fatalf("GetByCode: unexpected error: %v", err)
	}
}
