package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

func TestWithinTransactionHonoursCancellation(t *testing.T) {
	t.Parallel()

	storage := Open()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := storage.WithinTransaction(ctx, func(persistence.Repositories) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("expected callback to be skipped")
	}
}

func TestWithinTransactionWorksOnACopy(t *testing.T) {
	t.Parallel()

	storage := Open()
	ctx := context.Background()
	now := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

	if err := storage.CreateRoom(ctx, persistence.Room{ID: "r", Name: "R", Capacity: 2, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	err := storage.WithinTransaction(ctx, func(repos persistence.Repositories) error {
		if err := repos.DeleteRoom(ctx, "r"); err != nil {
			return err
		}
		if _, err := storage.state.GetRoom(ctx, "r"); err != nil {
			t.Errorf("expected live state to keep the room until commit: %v", err)
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected abort error")
	}
	if _, err := storage.GetRoom(ctx, "r"); err != nil {
		t.Fatalf("expected room to survive aborted transaction: %v", err)
	}
}

func TestUpdateRoomKeepsCreatedAt(t *testing.T) {
	t.Parallel()

	storage := Open()
	ctx := context.Background()
	created := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

	if err := storage.CreateRoom(ctx, persistence.Room{ID: "r", Name: "R", Capacity: 2, CreatedAt: created, UpdatedAt: created}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if err := storage.UpdateRoom(ctx, persistence.Room{ID: "r", Name: "R2", Capacity: 3, UpdatedAt: created.Add(time.Hour)}); err != nil {
		t.Fatalf("UpdateRoom failed: %v", err)
	}

	room, err := storage.GetRoom(ctx, "r")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if !room.CreatedAt.Equal(created) || room.Name != "R2" {
		t.Fatalf("unexpected room: %#v", room)
	}
}
