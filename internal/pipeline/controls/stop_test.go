package controls

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStopStore_SetAndClear(t *testing.T) {
	store := NewMemoryStopStore(time.Hour)
	convID := uuid.New()

	stopped, err := store.IsStopped(context.Background(), convID)
	if err != nil || stopped {
		t.Fatalf("fresh conversation should not be stopped (stopped=%v err=%v)", stopped, err)
	}

	if err := store.SetStopped(context.Background(), convID, true); err != nil {
		t.Fatalf("SetStopped: %v", err)
	}
	stopped, err = store.IsStopped(context.Background(), convID)
	if err != nil || !stopped {
		t.Fatalf("expected stopped (stopped=%v err=%v)", stopped, err)
	}

	if err := store.SetStopped(context.Background(), convID, false); err != nil {
		t.Fatalf("SetStopped(false): %v", err)
	}
	stopped, _ = store.IsStopped(context.Background(), convID)
	if stopped {
		t.Error("flag should be cleared")
	}
}

func TestMemoryStopStore_Expires(t *testing.T) {
	store := NewMemoryStopStore(time.Millisecond)
	convID := uuid.New()

	if err := store.SetStopped(context.Background(), convID, true); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	stopped, err := store.IsStopped(context.Background(), convID)
	if err != nil {
		t.Fatal(err)
	}
	if stopped {
		t.Error("flag should have expired")
	}
}

func TestRedisStopStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStopStore(client, time.Hour)
	convID := uuid.New()

	if err := store.SetStopped(context.Background(), convID, true); err != nil {
		t.Fatalf("SetStopped: %v", err)
	}
	stopped, err := store.IsStopped(context.Background(), convID)
	if err != nil || !stopped {
		t.Fatalf("expected stopped (stopped=%v err=%v)", stopped, err)
	}

	// TTL expiry clears the flag.
	mr.FastForward(2 * time.Hour)
	stopped, err = store.IsStopped(context.Background(), convID)
	if err != nil {
		t.Fatal(err)
	}
	if stopped {
		t.Error("flag should have expired")
	}
}

func TestUserLevelStopFlags(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]StopStore{
		"memory": NewMemoryStopStore(time.Hour),
		"redis":  NewRedisStopStore(client, time.Hour),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			businessID := uuid.New()

			if err := store.SetUserStopped(context.Background(), businessID, "user-1", true); err != nil {
				t.Fatalf("SetUserStopped: %v", err)
			}
			stopped, err := store.IsUserStopped(context.Background(), businessID, "user-1")
			if err != nil || !stopped {
				t.Fatalf("expected user stopped (stopped=%v err=%v)", stopped, err)
			}

			// Other users and businesses are unaffected.
			if stopped, _ := store.IsUserStopped(context.Background(), businessID, "user-2"); stopped {
				t.Error("different user should not be stopped")
			}
			if stopped, _ := store.IsUserStopped(context.Background(), uuid.New(), "user-1"); stopped {
				t.Error("different business should not be stopped")
			}

			if err := store.SetUserStopped(context.Background(), businessID, "user-1", false); err != nil {
				t.Fatal(err)
			}
			if stopped, _ := store.IsUserStopped(context.Background(), businessID, "user-1"); stopped {
				t.Error("flag should be cleared")
			}
		})
	}
}
