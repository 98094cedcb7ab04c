package processlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"stageflow_backend/platform/apperr"
)

func entry(conversationID uuid.UUID) Entry {
	return Entry{
		ID:             uuid.NewString(),
		BusinessID:     uuid.New(),
		ConversationID: conversationID,
		Steps: []Step{
			{Name: "validation", Status: StatusCompleted, At: time.Now()},
			{Name: "response", Status: StatusCompleted, At: time.Now()},
		},
		Success:   true,
		CreatedAt: time.Now(),
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	e := entry(uuid.New())

	if err := store.Put(context.Background(), e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != e.ID || len(got.Steps) != 2 {
		t.Errorf("unexpected entry: %+v", got)
	}

	_, err = store.Get(context.Background(), "missing")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryStore_EvictsOldestOverBound(t *testing.T) {
	store := NewMemoryStore(3, time.Hour)
	convID := uuid.New()

	var ids []string
	for i := 0; i < 5; i++ {
		e := entry(convID)
		e.ID = fmt.Sprintf("entry-%d", i)
		ids = append(ids, e.ID)
		if err := store.Put(context.Background(), e); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	for _, id := range ids[:2] {
		if _, err := store.Get(context.Background(), id); err == nil {
			t.Errorf("entry %s should have been evicted", id)
		}
	}
	for _, id := range ids[2:] {
		if _, err := store.Get(context.Background(), id); err != nil {
			t.Errorf("entry %s should survive: %v", id, err)
		}
	}
}

func TestMemoryStore_ListByConversationNewestFirst(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	convID := uuid.New()
	other := uuid.New()

	first := entry(convID)
	second := entry(convID)
	if err := store.Put(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), entry(other)); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListByConversation(context.Background(), convID, 10)
	if err != nil {
		t.Fatalf("ListByConversation: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Error("expected newest-first ordering")
	}
}

func TestMemoryStore_ListByBusiness(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	e := entry(uuid.New())

	if err := store.Put(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), entry(uuid.New())); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListByBusiness(context.Background(), e.BusinessID, 10)
	if err != nil {
		t.Fatalf("ListByBusiness: %v", err)
	}
	if len(got) != 1 || got[0].ID != e.ID {
		t.Errorf("expected only the business's entry, got %d", len(got))
	}
}

func TestMemoryStore_Prune(t *testing.T) {
	store := NewMemoryStore(10, 50*time.Millisecond)
	e := entry(uuid.New())
	e.CreatedAt = time.Now().Add(-time.Second)
	if err := store.Put(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned entry, got %d", removed)
	}
	if _, err := store.Get(context.Background(), e.ID); err == nil {
		t.Error("pruned entry should be gone")
	}
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour, 5), mr
}

func TestRedisStore_PutGet(t *testing.T) {
	store, _ := newRedisStore(t)
	e := entry(uuid.New())

	if err := store.Put(context.Background(), e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != e.ID || got.ConversationID != e.ConversationID {
		t.Errorf("unexpected entry: %+v", got)
	}

	_, err = store.Get(context.Background(), "missing")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRedisStore_ConversationIndexBounded(t *testing.T) {
	store, _ := newRedisStore(t)
	convID := uuid.New()

	for i := 0; i < 8; i++ {
		if err := store.Put(context.Background(), entry(convID)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	got, err := store.ListByConversation(context.Background(), convID, 0)
	if err != nil {
		t.Fatalf("ListByConversation: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected index trimmed to 5, got %d", len(got))
	}
}

func TestRedisStore_PruneDropsDanglingIDs(t *testing.T) {
	store, mr := newRedisStore(t)
	convID := uuid.New()
	e := entry(convID)

	if err := store.Put(context.Background(), e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Simulate TTL expiry of the entry body only.
	mr.Del(entryKey(e.ID))

	removed, err := store.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	// One dangling id in the conversation index, one in the business index.
	if removed != 2 {
		t.Errorf("expected 2 dangling ids removed, got %d", removed)
	}

	got, err := store.ListByConversation(context.Background(), convID, 0)
	if err != nil {
		t.Fatalf("ListByConversation: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty list, got %d", len(got))
	}
}
