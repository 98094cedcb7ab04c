// Package processlog records per-message processing traces so operators can
// inspect or replay a failure without re-querying the database.
package processlog

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"stageflow_backend/platform/apperr"
)

// Step statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Entry statuses.
const (
	EntryOK    = "ok"
	EntryError = "error"
)

// Step is one pipeline step outcome. Generation steps also record the
// template, the rendered prompt and the raw model response so template
// authors can debug without re-running the message.
type Step struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	TemplateID string    `json:"templateId,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
	Response   string    `json:"response,omitempty"`
	At         time.Time `json:"at"`
}

// Entry is the full trace of one processed message.
type Entry struct {
	ID             string    `json:"id"`
	BusinessID     uuid.UUID `json:"businessId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Steps          []Step    `json:"steps"`
	Status         string    `json:"status"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists process log entries. Entries are short-lived operational
// data, not part of the conversation record.
type Store interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]Entry, error)
	// ListByBusiness returns the most recent entries across all of a
	// business's conversations, newest first.
	ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]Entry, error)
	// Prune drops expired entries and reports how many were removed.
	Prune(ctx context.Context) (int, error)
}

const entryNotFoundMessage = "process log entry not found"

// MemoryStore is a bounded in-memory store. Oldest entries are evicted when
// the bound is reached or their TTL passes. State is process-local.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	order      *list.List
	byID       map[string]*list.Element
}

type memoryItem struct {
	entry Entry
}

// NewMemoryStore creates a memory store holding at most maxEntries entries
// for at most ttl each.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		byID:       make(map[string]*list.Element),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) removeLocked(el *list.Element) {
	item := el.Value.(*memoryItem)
	delete(s.byID, item.entry.ID)
	s.order.Remove(el)
}

func (s *MemoryStore) expiredLocked(now time.Time) []*list.Element {
	var expired []*list.Element
	for el := s.order.Front(); el != nil; el = el.Next() {
		item := el.Value.(*memoryItem)
		if now.Sub(item.entry.CreatedAt) < s.ttl {
			break
		}
		expired = append(expired, el)
	}
	return expired
}

// Put stores an entry, evicting the oldest when over the bound.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byID[entry.ID]; ok {
		s.removeLocked(el)
	}
	s.byID[entry.ID] = s.order.PushBack(&memoryItem{entry: entry})

	for s.order.Len() > s.maxEntries {
		s.removeLocked(s.order.Front())
	}
	return nil
}

// Get returns one entry by id.
func (s *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.byID[id]
	if !ok {
		return Entry{}, apperr.NotFound(entryNotFoundMessage)
	}
	item := el.Value.(*memoryItem)
	if time.Since(item.entry.CreatedAt) >= s.ttl {
		s.removeLocked(el)
		return Entry{}, apperr.NotFound(entryNotFoundMessage)
	}
	return item.entry, nil
}

// ListByConversation returns up to limit entries for one conversation,
// newest first.
func (s *MemoryStore) ListByConversation(_ context.Context, conversationID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []Entry
	for el := s.order.Back(); el != nil && len(out) < limit; el = el.Prev() {
		item := el.Value.(*memoryItem)
		if now.Sub(item.entry.CreatedAt) >= s.ttl {
			continue
		}
		if item.entry.ConversationID == conversationID {
			out = append(out, item.entry)
		}
	}
	return out, nil
}

// ListByBusiness returns up to limit entries for one business, newest first.
func (s *MemoryStore) ListByBusiness(_ context.Context, businessID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []Entry
	for el := s.order.Back(); el != nil && len(out) < limit; el = el.Prev() {
		item := el.Value.(*memoryItem)
		if now.Sub(item.entry.CreatedAt) >= s.ttl {
			continue
		}
		if item.entry.BusinessID == businessID {
			out = append(out, item.entry)
		}
	}
	return out, nil
}

// Prune drops entries past their TTL.
func (s *MemoryStore) Prune(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := s.expiredLocked(time.Now())
	for _, el := range expired {
		s.removeLocked(el)
	}
	return len(expired), nil
}
