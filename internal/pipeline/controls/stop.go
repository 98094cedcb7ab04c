// Package controls holds operator switches for the pipeline, currently the
// per-conversation AI-stop flag that suppresses automated responses so a
// human can take over.
package controls

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StopStore tracks which conversations have automated responses suppressed.
// Flags expire on their own so a forgotten takeover does not silence a
// conversation forever.
type StopStore interface {
	SetStopped(ctx context.Context, conversationID uuid.UUID, stopped bool) error
	IsStopped(ctx context.Context, conversationID uuid.UUID) (bool, error)
	SetUserStopped(ctx context.Context, businessID uuid.UUID, userID string, stopped bool) error
	IsUserStopped(ctx context.Context, businessID uuid.UUID, userID string) (bool, error)
}

func userKey(businessID uuid.UUID, userID string) string {
	return businessID.String() + ":" + userID
}

// MemoryStopStore is a process-local stop flag table.
type MemoryStopStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	flags     map[uuid.UUID]time.Time
	userFlags map[string]time.Time
}

// NewMemoryStopStore creates a memory store whose flags expire after ttl.
func NewMemoryStopStore(ttl time.Duration) *MemoryStopStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStopStore{
		ttl:       ttl,
		flags:     make(map[uuid.UUID]time.Time),
		userFlags: make(map[string]time.Time),
	}
}

var _ StopStore = (*MemoryStopStore)(nil)

func (s *MemoryStopStore) SetStopped(_ context.Context, conversationID uuid.UUID, stopped bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stopped {
		s.flags[conversationID] = time.Now().Add(s.ttl)
	} else {
		delete(s.flags, conversationID)
	}
	return nil
}

func (s *MemoryStopStore) IsStopped(_ context.Context, conversationID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.flags[conversationID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.flags, conversationID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStopStore) SetUserStopped(_ context.Context, businessID uuid.UUID, userID string, stopped bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(businessID, userID)
	if stopped {
		s.userFlags[key] = time.Now().Add(s.ttl)
	} else {
		delete(s.userFlags, key)
	}
	return nil
}

func (s *MemoryStopStore) IsUserStopped(_ context.Context, businessID uuid.UUID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(businessID, userID)
	expiry, ok := s.userFlags[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.userFlags, key)
		return false, nil
	}
	return true, nil
}

// RedisStopStore shares stop flags across process instances.
type RedisStopStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStopStore creates a Redis-backed store whose flags expire after ttl.
func NewRedisStopStore(client *redis.Client, ttl time.Duration) *RedisStopStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStopStore{client: client, ttl: ttl}
}

var _ StopStore = (*RedisStopStore)(nil)

func stopKey(conversationID uuid.UUID) string {
	return "pipeline:stop:conversation:" + conversationID.String()
}

func userStopKey(businessID uuid.UUID, userID string) string {
	return "pipeline:stop:user:" + userKey(businessID, userID)
}

func (s *RedisStopStore) SetStopped(ctx context.Context, conversationID uuid.UUID, stopped bool) error {
	if stopped {
		if err := s.client.Set(ctx, stopKey(conversationID), "1", s.ttl).Err(); err != nil {
			return fmt.Errorf("set stop flag: %w", err)
		}
		return nil
	}
	if err := s.client.Del(ctx, stopKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("clear stop flag: %w", err)
	}
	return nil
}

func (s *RedisStopStore) IsStopped(ctx context.Context, conversationID uuid.UUID) (bool, error) {
	return s.exists(ctx, stopKey(conversationID))
}

func (s *RedisStopStore) SetUserStopped(ctx context.Context, businessID uuid.UUID, userID string, stopped bool) error {
	key := userStopKey(businessID, userID)
	if stopped {
		if err := s.client.Set(ctx, key, "1", s.ttl).Err(); err != nil {
			return fmt.Errorf("set user stop flag: %w", err)
		}
		return nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear user stop flag: %w", err)
	}
	return nil
}

func (s *RedisStopStore) IsUserStopped(ctx context.Context, businessID uuid.UUID, userID string) (bool, error) {
	return s.exists(ctx, userStopKey(businessID, userID))
}

func (s *RedisStopStore) exists(ctx context.Context, key string) (bool, error) {
	err := s.client.Get(ctx, key).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("read stop flag: %w", err)
	}
	return true, nil
}
