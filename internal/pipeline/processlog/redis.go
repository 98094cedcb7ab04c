package processlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"stageflow_backend/platform/apperr"
)

// RedisStore keeps process log entries in Redis so traces survive restarts
// and are shared across process instances. Expiry is delegated to Redis TTLs.
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxPerConv int
}

// NewRedisStore creates a Redis-backed store. Entries expire after ttl; each
// conversation index keeps at most maxPerConv entry ids.
func NewRedisStore(client *redis.Client, ttl time.Duration, maxPerConv int) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxPerConv <= 0 {
		maxPerConv = 50
	}
	return &RedisStore{client: client, ttl: ttl, maxPerConv: maxPerConv}
}

var _ Store = (*RedisStore)(nil)

// businessIndexMax bounds the per-business index, which sees the combined
// traffic of all of a tenant's conversations.
const businessIndexMax = 200

func entryKey(id string) string {
	return "processlog:entry:" + id
}

func conversationKey(conversationID uuid.UUID) string {
	return "processlog:conversation:" + conversationID.String()
}

func businessKey(businessID uuid.UUID) string {
	return "processlog:business:" + businessID.String()
}

// Put stores an entry and indexes it under its conversation.
func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal process log entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, entryKey(entry.ID), data, s.ttl)
	convKey := conversationKey(entry.ConversationID)
	pipe.LPush(ctx, convKey, entry.ID)
	pipe.LTrim(ctx, convKey, 0, int64(s.maxPerConv-1))
	pipe.Expire(ctx, convKey, s.ttl)
	bizKey := businessKey(entry.BusinessID)
	pipe.LPush(ctx, bizKey, entry.ID)
	pipe.LTrim(ctx, bizKey, 0, businessIndexMax-1)
	pipe.Expire(ctx, bizKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store process log entry: %w", err)
	}
	return nil
}

// Get returns one entry by id.
func (s *RedisStore) Get(ctx context.Context, id string) (Entry, error) {
	data, err := s.client.Get(ctx, entryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, apperr.NotFound(entryNotFoundMessage)
		}
		return Entry{}, fmt.Errorf("get process log entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("unmarshal process log entry: %w", err)
	}
	return entry, nil
}

func (s *RedisStore) listIndex(ctx context.Context, key string, limit int) ([]Entry, error) {
	ids, err := s.client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list process log ids: %w", err)
	}

	var out []Entry
	for _, id := range ids {
		entry, err := s.Get(ctx, id)
		if err != nil {
			var appErr *apperr.Error
			if errors.As(err, &appErr) && appErr.Kind == apperr.KindNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// ListByConversation returns up to limit entries, newest first. Ids whose
// entries already expired are skipped.
func (s *RedisStore) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.maxPerConv {
		limit = s.maxPerConv
	}
	return s.listIndex(ctx, conversationKey(conversationID), limit)
}

// ListByBusiness returns up to limit entries across all of a business's
// conversations, newest first.
func (s *RedisStore) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > businessIndexMax {
		limit = 20
	}
	return s.listIndex(ctx, businessKey(businessID), limit)
}

// Prune removes dangling ids from the conversation and business indexes.
// Entry bodies expire on their own TTL.
func (s *RedisStore) Prune(ctx context.Context) (int, error) {
	var removed int
	for _, pattern := range []string{"processlog:conversation:*", "processlog:business:*"} {
		n, err := s.pruneIndexes(ctx, pattern)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *RedisStore) pruneIndexes(ctx context.Context, pattern string) (int, error) {
	var removed int
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		ids, err := s.client.LRange(ctx, indexKey, 0, -1).Result()
		if err != nil {
			return removed, fmt.Errorf("scan process log index: %w", err)
		}
		for _, id := range ids {
			exists, err := s.client.Exists(ctx, entryKey(id)).Result()
			if err != nil {
				return removed, fmt.Errorf("check entry: %w", err)
			}
			if exists == 0 {
				if err := s.client.LRem(ctx, indexKey, 0, id).Err(); err != nil {
					return removed, fmt.Errorf("remove dangling id: %w", err)
				}
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan process log keys: %w", err)
	}
	return removed, nil
}
