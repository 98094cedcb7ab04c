package variables

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryMessage is one message as seen by history resolvers.
type HistoryMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// HistoryReader provides message history for the built-in history resolvers.
type HistoryReader interface {
	// ListConversationMessages returns up to limit messages for one
	// conversation, ordered oldest-first.
	ListConversationMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]HistoryMessage, error)
	// ListUserMessages returns up to limit messages for a user across all of
	// their conversations with the business, ordered oldest-first.
	ListUserMessages(ctx context.Context, businessID uuid.UUID, userID string, limit int) ([]HistoryMessage, error)
}

// StageSummary is one catalog row for the stage_catalog resolver.
type StageSummary struct {
	Name        string
	Description string
}

// StageLister provides the stage catalog for the stage_catalog resolver.
type StageLister interface {
	ListStageSummaries(ctx context.Context, businessID uuid.UUID) ([]StageSummary, error)
}

// BuiltinOptions tunes the built-in resolvers.
type BuiltinOptions struct {
	// HistoryMax bounds the history resolvers. Zero means 20.
	HistoryMax int
	// IncludeTimestamps prefixes each history line with the message time.
	IncludeTimestamps bool
}

// RegisterBuiltins installs the standard resolver set.
func RegisterBuiltins(reg *Registry, history HistoryReader, stages StageLister, opts BuiltinOptions) {
	maxMessages := opts.HistoryMax
	if maxMessages <= 0 {
		maxMessages = 20
	}

	reg.Register(NewResolver("current_time", nil, func(context.Context, Context) (string, error) {
		return time.Now().Format(time.RFC3339), nil
	}))
	reg.Register(NewResolver("current_date", nil, func(context.Context, Context) (string, error) {
		return time.Now().Format("2006-01-02"), nil
	}))

	reg.Register(echoResolver("business_id", KeyBusinessID))
	reg.Register(echoResolver("user_id", KeyUserID))
	reg.Register(echoResolver("conversation_id", KeyConversationID))
	reg.Register(echoResolver("message", KeyMessage))

	reg.Register(NewResolver("conversation_history", []string{KeyConversationID},
		func(ctx context.Context, rc Context) (string, error) {
			conversationID, err := uuid.Parse(rc[KeyConversationID])
			if err != nil {
				return "", fmt.Errorf("invalid conversation id: %v", err)
			}
			messages, err := history.ListConversationMessages(ctx, conversationID, maxMessages)
			if err != nil {
				return "", err
			}
			return formatHistory(messages, opts.IncludeTimestamps), nil
		}))

	reg.Register(NewResolver("user_history", []string{KeyBusinessID, KeyUserID},
		func(ctx context.Context, rc Context) (string, error) {
			businessID, err := uuid.Parse(rc[KeyBusinessID])
			if err != nil {
				return "", fmt.Errorf("invalid business id: %v", err)
			}
			messages, err := history.ListUserMessages(ctx, businessID, rc[KeyUserID], maxMessages)
			if err != nil {
				return "", err
			}
			return formatHistory(messages, opts.IncludeTimestamps), nil
		}))

	reg.Register(NewResolver("stage_catalog", []string{KeyBusinessID},
		func(ctx context.Context, rc Context) (string, error) {
			businessID, err := uuid.Parse(rc[KeyBusinessID])
			if err != nil {
				return "", fmt.Errorf("invalid business id: %v", err)
			}
			summaries, err := stages.ListStageSummaries(ctx, businessID)
			if err != nil {
				return "", err
			}
			lines := make([]string, 0, len(summaries))
			for _, s := range summaries {
				lines = append(lines, s.Name+": "+s.Description)
			}
			return strings.Join(lines, "\n"), nil
		}))

	reg.Register(NewResolver("conversation_summary", []string{KeyConversationID},
		func(ctx context.Context, rc Context) (string, error) {
			conversationID, err := uuid.Parse(rc[KeyConversationID])
			if err != nil {
				return "", fmt.Errorf("invalid conversation id: %v", err)
			}
			messages, err := history.ListConversationMessages(ctx, conversationID, maxMessages)
			if err != nil {
				return "", err
			}
			return summarize(messages), nil
		}))
}

func echoResolver(name, key string) Resolver {
	return NewResolver(name, []string{key}, func(_ context.Context, rc Context) (string, error) {
		return rc[key], nil
	})
}

func formatHistory(messages []HistoryMessage, includeTimestamps bool) string {
	if len(messages) == 0 {
		return "(no previous messages)"
	}

	var sb strings.Builder
	for i, msg := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		if includeTimestamps {
			sb.WriteString("[" + msg.CreatedAt.Format("2006-01-02 15:04") + "] ")
		}
		sb.WriteString(msg.Role + ": " + msg.Content)
	}
	return sb.String()
}

// summarize produces a heuristic summary of message counts by sender.
// It never calls the model.
func summarize(messages []HistoryMessage) string {
	if len(messages) == 0 {
		return "Empty conversation."
	}

	counts := make(map[string]int)
	for _, msg := range messages {
		counts[msg.Role]++
	}

	return fmt.Sprintf("Conversation with %d messages (%d from user, %d from assistant).",
		len(messages), counts["user"], counts["assistant"])
}
