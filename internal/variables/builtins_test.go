package variables

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeHistory struct {
	conversation []HistoryMessage
	user         []HistoryMessage
}

func (f *fakeHistory) ListConversationMessages(_ context.Context, _ uuid.UUID, limit int) ([]HistoryMessage, error) {
	if limit < len(f.conversation) {
		return f.conversation[:limit], nil
	}
	return f.conversation, nil
}

func (f *fakeHistory) ListUserMessages(_ context.Context, _ uuid.UUID, _ string, limit int) ([]HistoryMessage, error) {
	if limit < len(f.user) {
		return f.user[:limit], nil
	}
	return f.user, nil
}

type fakeStages struct {
	summaries []StageSummary
}

func (f *fakeStages) ListStageSummaries(context.Context, uuid.UUID) ([]StageSummary, error) {
	return f.summaries, nil
}

func builtinContext() Context {
	return Context{
		KeyBusinessID:     uuid.New().String(),
		KeyUserID:         "+15551234567",
		KeyConversationID: uuid.New().String(),
		KeyMessage:        "hello there",
	}
}

func TestBuiltins_Echo(t *testing.T) {
	reg := NewRegistry(nil)
	RegisterBuiltins(reg, &fakeHistory{}, &fakeStages{}, BuiltinOptions{})

	rc := builtinContext()
	values := reg.ResolveAll(context.Background(), []string{"business_id", "user_id", "conversation_id", "message"}, rc)

	if values["business_id"] != rc[KeyBusinessID] {
		t.Errorf("business_id = %q, want %q", values["business_id"], rc[KeyBusinessID])
	}
	if values["user_id"] != "+15551234567" {
		t.Errorf("user_id = %q", values["user_id"])
	}
	if values["message"] != "hello there" {
		t.Errorf("message = %q", values["message"])
	}
}

func TestBuiltins_CurrentDate(t *testing.T) {
	reg := NewRegistry(nil)
	RegisterBuiltins(reg, &fakeHistory{}, &fakeStages{}, BuiltinOptions{})

	values := reg.ResolveAll(context.Background(), []string{"current_date"}, Context{})
	if _, err := time.Parse("2006-01-02", values["current_date"]); err != nil {
		t.Fatalf("current_date %q not in expected format: %v", values["current_date"], err)
	}
}

func TestBuiltins_ConversationHistoryOrderAndBound(t *testing.T) {
	history := &fakeHistory{conversation: []HistoryMessage{
		{Role: "user", Content: "first", CreatedAt: time.Now().Add(-2 * time.Minute)},
		{Role: "assistant", Content: "second", CreatedAt: time.Now().Add(-1 * time.Minute)},
		{Role: "user", Content: "third", CreatedAt: time.Now()},
	}}

	reg := NewRegistry(nil)
	RegisterBuiltins(reg, history, &fakeStages{}, BuiltinOptions{HistoryMax: 2})

	values := reg.ResolveAll(context.Background(), []string{"conversation_history"}, builtinContext())
	got := values["conversation_history"]

	if !strings.Contains(got, "user: first") || !strings.Contains(got, "assistant: second") {
		t.Fatalf("history missing expected lines: %q", got)
	}
	if strings.Contains(got, "third") {
		t.Fatalf("history not bounded to max: %q", got)
	}
	if strings.Index(got, "first") > strings.Index(got, "second") {
		t.Fatalf("history not oldest-first: %q", got)
	}
}

func TestBuiltins_HistoryTimestamps(t *testing.T) {
	when := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	history := &fakeHistory{conversation: []HistoryMessage{
		{Role: "user", Content: "hi", CreatedAt: when},
	}}

	reg := NewRegistry(nil)
	RegisterBuiltins(reg, history, &fakeStages{}, BuiltinOptions{IncludeTimestamps: true})

	values := reg.ResolveAll(context.Background(), []string{"conversation_history"}, builtinContext())
	if !strings.Contains(values["conversation_history"], "[2026-03-14 09:30] user: hi") {
		t.Fatalf("expected timestamped line, got %q", values["conversation_history"])
	}
}

func TestBuiltins_StageCatalog(t *testing.T) {
	stages := &fakeStages{summaries: []StageSummary{
		{Name: "Greeting", Description: "Welcome the customer"},
		{Name: "Ordering", Description: "Take the order"},
	}}

	reg := NewRegistry(nil)
	RegisterBuiltins(reg, &fakeHistory{}, stages, BuiltinOptions{})

	values := reg.ResolveAll(context.Background(), []string{"stage_catalog"}, builtinContext())
	want := "Greeting: Welcome the customer\nOrdering: Take the order"
	if values["stage_catalog"] != want {
		t.Fatalf("stage_catalog = %q, want %q", values["stage_catalog"], want)
	}
}

func TestBuiltins_ConversationSummaryCounts(t *testing.T) {
	history := &fakeHistory{conversation: []HistoryMessage{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	}}

	reg := NewRegistry(nil)
	RegisterBuiltins(reg, history, &fakeStages{}, BuiltinOptions{})

	values := reg.ResolveAll(context.Background(), []string{"conversation_summary"}, builtinContext())
	want := "Conversation with 3 messages (2 from user, 1 from assistant)."
	if values["conversation_summary"] != want {
		t.Fatalf("conversation_summary = %q, want %q", values["conversation_summary"], want)
	}
}

func TestBuiltins_EmptyHistoryPlaceholder(t *testing.T) {
	reg := NewRegistry(nil)
	RegisterBuiltins(reg, &fakeHistory{}, &fakeStages{}, BuiltinOptions{})

	values := reg.ResolveAll(context.Background(), []string{"conversation_history", "conversation_summary"}, builtinContext())
	if values["conversation_history"] != "(no previous messages)" {
		t.Errorf("conversation_history = %q", values["conversation_history"])
	}
	if values["conversation_summary"] != "Empty conversation." {
		t.Errorf("conversation_summary = %q", values["conversation_summary"])
	}
}
