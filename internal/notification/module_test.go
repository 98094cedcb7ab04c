package notification

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"stageflow_backend/internal/events"
	"stageflow_backend/platform/logger"
)

type fakeMailer struct {
	to      string
	subject string
	body    string
	sends   int
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	f.sends++
	return nil
}

func TestHandle_SendsAlert(t *testing.T) {
	mailer := &fakeMailer{}
	m := &Module{mailer: mailer, alertTo: "ops@example.com", log: logger.New("error")}

	bus := events.NewInMemoryBus(logger.New("error"))
	bus.Subscribe(events.PipelineFailed{}.EventName(), m)

	event := events.PipelineFailed{
		BaseEvent:      events.NewBaseEvent(),
		BusinessID:     uuid.New(),
		ConversationID: uuid.New(),
		ProcessLogID:   "log-123",
		Reason:         "generation service error",
	}
	if err := bus.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if mailer.sends != 1 {
		t.Fatalf("expected one send, got %d", mailer.sends)
	}
	if mailer.to != "ops@example.com" {
		t.Errorf("wrong recipient: %q", mailer.to)
	}
	if !strings.Contains(mailer.body, "generation service error") {
		t.Errorf("reason missing from body: %q", mailer.body)
	}
	if !strings.Contains(mailer.body, "log-123") {
		t.Errorf("process log id missing from body: %q", mailer.body)
	}
}

func TestHandle_WrongEventType(t *testing.T) {
	m := &Module{mailer: &fakeMailer{}, alertTo: "ops@example.com", log: logger.New("error")}

	err := m.Handle(context.Background(), events.MessageProcessed{BaseEvent: events.NewBaseEvent()})
	if err == nil {
		t.Fatal("expected error for unexpected event type")
	}
}
